package proxmox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	goproxmox "github.com/luthermonson/go-proxmox"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/proxsync/proxsync/pkg/log"
)

// ErrUnreachable marks failures to reach or authenticate against the Proxmox API
var ErrUnreachable = errors.New("proxmox API unreachable")

// MACPattern matches a MAC address with ':' or '-' separators
var MACPattern = regexp.MustCompile(`([0-9A-Fa-f]{2}[:-]){5}([0-9A-Fa-f]{2})`)

var netKeyPattern = regexp.MustCompile(`^net\d+$`)

const (
	DefaultPort        = 8006
	DefaultTimeout     = 30 * time.Second
	DefaultConcurrency = 4
)

// Config describes how to reach one Proxmox VE cluster
type Config struct {
	Host        string
	Port        int
	User        string
	TokenID     string
	TokenSecret string
	VerifySSL   bool

	Timeout     time.Duration
	Concurrency int
	Debug       bool
}

// BaseURL returns the API root for the configured host and port
func (c Config) BaseURL() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("https://%s/api2/json", net.JoinHostPort(c.Host, strconv.Itoa(port)))
}

// TokenName returns the full API token identifier (user@realm!tokenid)
func (c Config) TokenName() string {
	if strings.Contains(c.TokenID, "!") {
		return c.TokenID
	}
	return c.User + "!" + c.TokenID
}

// Client fetches inventory from one Proxmox VE cluster
type Client struct {
	api         *goproxmox.Client
	concurrency int
	debug       bool
	logger      zerolog.Logger

	mu  sync.Mutex
	vms []VirtualMachine
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: !cfg.VerifySSL, //nolint:gosec
			},
		},
	}

	return &Client{
		api: goproxmox.NewClient(cfg.BaseURL(),
			goproxmox.WithHTTPClient(httpClient),
			goproxmox.WithAPIToken(cfg.TokenName(), cfg.TokenSecret),
		),
		concurrency: concurrency,
		debug:       cfg.Debug,
		logger:      log.WithComponent("proxmox").With().Str("host", cfg.Host).Logger(),
	}
}

// diag returns an info event when debug diagnostics are enabled, nil otherwise
func (c *Client) diag() *zerolog.Event {
	if !c.debug {
		return nil
	}
	return c.logger.Info()
}

// Cluster returns the cluster entry of /cluster/status. Standalone nodes
// report no cluster entry, in which case the first entry is returned.
func (c *Client) Cluster(ctx context.Context) (*ClusterStatus, error) {
	var entries []ClusterStatus
	if err := c.api.Get(ctx, "/cluster/status", &entries); err != nil {
		return nil, fmt.Errorf("%w: cluster status: %w", ErrUnreachable, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty cluster status", ErrUnreachable)
	}
	for i := range entries {
		if entries[i].Type == "cluster" {
			return &entries[i], nil
		}
	}
	return &entries[0], nil
}

// Tags returns the tag names declared in the cluster options mapped to their
// configured color ("" when none).
func (c *Client) Tags(ctx context.Context) (map[string]string, error) {
	var options map[string]interface{}
	if err := c.api.Get(ctx, "/cluster/options", &options); err != nil {
		return nil, fmt.Errorf("%w: cluster options: %w", ErrUnreachable, err)
	}
	return parseTagOptions(options), nil
}

// Nodes returns the cluster nodes. Network configuration is best effort: a
// node whose interfaces cannot be read is returned without interfaces.
func (c *Client) Nodes(ctx context.Context) ([]Node, error) {
	var nodes []Node
	if err := c.api.Get(ctx, "/nodes", &nodes); err != nil {
		return nil, fmt.Errorf("%w: nodes: %w", ErrUnreachable, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := range nodes {
		node := &nodes[i]
		g.Go(func() error {
			var ifaces []NodeInterface
			path := fmt.Sprintf("/nodes/%s/network", url.PathEscape(node.Name))
			if err := c.api.Get(gctx, path, &ifaces); err != nil {
				c.logger.Warn().Err(err).Str("node", node.Name).Msg("Failed to retrieve node network configuration")
				return nil
			}
			sort.Slice(ifaces, func(a, b int) bool { return ifaces[a].Iface < ifaces[b].Iface })
			node.Interfaces = ifaces
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(nodes, func(a, b int) bool { return nodes[a].Name < nodes[b].Name })
	return nodes, nil
}

// VirtualMachines returns the QEMU guests of the cluster. Failing to list
// resources is fatal; a guest whose config or status cannot be read is skipped.
func (c *Client) VirtualMachines(ctx context.Context) ([]VirtualMachine, error) {
	var resources []resource
	if err := c.api.Get(ctx, "/cluster/resources?type=vm", &resources); err != nil {
		return nil, fmt.Errorf("%w: cluster resources: %w", ErrUnreachable, err)
	}

	results := make([]*VirtualMachine, len(resources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := range resources {
		res := resources[i]
		if res.Type != "" && res.Type != "qemu" {
			continue
		}
		g.Go(func() error {
			vm, err := c.fetchVM(gctx, res)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				c.logger.Warn().Err(err).Int("vmid", res.VMID).Str("node", res.Node).
					Msg("Failed to retrieve config/status for VM")
				return nil
			}
			results[i] = vm
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	vms := make([]VirtualMachine, 0, len(results))
	for _, vm := range results {
		if vm != nil {
			vms = append(vms, *vm)
		}
	}

	c.mu.Lock()
	c.vms = vms
	c.mu.Unlock()

	return vms, nil
}

func (c *Client) fetchVM(ctx context.Context, res resource) (*VirtualMachine, error) {
	base := fmt.Sprintf("/nodes/%s/qemu/%d", url.PathEscape(res.Node), res.VMID)

	var config map[string]interface{}
	if err := c.api.Get(ctx, base+"/config", &config); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var current currentStatus
	if err := c.api.Get(ctx, base+"/status/current", &current); err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	vm := &VirtualMachine{
		VMID:    res.VMID,
		Name:    stringValue(config["name"]),
		Node:    res.Node,
		Status:  current.Status,
		Tags:    splitTags(res.Tags),
		MaxDisk: uint64(res.MaxDisk),
		MaxCPU:  int(res.MaxCPU),
		Sockets: intValue(config["sockets"]),
		Cores:   intValue(config["cores"]),
		Memory:  intValue(config["memory"]),
		Nets:    make(map[string]string),
	}
	if vm.Name == "" {
		vm.Name = res.Name
	}
	if vm.Name == "" {
		vm.Name = fmt.Sprintf("VM-%d", res.VMID)
	}
	if vm.Status == "" {
		vm.Status = res.Status
	}
	for key, value := range config {
		if netKeyPattern.MatchString(key) {
			vm.Nets[key] = stringValue(value)
		}
	}

	if vm.Status == "running" {
		var agent agentNetwork
		if err := c.api.Get(ctx, base+"/agent/network-get-interfaces", &agent); err != nil {
			c.diag().Err(err).Str("vm", vm.Name).Msg("Agent check failed")
		} else {
			vm.AgentInterfaces = agent.Result
			c.diag().Str("vm", vm.Name).Int("count", len(agent.Result)).Msg("Agent interfaces found")
		}
	}

	c.diag().Str("vm", vm.Name).Int("vmid", vm.VMID).Str("status", vm.Status).Msg("Fetched VM")
	return vm, nil
}

// VMInterfaces flattens the network devices of all guests, fetching the
// guests first when they have not been fetched by this client yet.
func (c *Client) VMInterfaces(ctx context.Context) ([]VMInterface, error) {
	c.mu.Lock()
	vms := c.vms
	c.mu.Unlock()

	if vms == nil {
		var err error
		if vms, err = c.VirtualMachines(ctx); err != nil {
			return nil, err
		}
	}

	var ifaces []VMInterface
	for _, vm := range vms {
		keys := make([]string, 0, len(vm.Nets))
		for key := range vm.Nets {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(a, b int) bool { return netIndex(keys[a]) < netIndex(keys[b]) })

		for _, key := range keys {
			info := vm.Nets[key]
			ips := AgentIPs(MACPattern.FindString(info), vm.AgentInterfaces)
			if len(ips) > 0 {
				c.diag().Str("vm", vm.Name).Str("interface", key).Strs("ips", ips).Msg("IPs found")
			}
			ifaces = append(ifaces, VMInterface{
				VM:   vm.Name,
				Name: fmt.Sprintf("%s:%s", vm.Name, key),
				Info: info,
				IPs:  ips,
				Node: vm.Node,
			})
		}
	}
	return ifaces, nil
}

// AgentIPs returns the agent-reported addresses of the interface with the
// given MAC, excluding link-local and loopback, with the prefix as CIDR.
func AgentIPs(mac string, agentIfaces []AgentInterface) []string {
	if mac == "" {
		return nil
	}
	var ips []string
	for _, iface := range agentIfaces {
		if !strings.EqualFold(iface.HardwareAddress, mac) {
			continue
		}
		for _, addr := range iface.IPAddresses {
			ip := addr.Address
			if ip == "" || strings.HasPrefix(strings.ToLower(ip), "fe80::") || strings.HasPrefix(ip, "127.") {
				continue
			}
			if addr.Prefix > 0 {
				ip = fmt.Sprintf("%s/%d", ip, addr.Prefix)
			}
			ips = append(ips, ip)
		}
	}
	return ips
}

func netIndex(key string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(key, "net"))
	if err != nil {
		return -1
	}
	return n
}

func splitTags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == ',' || r == ' '
	})
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}

func stringValue(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

// intValue reads numbers that PVE reports either as JSON numbers, numeric
// strings or property strings such as "current=4096,min=1024".
func intValue(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i
		}
		for _, part := range strings.Split(s, ",") {
			key, value, found := strings.Cut(part, "=")
			if found && key == "current" {
				i, _ := strconv.Atoi(value)
				return i
			}
		}
	}
	return 0
}
