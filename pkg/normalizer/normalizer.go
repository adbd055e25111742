// Package normalizer converts raw Proxmox records into canonical inventory
// records. It performs no I/O.
package normalizer

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/inventory"
	"github.com/proxsync/proxsync/pkg/log"
	"github.com/proxsync/proxsync/pkg/proxmox"
)

const (
	// TagSlugPrefix marks tags owned by the sync
	TagSlugPrefix = "pxsync__"
	// DefaultTagColor is used for tags without a configured color
	DefaultTagColor = "d1d1d1"
)

var (
	vlanTagPattern = regexp.MustCompile(`tag=(\d+)`)
	bridgePattern  = regexp.MustCompile(`(?:^|,)bridge=([^,]+)`)
)

// Options configures a Normalizer
type Options struct {
	TagSlugPrefix string
	Debug         bool
}

type Normalizer struct {
	slugPrefix string
	debug      bool
	logger     zerolog.Logger
}

func New(opts Options) *Normalizer {
	prefix := opts.TagSlugPrefix
	if prefix == "" {
		prefix = TagSlugPrefix
	}
	return &Normalizer{
		slugPrefix: prefix,
		debug:      opts.Debug,
		logger:     log.WithComponent("normalizer"),
	}
}

// TagSlug derives the owned slug of a tag name
func TagSlug(prefix, name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, ".", "_")
	return prefix + slug
}

// Tags normalizes the tag name to color mapping, sorted by name
func (n *Normalizer) Tags(raw map[string]string) []inventory.Tag {
	tags := make([]inventory.Tag, 0, len(raw))
	for name, color := range raw {
		tags = append(tags, n.Tag(name, color))
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags
}

func (n *Normalizer) Tag(name, color string) inventory.Tag {
	color = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(color), "#"))
	if color == "" {
		color = DefaultTagColor
	}
	return inventory.Tag{
		Name:  name,
		Slug:  TagSlug(n.slugPrefix, name),
		Color: color,
	}
}

func (n *Normalizer) Nodes(raw []proxmox.Node) []inventory.Node {
	nodes := make([]inventory.Node, 0, len(raw))
	for _, node := range raw {
		nodes = append(nodes, n.Node(node))
	}
	return nodes
}

func (n *Normalizer) Node(raw proxmox.Node) inventory.Node {
	status := models.StatusOffline
	if raw.Status == "online" {
		status = models.StatusActive
	}
	ifaces := make([]inventory.NodeInterface, 0, len(raw.Interfaces))
	for _, iface := range raw.Interfaces {
		ifaces = append(ifaces, inventory.NodeInterface{Name: iface.Iface, Type: InterfaceType(iface.Type)})
	}
	return inventory.Node{Name: raw.Name, Status: status, Interfaces: ifaces}
}

// InterfaceType maps a PVE network type to a record store interface type
func InterfaceType(pveType string) string {
	switch pveType {
	case "bridge", "OVSBridge":
		return models.InterfaceTypeBridge
	case "bond", "OVSBond":
		return models.InterfaceTypeLAG
	case "vlan", "alias", "OVSIntPort":
		return models.InterfaceTypeVirtual
	default:
		return models.InterfaceTypeOther
	}
}

func (n *Normalizer) VirtualMachines(raw []proxmox.VirtualMachine) []inventory.VirtualMachine {
	vms := make([]inventory.VirtualMachine, 0, len(raw))
	for _, vm := range raw {
		vms = append(vms, n.VirtualMachine(vm))
	}
	return vms
}

func (n *Normalizer) VirtualMachine(raw proxmox.VirtualMachine) inventory.VirtualMachine {
	rawStatus := strings.ToLower(strings.TrimSpace(raw.Status))
	status := models.StatusOffline
	if rawStatus == "running" {
		status = models.StatusActive
	}

	name := raw.Name
	if name == "" {
		name = "VM-" + strconv.Itoa(raw.VMID)
	}

	if n.debug {
		n.logger.Info().Str("vm", name).Str("raw_status", rawStatus).Str("status", status).Msg("Parsing VM")
	}

	sockets, cores := raw.Sockets, raw.Cores
	if sockets <= 0 {
		sockets = 1
	}
	if cores <= 0 {
		cores = 1
	}

	tags := make([]string, 0, len(raw.Tags))
	tags = append(tags, raw.Tags...)

	return inventory.VirtualMachine{
		Name:   name,
		VMID:   raw.VMID,
		Status: status,
		VCPUs:  sockets * cores,
		Memory: raw.Memory,
		Disk:   int(raw.MaxDisk >> 20),
		Device: raw.Node,
		Tags:   tags,
	}
}

func (n *Normalizer) VMInterfaces(raw []proxmox.VMInterface) []inventory.VMInterface {
	ifaces := make([]inventory.VMInterface, 0, len(raw))
	for _, iface := range raw {
		ifaces = append(ifaces, n.VMInterface(iface))
	}
	return ifaces
}

func (n *Normalizer) VMInterface(raw proxmox.VMInterface) inventory.VMInterface {
	net := ParseNetConfig(raw.Info)
	ips := make([]string, 0, len(raw.IPs))
	ips = append(ips, raw.IPs...)
	return inventory.VMInterface{
		Name:           raw.Name,
		VirtualMachine: raw.VM,
		MACAddress:     net.MACAddress,
		VLAN:           net.VLAN,
		IPAddresses:    ips,
		Bridge:         net.Bridge,
		Node:           raw.Node,
	}
}

// NetConfig is the information extracted from a netN config string
type NetConfig struct {
	MACAddress string
	VLAN       *int
	Bridge     string
}

// ParseNetConfig extracts MAC, VLAN tag and bridge from a config string such
// as "virtio=AA:BB:CC:DD:EE:FF,bridge=vmbr0,tag=20"
func ParseNetConfig(s string) NetConfig {
	var cfg NetConfig
	if mac := proxmox.MACPattern.FindString(s); mac != "" {
		cfg.MACAddress = strings.ToUpper(strings.ReplaceAll(mac, "-", ":"))
	}
	if m := vlanTagPattern.FindStringSubmatch(s); m != nil {
		if vid, err := strconv.Atoi(m[1]); err == nil {
			cfg.VLAN = &vid
		}
	}
	if m := bridgePattern.FindStringSubmatch(s); m != nil {
		cfg.Bridge = m[1]
	}
	return cfg
}

// State normalizes everything fetched from one cluster
func (n *Normalizer) State(cluster string, tags map[string]string, nodes []proxmox.Node, vms []proxmox.VirtualMachine, ifaces []proxmox.VMInterface) *inventory.State {
	return &inventory.State{
		Cluster:      cluster,
		Tags:         n.Tags(tags),
		Nodes:        n.Nodes(nodes),
		VMs:          n.VirtualMachines(vms),
		VMInterfaces: n.VMInterfaces(ifaces),
	}
}
