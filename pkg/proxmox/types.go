package proxmox

// ClusterStatus is one entry of GET /cluster/status
type ClusterStatus struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Nodes   int    `json:"nodes,omitempty"`
	Quorate int    `json:"quorate,omitempty"`
	Online  int    `json:"online,omitempty"`
}

// Node is a cluster member with its network configuration
type Node struct {
	Name       string          `json:"node"`
	Status     string          `json:"status"`
	Interfaces []NodeInterface `json:"interfaces,omitempty"`
}

// NodeInterface is one entry of GET /nodes/{node}/network
type NodeInterface struct {
	Iface string `json:"iface"`
	Type  string `json:"type"`
}

// resource is one entry of GET /cluster/resources?type=vm
type resource struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	VMID    int     `json:"vmid"`
	Name    string  `json:"name"`
	Node    string  `json:"node"`
	Status  string  `json:"status"`
	Tags    string  `json:"tags"`
	MaxDisk float64 `json:"maxdisk"`
	MaxCPU  float64 `json:"maxcpu"`
}

// currentStatus is GET /nodes/{node}/qemu/{vmid}/status/current
type currentStatus struct {
	Status string `json:"status"`
}

// agentNetwork is GET /nodes/{node}/qemu/{vmid}/agent/network-get-interfaces
type agentNetwork struct {
	Result []AgentInterface `json:"result"`
}

// AgentInterface is a network interface reported by the QEMU guest agent
type AgentInterface struct {
	Name            string           `json:"name"`
	HardwareAddress string           `json:"hardware-address"`
	IPAddresses     []AgentIPAddress `json:"ip-addresses"`
}

// AgentIPAddress is an address of an agent-reported interface
type AgentIPAddress struct {
	Address string `json:"ip-address"`
	Type    string `json:"ip-address-type"`
	Prefix  int    `json:"prefix"`
}

// VirtualMachine is a QEMU guest enriched with its config, authoritative
// status and guest agent interfaces.
type VirtualMachine struct {
	VMID            int               `json:"vmid"`
	Name            string            `json:"name"`
	Node            string            `json:"node"`
	Status          string            `json:"status"`
	Tags            []string          `json:"tags"`
	MaxDisk         uint64            `json:"maxdisk"`
	MaxCPU          int               `json:"maxcpu"`
	Sockets         int               `json:"sockets"`
	Cores           int               `json:"cores"`
	Memory          int               `json:"memory"`
	Nets            map[string]string `json:"nets"`
	AgentInterfaces []AgentInterface  `json:"agent_interfaces,omitempty"`
}

// VMInterface is a flattened VM network device. Info is the raw netN config
// string, IPs are the guest agent addresses matching its MAC.
type VMInterface struct {
	VM   string   `json:"vm"`
	Name string   `json:"name"`
	Info string   `json:"info"`
	IPs  []string `json:"ips"`
	Node string   `json:"node"`
}
