// Package inventory defines the canonical desired-state records produced by
// the normalizer and consumed by the reconciler and applier.
package inventory

import "strings"

// Tag is a desired tag definition
type Tag struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Color string `json:"color"`
}

// NodeInterface is a physical, bond or bridge interface of a node
type NodeInterface struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Node is a hypervisor host of the cluster
type Node struct {
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	Interfaces []NodeInterface `json:"interfaces"`
}

// VirtualMachine is a desired guest record. Device names the hosting node.
type VirtualMachine struct {
	Name   string   `json:"name"`
	VMID   int      `json:"vmid"`
	Status string   `json:"status"`
	VCPUs  int      `json:"vcpus"`
	Memory int      `json:"memory"`
	Disk   int      `json:"disk"`
	Device string   `json:"device"`
	Tags   []string `json:"tags"`
}

// VMInterface is a desired VM network interface
type VMInterface struct {
	Name           string   `json:"name"`
	VirtualMachine string   `json:"virtual_machine"`
	MACAddress     string   `json:"mac_address"`
	VLAN           *int     `json:"untagged_vlan"`
	IPAddresses    []string `json:"ip_addresses"`
	Bridge         string   `json:"bridge"`
	Node           string   `json:"node"`
}

// Slot returns the source-side name suffix after the last ':' (e.g. "net0")
func (i VMInterface) Slot() string {
	if idx := strings.LastIndex(i.Name, ":"); idx >= 0 {
		return i.Name[idx+1:]
	}
	return ""
}

// State is the complete normalized desired state of one cluster
type State struct {
	Cluster      string           `json:"cluster"`
	Tags         []Tag            `json:"tags"`
	Nodes        []Node           `json:"nodes"`
	VMs          []VirtualMachine `json:"vms"`
	VMInterfaces []VMInterface    `json:"vminterfaces"`
}
