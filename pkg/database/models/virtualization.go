package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// CustomFieldVMID is the custom field holding the Proxmox VMID of a virtual machine
const CustomFieldVMID = "vmid"

// VirtualMachine is a guest running inside a virtualization cluster
type VirtualMachine struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Name            string         `gorm:"not null;size:64;index" json:"name"`
	Status          string         `gorm:"not null;size:50" json:"status"`
	ClusterID       uint           `gorm:"not null;index" json:"cluster_id"`
	DeviceID        *uint          `gorm:"index" json:"device_id"`
	VCPUs           int            `json:"vcpus"`
	Memory          int            `json:"memory"`
	Disk            int            `json:"disk"`
	CustomFieldData map[string]any `gorm:"serializer:json" json:"custom_fields"`
	CreatedAt       time.Time      `json:"created"`
	UpdatedAt       time.Time      `json:"last_updated"`

	// Relationships
	Device *Device `gorm:"foreignKey:DeviceID" json:"device,omitempty"`
	Tags   []Tag   `gorm:"many2many:virtual_machine_tags;" json:"tags,omitempty"`
}

// VMID returns the Proxmox VMID stored in the custom field data, if any
func (vm *VirtualMachine) VMID() (int, bool) {
	if vm.CustomFieldData == nil {
		return 0, false
	}
	return asInt(vm.CustomFieldData[CustomFieldVMID])
}

// SetVMID stores the Proxmox VMID in the custom field data
func (vm *VirtualMachine) SetVMID(vmid int) {
	if vm.CustomFieldData == nil {
		vm.CustomFieldData = make(map[string]any)
	}
	vm.CustomFieldData[CustomFieldVMID] = vmid
}

// DeviceName returns the name of the assigned device, or "" when unassigned
func (vm *VirtualMachine) DeviceName() string {
	if vm.Device == nil {
		return ""
	}
	return vm.Device.Name
}

// TagNames returns the names of the tags assigned to the virtual machine
func (vm *VirtualMachine) TagNames() map[string]struct{} {
	names := make(map[string]struct{}, len(vm.Tags))
	for _, tag := range vm.Tags {
		names[tag.Name] = struct{}{}
	}
	return names
}

// Summary returns the serialized summary of the virtual machine
func (vm *VirtualMachine) Summary() RecordSummary {
	return RecordSummary{ID: vm.ID, Model: ObjectTypeVirtualMachine, Name: vm.Name}
}

// VMInterface is a network interface of a virtual machine. MAC and IP
// address objects are assigned to it through (type, id) references and are
// loaded by the repository.
type VMInterface struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"not null;size:64;index" json:"name"`
	VirtualMachineID uint      `gorm:"not null;index" json:"virtual_machine_id"`
	Mode             string    `gorm:"size:50" json:"mode"`
	Description      string    `gorm:"size:200" json:"description"`
	UntaggedVLANID   *uint     `json:"untagged_vlan_id"`
	CableID          *uint     `gorm:"index" json:"cable_id"`
	CreatedAt        time.Time `json:"created"`
	UpdatedAt        time.Time `json:"last_updated"`

	// Relationships
	VirtualMachine *VirtualMachine `gorm:"foreignKey:VirtualMachineID" json:"virtual_machine,omitempty"`
	UntaggedVLAN   *VLAN           `gorm:"foreignKey:UntaggedVLANID" json:"untagged_vlan,omitempty"`

	MACAddresses []MACAddress `gorm:"-" json:"mac_addresses,omitempty"`
	IPAddresses  []IPAddress  `gorm:"-" json:"ip_addresses,omitempty"`
}

// VirtualMachineName returns the name of the owning virtual machine
func (i *VMInterface) VirtualMachineName() string {
	if i.VirtualMachine == nil {
		return ""
	}
	return i.VirtualMachine.Name
}

// MACs returns the assigned MAC addresses in canonical uppercase form
func (i *VMInterface) MACs() []string {
	macs := make([]string, 0, len(i.MACAddresses))
	for _, mac := range i.MACAddresses {
		macs = append(macs, strings.ToUpper(mac.MACAddress))
	}
	return macs
}

// Summary returns the serialized summary of the interface
func (i *VMInterface) Summary() RecordSummary {
	return RecordSummary{ID: i.ID, Model: ObjectTypeVMInterface, Name: i.Name}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}
