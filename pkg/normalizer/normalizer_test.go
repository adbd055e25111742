package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/inventory"
	"github.com/proxsync/proxsync/pkg/proxmox"
)

func TestTagSlug(t *testing.T) {
	assert.Equal(t, "pxsync__prod", TagSlug(TagSlugPrefix, "prod"))
	assert.Equal(t, "pxsync__my-tag_v2", TagSlug(TagSlugPrefix, "My Tag.v2"))
	assert.Equal(t, "x_web", TagSlug("x_", "WEB"))
}

func TestTags(t *testing.T) {
	n := New(Options{})

	tags := n.Tags(map[string]string{"prod": "FF0000", "web": "", "db": "#00ff00"})
	assert.Equal(t, []inventory.Tag{
		{Name: "db", Slug: "pxsync__db", Color: "00ff00"},
		{Name: "prod", Slug: "pxsync__prod", Color: "ff0000"},
		{Name: "web", Slug: "pxsync__web", Color: DefaultTagColor},
	}, tags)
}

func TestNode(t *testing.T) {
	n := New(Options{})

	node := n.Node(proxmox.Node{
		Name:   "pve1",
		Status: "online",
		Interfaces: []proxmox.NodeInterface{
			{Iface: "eno1", Type: "eth"},
			{Iface: "bond0", Type: "bond"},
			{Iface: "vmbr0", Type: "bridge"},
			{Iface: "vmbr0.20", Type: "vlan"},
		},
	})
	assert.Equal(t, models.StatusActive, node.Status)
	assert.Equal(t, []inventory.NodeInterface{
		{Name: "eno1", Type: models.InterfaceTypeOther},
		{Name: "bond0", Type: models.InterfaceTypeLAG},
		{Name: "vmbr0", Type: models.InterfaceTypeBridge},
		{Name: "vmbr0.20", Type: models.InterfaceTypeVirtual},
	}, node.Interfaces)

	for _, status := range []string{"offline", "unknown", ""} {
		assert.Equal(t, models.StatusOffline, n.Node(proxmox.Node{Name: "pve2", Status: status}).Status)
	}
}

func TestVirtualMachine(t *testing.T) {
	n := New(Options{Debug: true})

	vm := n.VirtualMachine(proxmox.VirtualMachine{
		VMID:    101,
		Name:    "web1",
		Node:    "pve1",
		Status:  " Running ",
		Tags:    []string{"prod", "web"},
		MaxDisk: 34359738368 + 1023,
		Sockets: 2,
		Cores:   4,
		Memory:  4096,
	})
	assert.Equal(t, inventory.VirtualMachine{
		Name:   "web1",
		VMID:   101,
		Status: models.StatusActive,
		VCPUs:  8,
		Memory: 4096,
		Disk:   32768,
		Device: "pve1",
		Tags:   []string{"prod", "web"},
	}, vm)
}

func TestVirtualMachineDefaults(t *testing.T) {
	n := New(Options{})

	vm := n.VirtualMachine(proxmox.VirtualMachine{VMID: 105, Node: "pve9", Status: "stopped"})
	assert.Equal(t, "VM-105", vm.Name)
	assert.Equal(t, models.StatusOffline, vm.Status)
	assert.Equal(t, 1, vm.VCPUs)
	assert.Equal(t, 0, vm.Disk)
	assert.Equal(t, "pve9", vm.Device, "device reference is kept even for unknown nodes")
	assert.Empty(t, vm.Tags)
}

func TestParseNetConfig(t *testing.T) {
	cfg := ParseNetConfig("virtio=AA:BB:CC:DD:EE:FF,bridge=vmbr0,tag=20")
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", cfg.MACAddress)
	require.NotNil(t, cfg.VLAN)
	assert.Equal(t, 20, *cfg.VLAN)
	assert.Equal(t, "vmbr0", cfg.Bridge)

	cfg = ParseNetConfig("e1000=aa-bb-cc-dd-ee-01,bridge=vmbr1,firewall=1")
	assert.Equal(t, "AA:BB:CC:DD:EE:01", cfg.MACAddress)
	assert.Nil(t, cfg.VLAN)
	assert.Equal(t, "vmbr1", cfg.Bridge)

	cfg = ParseNetConfig("virtio,link_down=1")
	assert.Empty(t, cfg.MACAddress)
	assert.Nil(t, cfg.VLAN)
	assert.Empty(t, cfg.Bridge)
}

func TestVMInterface(t *testing.T) {
	n := New(Options{})

	iface := n.VMInterface(proxmox.VMInterface{
		VM:   "web1",
		Name: "web1:net0",
		Info: "virtio=aa:bb:cc:dd:ee:ff,bridge=vmbr0,tag=20",
		IPs:  []string{"10.0.0.5/24"},
		Node: "pve1",
	})
	vid := 20
	assert.Equal(t, inventory.VMInterface{
		Name:           "web1:net0",
		VirtualMachine: "web1",
		MACAddress:     "AA:BB:CC:DD:EE:FF",
		VLAN:           &vid,
		IPAddresses:    []string{"10.0.0.5/24"},
		Bridge:         "vmbr0",
		Node:           "pve1",
	}, iface)
}

func TestState(t *testing.T) {
	n := New(Options{TagSlugPrefix: "custom__"})

	state := n.State("lab",
		map[string]string{"prod": ""},
		[]proxmox.Node{{Name: "pve1", Status: "online"}},
		[]proxmox.VirtualMachine{{VMID: 101, Name: "web1", Node: "pve1", Status: "running"}},
		[]proxmox.VMInterface{{VM: "web1", Name: "web1:net0", Info: "virtio=AA:BB:CC:DD:EE:FF"}},
	)
	assert.Equal(t, "lab", state.Cluster)
	assert.Equal(t, "custom__prod", state.Tags[0].Slug)
	assert.Len(t, state.Nodes, 1)
	assert.Len(t, state.VMs, 1)
	assert.Len(t, state.VMInterfaces, 1)
}
