package reconciler

import (
	"fmt"
	"strconv"

	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/inventory"
)

// VMPlan is the categorized virtual machine batch
type VMPlan = Plan[*models.VirtualMachine, inventory.VirtualMachine]

// VMLookups carries the auxiliary name sets virtual machine matching needs
type VMLookups struct {
	ClusterName    string
	ClusterDevices map[string]struct{}
	GlobalDevices  map[string]struct{}
	ManagedTags    map[string]struct{}
}

// VirtualMachines matches desired guests by VMID first, then by name
func (r *Reconciler) VirtualMachines(existing []models.VirtualMachine, desired []inventory.VirtualMachine, lookups VMLookups) *VMPlan {
	records := pointers(existing)

	byVMID := newMatcher(records,
		func(vm *models.VirtualMachine) []string {
			if id, ok := vm.VMID(); ok && id > 0 {
				return []string{strconv.Itoa(id)}
			}
			return nil
		},
		func(vm inventory.VirtualMachine) (string, bool) {
			return strconv.Itoa(vm.VMID), vm.VMID > 0
		},
	)
	byName := newMatcher(records,
		func(vm *models.VirtualMachine) []string { return []string{vm.Name} },
		func(vm inventory.VirtualMachine) (string, bool) { return vm.Name, true },
	).filtered(func(e *models.VirtualMachine, d inventory.VirtualMachine) bool {
		// a record carrying another guest's VMID is not a rename candidate
		id, ok := e.VMID()
		return !ok || id <= 0 || d.VMID <= 0 || id == d.VMID
	})

	plan := &VMPlan{}
	var claimed map[uint]struct{}
	plan.Create, plan.Update, claimed = categorize(desired,
		vmIdentity,
		[]matcher[*models.VirtualMachine, inventory.VirtualMachine]{byVMID, byName},
		func(vm *models.VirtualMachine) uint { return vm.ID },
		func(e *models.VirtualMachine, d inventory.VirtualMachine) bool {
			return VirtualMachinesEqual(e, d, lookups)
		},
	)

	for _, vm := range records {
		if _, ok := claimed[vm.ID]; !ok {
			plan.Delete = append(plan.Delete, vm)
		}
	}

	plan.Warnings = VMWarnings(desired, lookups)
	return plan
}

func vmIdentity(vm inventory.VirtualMachine) string {
	if vm.VMID > 0 {
		return "vmid:" + strconv.Itoa(vm.VMID)
	}
	return "name:" + vm.Name
}

// VirtualMachinesEqual compares attributes, device, VMID and managed tags
func VirtualMachinesEqual(existing *models.VirtualMachine, desired inventory.VirtualMachine, lookups VMLookups) bool {
	if existing.Name != desired.Name ||
		existing.Status != desired.Status ||
		existing.VCPUs != desired.VCPUs ||
		existing.Memory != desired.Memory ||
		existing.Disk != desired.Disk {
		return false
	}

	if desired.VMID > 0 {
		if id, ok := existing.VMID(); !ok || id != desired.VMID {
			return false
		}
	}

	if !deviceEqual(existing, desired.Device, lookups.ClusterDevices) {
		return false
	}

	current := existing.TagNames()
	for _, name := range desired.Tags {
		if _, ok := current[name]; ok {
			continue
		}
		if _, managed := lookups.ManagedTags[name]; managed {
			return false
		}
	}
	return true
}

// deviceEqual only forces an update for an unresolvable device when the
// existing record points at some other device.
func deviceEqual(existing *models.VirtualMachine, device string, clusterDevices map[string]struct{}) bool {
	if device == "" {
		return true
	}
	if _, ok := clusterDevices[device]; ok {
		return existing.Device != nil && existing.Device.Name == device
	}
	return existing.Device == nil || existing.Device.Name == device
}

// VMWarnings reports desired devices that cannot be resolved in the cluster
func VMWarnings(desired []inventory.VirtualMachine, lookups VMLookups) []string {
	w := warnings{}
	for _, vm := range desired {
		if vm.Device == "" {
			continue
		}
		if _, ok := lookups.ClusterDevices[vm.Device]; ok {
			continue
		}
		if _, ok := lookups.GlobalDevices[vm.Device]; ok {
			w.add(fmt.Sprintf("Device '%s' exists but is not assigned to Cluster '%s'!", vm.Device, lookups.ClusterName))
		} else {
			w.add(fmt.Sprintf("Device '%s' not found!", vm.Device))
		}
	}
	return w.list()
}
