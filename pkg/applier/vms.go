package applier

import (
	"context"

	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/inventory"
	"github.com/proxsync/proxsync/pkg/reconciler"
)

// VMScope holds the cluster records virtual machines are resolved against
type VMScope struct {
	ClusterID uint
	// Devices of the cluster by name
	Devices map[string]*models.Device
	// ManagedTags are the owned tags by name
	ManagedTags map[string]models.Tag
}

// VirtualMachines applies a virtual machine plan. Unknown devices are left
// unassigned and unknown tags dropped; both were warned about by the reconciler.
func (a *Applier) VirtualMachines(ctx context.Context, scope VMScope, plan *reconciler.VMPlan) *Result {
	result := newResult(plan.Warnings)
	logger := a.logger.With().Str("type", "virtual_machine").Logger()

	for _, desired := range plan.Create {
		vm := &models.VirtualMachine{ClusterID: scope.ClusterID}
		scope.assign(vm, desired)
		if err := a.stores.VirtualMachines.Create(ctx, vm); err != nil {
			result.fail(logger, err, "failed to create virtual machine %q", desired.Name)
			continue
		}
		result.Created = append(result.Created, vm.Summary())

		if err := a.stores.VirtualMachines.ReplaceTags(ctx, vm, scope.tags(desired.Tags)); err != nil {
			result.fail(logger, err, "failed to set tags of virtual machine %q", vm.Name)
		}
	}

	for _, u := range plan.Update {
		vm := u.Before
		vm.ClusterID = scope.ClusterID
		scope.assign(vm, u.After)
		if err := a.stores.VirtualMachines.Update(ctx, vm); err != nil {
			result.fail(logger, err, "failed to update virtual machine %q", vm.Name)
			continue
		}
		result.Updated = append(result.Updated, vm.Summary())

		if err := a.stores.VirtualMachines.ReplaceTags(ctx, vm, scope.tags(u.After.Tags)); err != nil {
			result.fail(logger, err, "failed to set tags of virtual machine %q", vm.Name)
		}
	}

	for _, vm := range plan.Delete {
		if err := a.stores.VirtualMachines.Delete(ctx, vm.ID); err != nil && !isGone(err) {
			result.fail(logger, err, "failed to delete virtual machine %q", vm.Name)
			continue
		}
		result.Deleted = append(result.Deleted, vm.Summary())
	}

	return result
}

func (s VMScope) assign(vm *models.VirtualMachine, desired inventory.VirtualMachine) {
	vm.Name = desired.Name
	vm.Status = desired.Status
	vm.VCPUs = desired.VCPUs
	vm.Memory = desired.Memory
	vm.Disk = desired.Disk
	if desired.VMID > 0 {
		vm.SetVMID(desired.VMID)
	}

	if device, ok := s.Devices[desired.Device]; ok && desired.Device != "" {
		vm.Device = device
		vm.DeviceID = &device.ID
	} else {
		vm.Device = nil
		vm.DeviceID = nil
	}
}

func (s VMScope) tags(names []string) []models.Tag {
	tags := make([]models.Tag, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if tag, ok := s.ManagedTags[name]; ok {
			tags = append(tags, tag)
		}
	}
	return tags
}
