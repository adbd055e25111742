package applier

import (
	"context"
	"errors"
	"fmt"

	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/inventory"
	"github.com/proxsync/proxsync/pkg/reconciler"
)

// InterfaceScope holds the records VM interfaces are resolved against
type InterfaceScope struct {
	// VirtualMachines of the cluster by name, as stored after the VM batch
	VirtualMachines map[string]*models.VirtualMachine
	// VLANs maps VIDs to VLAN record IDs
	VLANs map[int]uint
}

// VMInterfaces applies a VM interface plan. After the interface row is
// written its MAC, IP and cable state are synced as separate steps; a
// failure in one of them is reported without undoing the row.
func (a *Applier) VMInterfaces(ctx context.Context, scope InterfaceScope, plan *reconciler.VMInterfacePlan) *Result {
	result := newResult(plan.Warnings)
	logger := a.logger.With().Str("type", "vm_interface").Logger()

	for _, desired := range plan.Create {
		vm, ok := scope.VirtualMachines[desired.VirtualMachine]
		if !ok {
			result.fail(logger, errors.New("virtual machine not found"), "failed to create VM interface %q", desired.Name)
			continue
		}
		iface := &models.VMInterface{}
		scope.assign(iface, vm, desired)
		if err := a.stores.VMInterfaces.Create(ctx, iface); err != nil {
			result.fail(logger, err, "failed to create VM interface %q", desired.Name)
			continue
		}
		result.Created = append(result.Created, iface.Summary())
		a.syncDerived(ctx, result, iface, vm, desired)
	}

	for _, u := range plan.Update {
		vm, ok := scope.VirtualMachines[u.After.VirtualMachine]
		if !ok {
			result.fail(logger, errors.New("virtual machine not found"), "failed to update VM interface %q", u.Before.Name)
			continue
		}
		iface := u.Before
		scope.assign(iface, vm, u.After)
		if err := a.stores.VMInterfaces.Update(ctx, iface); err != nil {
			result.fail(logger, err, "failed to update VM interface %q", iface.Name)
			continue
		}
		result.Updated = append(result.Updated, iface.Summary())
		a.syncDerived(ctx, result, iface, vm, u.After)
	}

	for _, iface := range plan.Delete {
		if err := a.stores.VMInterfaces.ClearMACs(ctx, iface.ID, 0); err != nil {
			result.fail(logger, err, "failed to delete VM interface %q", iface.Name)
			continue
		}
		// interfaces of a deleted virtual machine are already gone
		if err := a.stores.VMInterfaces.Delete(ctx, iface.ID); err != nil && !isGone(err) {
			result.fail(logger, err, "failed to delete VM interface %q", iface.Name)
			continue
		}
		result.Deleted = append(result.Deleted, iface.Summary())
	}

	return result
}

func (s InterfaceScope) assign(iface *models.VMInterface, vm *models.VirtualMachine, desired inventory.VMInterface) {
	iface.Name = desired.Name
	iface.VirtualMachineID = vm.ID
	iface.VirtualMachine = vm

	switch {
	case desired.VLAN == nil:
		iface.Mode = ""
		iface.UntaggedVLANID = nil
		iface.UntaggedVLAN = nil
	default:
		// an unknown VID leaves the current assignment alone
		if id, ok := s.VLANs[*desired.VLAN]; ok {
			iface.Mode = models.InterfaceModeAccess
			iface.UntaggedVLANID = &id
			iface.UntaggedVLAN = nil
		}
	}
}

func (a *Applier) syncDerived(ctx context.Context, result *Result, iface *models.VMInterface, vm *models.VirtualMachine, desired inventory.VMInterface) {
	logger := a.logger.With().Str("type", "vm_interface").Str("interface", iface.Name).Logger()

	if err := a.syncMAC(ctx, iface, desired.MACAddress); err != nil {
		result.fail(logger, err, "failed to sync MAC address of %q", iface.Name)
	}
	if err := a.syncIPs(ctx, iface, desired.IPAddresses); err != nil {
		result.fail(logger, err, "failed to sync IP addresses of %q", iface.Name)
	}
	if desired.Bridge != "" {
		if err := a.syncCable(ctx, iface, vm, desired); err != nil {
			result.fail(logger, err, "failed to sync cable of %q", iface.Name)
		}
	}
}

// syncMAC keeps at most one MAC object bound to the interface
func (a *Applier) syncMAC(ctx context.Context, iface *models.VMInterface, address string) error {
	if address == "" {
		return a.stores.VMInterfaces.ClearMACs(ctx, iface.ID, 0)
	}
	mac, err := a.stores.VMInterfaces.AssignMAC(ctx, iface.ID, address)
	if err != nil {
		return err
	}
	return a.stores.VMInterfaces.ClearMACs(ctx, iface.ID, mac.ID)
}

// syncIPs binds new addresses and releases the ones no longer reported
func (a *Applier) syncIPs(ctx context.Context, iface *models.VMInterface, addresses []string) error {
	current, err := a.stores.VMInterfaces.ListIPs(ctx, iface.ID)
	if err != nil {
		return err
	}

	have := make(map[string]struct{}, len(current))
	for _, ip := range current {
		have[ip.Address] = struct{}{}
	}
	want := make(map[string]struct{}, len(addresses))
	for _, addr := range addresses {
		want[addr] = struct{}{}
	}

	var errs []error
	for _, addr := range addresses {
		if _, ok := have[addr]; ok {
			continue
		}
		have[addr] = struct{}{}
		if _, err := a.stores.VMInterfaces.AssignIP(ctx, iface.ID, addr); err != nil {
			errs = append(errs, fmt.Errorf("assign %s: %w", addr, err))
		}
	}
	for _, ip := range current {
		if _, ok := want[ip.Address]; ok {
			continue
		}
		if err := a.stores.VMInterfaces.UnassignIP(ctx, iface.ID, ip.Address); err != nil {
			errs = append(errs, fmt.Errorf("unassign %s: %w", ip.Address, err))
		}
	}
	return errors.Join(errs...)
}
