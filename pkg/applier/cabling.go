package applier

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"gorm.io/gorm"

	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/inventory"
)

var slotIndexPattern = regexp.MustCompile(`(\d+)$`)

// TapName returns the name Proxmox gives the host side of a guest NIC
func TapName(vmid, index int) string {
	return fmt.Sprintf("tap%di%d", vmid, index)
}

// SlotIndex parses the trailing index of a source-side slot such as "net1"
func SlotIndex(slot string) (int, bool) {
	m := slotIndexPattern.FindStringSubmatch(slot)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// syncCable connects the VM interface to the tap interface of its hosting
// node, bridged to the desired bridge. An existing correct cable is kept.
func (a *Applier) syncCable(ctx context.Context, iface *models.VMInterface, vm *models.VirtualMachine, desired inventory.VMInterface) error {
	vmid, ok := vm.VMID()
	if !ok || vmid <= 0 {
		return nil
	}
	index, ok := SlotIndex(desired.Slot())
	if !ok {
		return nil
	}

	device, err := a.hostDevice(ctx, vm, desired.Node)
	if err != nil {
		return err
	}

	bridge, err := a.stores.Devices.EnsureInterface(ctx, device.ID, desired.Bridge, models.InterfaceTypeBridge)
	if err != nil {
		return fmt.Errorf("bridge %q: %w", desired.Bridge, err)
	}
	tapName := TapName(vmid, index)
	tap, err := a.stores.Devices.EnsureInterface(ctx, device.ID, tapName, models.InterfaceTypeVirtual)
	if err != nil {
		return fmt.Errorf("tap %q: %w", tapName, err)
	}
	if err := a.stores.Devices.SetInterfaceBridge(ctx, tap, bridge.ID); err != nil {
		return fmt.Errorf("tap %q: %w", tapName, err)
	}

	current, err := a.stores.Cables.FindByTermination(ctx, models.ObjectTypeVMInterface, iface.ID)
	if err != nil {
		return err
	}
	if current != nil {
		if current.Connects(models.ObjectTypeVMInterface, iface.ID, models.ObjectTypeInterface, tap.ID) {
			iface.CableID = &current.ID
			return nil
		}
		if err := a.stores.Cables.Delete(ctx, current.ID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("remove stale cable: %w", err)
		}
	}

	tapCable, err := a.stores.Cables.FindByTermination(ctx, models.ObjectTypeInterface, tap.ID)
	if err != nil {
		return err
	}
	if tapCable != nil {
		if err := a.stores.Cables.Delete(ctx, tapCable.ID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("remove cable of %q: %w", tapName, err)
		}
	}

	cable, err := a.stores.Cables.Connect(ctx, models.ObjectTypeVMInterface, iface.ID, models.ObjectTypeInterface, tap.ID)
	if err != nil {
		return err
	}
	iface.CableID = &cable.ID
	return nil
}

// hostDevice prefers the device assigned to the VM, then the node name
// matched exactly, then ignoring case.
func (a *Applier) hostDevice(ctx context.Context, vm *models.VirtualMachine, node string) (*models.Device, error) {
	if vm.DeviceID != nil {
		device, err := a.stores.Devices.GetByID(ctx, *vm.DeviceID)
		if err == nil {
			return device, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if node == "" {
		return nil, fmt.Errorf("virtual machine %q has no hosting device", vm.Name)
	}

	device, err := a.stores.Devices.FindByName(ctx, node)
	if err == nil {
		return device, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	device, err = a.stores.Devices.FindByNameFold(ctx, node)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("hosting device %q not found", node)
		}
		return nil, err
	}
	return device, nil
}
