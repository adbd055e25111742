package reconciler

import (
	"fmt"
	"sort"

	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/inventory"
)

// VMInterfacePlan is the categorized VM interface batch
type VMInterfacePlan = Plan[*models.VMInterface, inventory.VMInterface]

// VMInterfaces matches desired interfaces by MAC address first, then by
// name. Unmatched protected interfaces are left alone.
func (r *Reconciler) VMInterfaces(existing []models.VMInterface, desired []inventory.VMInterface, vlans []models.VLAN) *VMInterfacePlan {
	records := pointers(existing)
	vids := VLANIndex(vlans)

	byMAC := newMatcher(records,
		func(i *models.VMInterface) []string { return i.MACs() },
		func(i inventory.VMInterface) (string, bool) { return i.MACAddress, i.MACAddress != "" },
	)
	byName := newMatcher(records,
		func(i *models.VMInterface) []string { return []string{i.Name} },
		func(i inventory.VMInterface) (string, bool) { return i.Name, true },
	)

	plan := &VMInterfacePlan{}
	var claimed map[uint]struct{}
	plan.Create, plan.Update, claimed = categorize(desired,
		func(i inventory.VMInterface) string { return i.Name },
		[]matcher[*models.VMInterface, inventory.VMInterface]{byMAC, byName},
		func(i *models.VMInterface) uint { return i.ID },
		func(e *models.VMInterface, d inventory.VMInterface) bool {
			return VMInterfacesEqual(e, d, vids)
		},
	)

	for _, iface := range records {
		if _, ok := claimed[iface.ID]; ok {
			continue
		}
		if r.isProtectedInterface(iface.Name, iface.Description) {
			continue
		}
		plan.Delete = append(plan.Delete, iface)
	}

	plan.Warnings = VMInterfaceWarnings(desired, vids)
	return plan
}

// VLANIndex maps VLAN VIDs to record IDs. The first record per VID wins.
func VLANIndex(vlans []models.VLAN) map[int]uint {
	vids := make(map[int]uint, len(vlans))
	for _, v := range vlans {
		if _, dup := vids[v.VID]; !dup {
			vids[v.VID] = v.ID
		}
	}
	return vids
}

// VMInterfacesEqual compares VLAN, names, cable presence, MAC and IP set.
// vids maps known VLAN VIDs to their record IDs.
func VMInterfacesEqual(existing *models.VMInterface, desired inventory.VMInterface, vids map[int]uint) bool {
	if !vlanEqual(existing, desired.VLAN, vids) {
		return false
	}
	if existing.Name != desired.Name || existing.VirtualMachineName() != desired.VirtualMachine {
		return false
	}
	if desired.Bridge != "" && existing.CableID == nil {
		return false
	}

	macs := existing.MACs()
	if len(macs) == 0 {
		if desired.MACAddress != "" {
			return false
		}
	} else if !contains(macs, desired.MACAddress) {
		return false
	}

	current := make([]string, 0, len(existing.IPAddresses))
	for _, ip := range existing.IPAddresses {
		current = append(current, ip.Address)
	}
	return sameSet(current, desired.IPAddresses)
}

func vlanEqual(existing *models.VMInterface, vid *int, vids map[int]uint) bool {
	if vid == nil {
		return existing.UntaggedVLANID == nil
	}
	id, known := vids[*vid]
	if !known {
		return true
	}
	return existing.UntaggedVLANID != nil && *existing.UntaggedVLANID == id
}

// VMInterfaceWarnings reports desired VLAN VIDs without a VLAN record
func VMInterfaceWarnings(desired []inventory.VMInterface, vids map[int]uint) []string {
	w := warnings{}
	for _, iface := range desired {
		if iface.VLAN == nil {
			continue
		}
		if _, ok := vids[*iface.VLAN]; !ok {
			w.add(fmt.Sprintf("VLAN with VID=%d was not found!", *iface.VLAN))
		}
	}
	return w.list()
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func sameSet(a, b []string) bool {
	x := dedupe(a)
	y := dedupe(b)
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func dedupe(list []string) []string {
	set := make(map[string]struct{}, len(list))
	for _, s := range list {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
