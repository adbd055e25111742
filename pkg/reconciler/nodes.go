package reconciler

import (
	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/inventory"
)

// NodePlan is the categorized node batch. It never contains deletes.
type NodePlan = Plan[*models.Device, inventory.Node]

// Nodes matches desired nodes by name against the devices of the cluster
func (r *Reconciler) Nodes(existing []models.Device, desired []inventory.Node) *NodePlan {
	records := pointers(existing)

	byName := newMatcher(records,
		func(d *models.Device) []string { return []string{d.Name} },
		func(n inventory.Node) (string, bool) { return n.Name, true },
	)

	plan := &NodePlan{}
	plan.Create, plan.Update, _ = categorize(desired,
		func(n inventory.Node) string { return n.Name },
		[]matcher[*models.Device, inventory.Node]{byName},
		func(d *models.Device) uint { return d.ID },
		NodesEqual,
	)
	plan.Warnings = []string{}
	return plan
}

// NodesEqual compares status and the presence of every desired interface
func NodesEqual(existing *models.Device, desired inventory.Node) bool {
	if existing.Status != desired.Status {
		return false
	}
	for _, iface := range desired.Interfaces {
		if !existing.HasInterface(iface.Name) {
			return false
		}
	}
	return true
}
