package applier

import (
	"context"
	"fmt"

	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/database/repositories"
	"github.com/proxsync/proxsync/pkg/inventory"
	"github.com/proxsync/proxsync/pkg/reconciler"
)

// Nodes applies a node plan. Created nodes get the baseline site, type and
// role; interfaces are only ever added.
func (a *Applier) Nodes(ctx context.Context, clusterID uint, plan *reconciler.NodePlan) *Result {
	result := newResult(plan.Warnings)
	logger := a.logger.With().Str("type", "node").Logger()

	var baseline *repositories.DeviceBaseline
	for _, desired := range plan.Create {
		if baseline == nil {
			b, err := a.stores.Devices.EnsureBaseline(ctx)
			if err != nil {
				result.fail(logger, err, "failed to create node %q", desired.Name)
				continue
			}
			baseline = b
		}

		device := &models.Device{
			Name:         desired.Name,
			Status:       desired.Status,
			ClusterID:    &clusterID,
			SiteID:       baseline.SiteID,
			DeviceTypeID: baseline.DeviceTypeID,
			RoleID:       baseline.RoleID,
		}
		if err := a.stores.Devices.Create(ctx, device); err != nil {
			result.fail(logger, err, "failed to create node %q", desired.Name)
			continue
		}
		result.Created = append(result.Created, device.Summary())

		if err := a.syncNodeInterfaces(ctx, device, desired.Interfaces); err != nil {
			result.fail(logger, err, "failed to sync interfaces of node %q", desired.Name)
		}
	}

	for _, u := range plan.Update {
		device := u.Before
		device.Status = u.After.Status
		device.ClusterID = &clusterID
		if err := a.stores.Devices.Update(ctx, device); err != nil {
			result.fail(logger, err, "failed to update node %q", device.Name)
			continue
		}
		result.Updated = append(result.Updated, device.Summary())

		if err := a.syncNodeInterfaces(ctx, device, u.After.Interfaces); err != nil {
			result.fail(logger, err, "failed to sync interfaces of node %q", device.Name)
		}
	}

	return result
}

func (a *Applier) syncNodeInterfaces(ctx context.Context, device *models.Device, ifaces []inventory.NodeInterface) error {
	for _, iface := range ifaces {
		if device.HasInterface(iface.Name) {
			continue
		}
		created, err := a.stores.Devices.EnsureInterface(ctx, device.ID, iface.Name, iface.Type)
		if err != nil {
			return fmt.Errorf("interface %q: %w", iface.Name, err)
		}
		device.Interfaces = append(device.Interfaces, *created)
	}
	return nil
}
