package syncer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/proxsync/proxsync/pkg/applier"
	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/inventory"
	"github.com/proxsync/proxsync/pkg/log"
	"github.com/proxsync/proxsync/pkg/reconciler"
)

// run executes the pipeline for one connection. Each entity type is
// reconciled against the store as left by the previous type's apply.
func (s *Syncer) run(ctx context.Context, conn *models.Connection, clusterName string, protected map[string]struct{}) (*Result, error) {
	runID := uuid.New().String()
	logger := log.WithConnection("syncer", conn.ID, clusterName).With().Str("run_id", runID).Logger()
	logger.Info().Msg("Starting sync")

	if _, err := s.repos.customFields.EnsureVMIDField(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure vmid custom field: %w", err)
	}

	snap, err := fetch(ctx, s.newSource(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inventory from %s: %w", conn.String(), err)
	}
	state := s.normalizer.State(clusterName, snap.tags, snap.nodes, snap.vms, snap.ifaces)
	logger.Info().
		Int("tags", len(state.Tags)).
		Int("nodes", len(state.Nodes)).
		Int("vms", len(state.VMs)).
		Int("vminterfaces", len(state.VMInterfaces)).
		Msg("Fetched inventory")

	result := &Result{
		RunID:         runID,
		ConnectionID:  conn.ID,
		Cluster:       clusterName,
		SourceCluster: snap.cluster.Name,
	}
	apply := s.applier.WithLogger(logger)

	if result.Tags, err = s.syncTags(ctx, apply, state, protected); err != nil {
		return nil, err
	}
	if result.Nodes, err = s.syncNodes(ctx, apply, conn.ClusterID, state); err != nil {
		return nil, err
	}
	if result.VirtualMachines, err = s.syncVMs(ctx, apply, conn.ClusterID, clusterName, state); err != nil {
		return nil, err
	}
	if result.VMInterfaces, err = s.syncVMInterfaces(ctx, apply, conn.ClusterID, state); err != nil {
		return nil, err
	}

	for _, w := range result.Warnings() {
		logger.Warn().Msg(w)
	}
	logBatch(logger, "tags", result.Tags)
	logBatch(logger, "nodes", result.Nodes)
	logBatch(logger, "vms", result.VirtualMachines)
	logBatch(logger, "vminterfaces", result.VMInterfaces)
	return result, nil
}

func logBatch(logger zerolog.Logger, entity string, r *applier.Result) {
	logger.Info().
		Str("type", entity).
		Int("created", len(r.Created)).
		Int("updated", len(r.Updated)).
		Int("deleted", len(r.Deleted)).
		Int("errors", len(r.Errors)).
		Msg("Applied batch")
}

func (s *Syncer) syncTags(ctx context.Context, apply *applier.Applier, state *inventory.State, protected map[string]struct{}) (*applier.Result, error) {
	existing, err := s.repos.tags.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	return apply.Tags(ctx, s.reconciler.Tags(existing, state.Tags), protected), nil
}

func (s *Syncer) syncNodes(ctx context.Context, apply *applier.Applier, clusterID uint, state *inventory.State) (*applier.Result, error) {
	existing, err := s.repos.devices.ListByCluster(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}
	return apply.Nodes(ctx, clusterID, s.reconciler.Nodes(existing, state.Nodes)), nil
}

func (s *Syncer) syncVMs(ctx context.Context, apply *applier.Applier, clusterID uint, clusterName string, state *inventory.State) (*applier.Result, error) {
	devices, err := s.repos.devices.ListByCluster(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}
	global, err := s.repos.devices.ListNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load device names: %w", err)
	}
	owned, err := s.repos.tags.ListOwned(ctx, s.reconciler.TagSlugPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	existing, err := s.repos.vms.ListByCluster(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load virtual machines: %w", err)
	}

	lookups := reconciler.VMLookups{
		ClusterName:    clusterName,
		ClusterDevices: make(map[string]struct{}, len(devices)),
		GlobalDevices:  make(map[string]struct{}, len(global)),
		ManagedTags:    make(map[string]struct{}, len(owned)),
	}
	scope := applier.VMScope{
		ClusterID:   clusterID,
		Devices:     make(map[string]*models.Device, len(devices)),
		ManagedTags: make(map[string]models.Tag, len(owned)),
	}
	for i := range devices {
		lookups.ClusterDevices[devices[i].Name] = struct{}{}
		scope.Devices[devices[i].Name] = &devices[i]
	}
	for _, name := range global {
		lookups.GlobalDevices[name] = struct{}{}
	}
	for _, tag := range owned {
		lookups.ManagedTags[tag.Name] = struct{}{}
		scope.ManagedTags[tag.Name] = tag
	}

	return apply.VirtualMachines(ctx, scope, s.reconciler.VirtualMachines(existing, state.VMs, lookups)), nil
}

func (s *Syncer) syncVMInterfaces(ctx context.Context, apply *applier.Applier, clusterID uint, state *inventory.State) (*applier.Result, error) {
	vms, err := s.repos.vms.ListByCluster(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load virtual machines: %w", err)
	}
	vlans, err := s.repos.vlans.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load VLANs: %w", err)
	}
	existing, err := s.repos.ifaces.ListByCluster(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load VM interfaces: %w", err)
	}

	scope := applier.InterfaceScope{
		VirtualMachines: make(map[string]*models.VirtualMachine, len(vms)),
		VLANs:           reconciler.VLANIndex(vlans),
	}
	for i := range vms {
		if _, dup := scope.VirtualMachines[vms[i].Name]; !dup {
			scope.VirtualMachines[vms[i].Name] = &vms[i]
		}
	}

	return apply.VMInterfaces(ctx, scope, s.reconciler.VMInterfaces(existing, state.VMInterfaces, vlans)), nil
}
