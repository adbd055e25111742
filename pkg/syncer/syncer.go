// Package syncer orchestrates one sync run per Proxmox connection: fetch,
// normalize, then reconcile and apply tags, nodes, virtual machines and VM
// interfaces in that order.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/proxsync/proxsync/pkg/applier"
	"github.com/proxsync/proxsync/pkg/config"
	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/database/repositories"
	"github.com/proxsync/proxsync/pkg/log"
	"github.com/proxsync/proxsync/pkg/normalizer"
	"github.com/proxsync/proxsync/pkg/reconciler"
)

var (
	// ErrSyncInProgress is returned when the connection is already being synced
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrConnectionNotFound is returned for an unknown connection ID
	ErrConnectionNotFound = errors.New("connection not found")
)

// Result is the outcome of one connection sync
type Result struct {
	RunID           string          `json:"run_id"`
	ConnectionID    uint            `json:"connection_id"`
	Cluster         string          `json:"cluster"`
	SourceCluster   string          `json:"source_cluster"`
	Tags            *applier.Result `json:"tags"`
	Nodes           *applier.Result `json:"nodes"`
	VirtualMachines *applier.Result `json:"vms"`
	VMInterfaces    *applier.Result `json:"vminterfaces"`
	Elapsed         float64         `json:"elapsed"`
}

func (r *Result) batches() []*applier.Result {
	return []*applier.Result{r.Tags, r.Nodes, r.VirtualMachines, r.VMInterfaces}
}

// Counts sums the created, updated and deleted records of all batches
func (r *Result) Counts() (created, updated, deleted int) {
	for _, b := range r.batches() {
		if b != nil {
			created += len(b.Created)
			updated += len(b.Updated)
			deleted += len(b.Deleted)
		}
	}
	return created, updated, deleted
}

// Errors returns the per-item errors of all batches
func (r *Result) Errors() []string {
	var out []string
	for _, b := range r.batches() {
		if b != nil {
			out = append(out, b.Errors...)
		}
	}
	return out
}

// Warnings returns the warnings of all batches
func (r *Result) Warnings() []string {
	var out []string
	for _, b := range r.batches() {
		if b != nil {
			out = append(out, b.Warnings...)
		}
	}
	return out
}

// Failure is a connection whose sync failed during a sweep
type Failure struct {
	ConnectionID uint   `json:"connection_id"`
	Connection   string `json:"connection"`
	Error        string `json:"error"`
}

// SweepReport is the outcome of syncing every connection
type SweepReport struct {
	RunID    string    `json:"run_id"`
	Results  []*Result `json:"results"`
	Failures []Failure `json:"failures"`
	Elapsed  float64   `json:"elapsed"`
}

type repos struct {
	connections  *repositories.ConnectionRepository
	customFields *repositories.CustomFieldRepository
	tags         *repositories.TagRepository
	devices      *repositories.DeviceRepository
	vms          *repositories.VirtualMachineRepository
	ifaces       *repositories.VMInterfaceRepository
	vlans        *repositories.VLANRepository
}

type Syncer struct {
	repos      repos
	newSource  SourceFactory
	normalizer *normalizer.Normalizer
	reconciler *reconciler.Reconciler
	applier    *applier.Applier
	logger     zerolog.Logger

	locks sync.Map
}

// New builds a Syncer on the record store. newSource defaults to the
// Proxmox API client.
func New(db *gorm.DB, cfg config.SyncConfig, newSource SourceFactory) *Syncer {
	if newSource == nil {
		newSource = ProxmoxSource(cfg)
	}
	return &Syncer{
		repos: repos{
			connections:  repositories.NewConnectionRepository(db),
			customFields: repositories.NewCustomFieldRepository(db),
			tags:         repositories.NewTagRepository(db),
			devices:      repositories.NewDeviceRepository(db),
			vms:          repositories.NewVirtualMachineRepository(db),
			ifaces:       repositories.NewVMInterfaceRepository(db),
			vlans:        repositories.NewVLANRepository(db),
		},
		newSource:  newSource,
		normalizer: normalizer.New(normalizer.Options{Debug: cfg.Debug}),
		reconciler: reconciler.New(reconciler.Options{
			ProtectedInterfacePrefixes:  cfg.ProtectedInterfacePrefixes,
			ProtectedDescriptionMarkers: cfg.ProtectedDescriptionMarkers,
		}),
		applier: applier.New(applier.NewStores(db)),
		logger:  log.WithComponent("syncer"),
	}
}

func (s *Syncer) lockFor(id uint) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// SyncConnection runs one sync of the connection. Tags still defined on the
// other connections are protected from deletion; a sibling that cannot be
// reached protects nothing.
func (s *Syncer) SyncConnection(ctx context.Context, id uint) (*Result, error) {
	conns, err := s.repos.connections.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	var conn *models.Connection
	var siblings []models.Connection
	for i := range conns {
		if conns[i].ID == id {
			conn = &conns[i]
		} else {
			siblings = append(siblings, conns[i])
		}
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: %d", ErrConnectionNotFound, id)
	}

	tagsByConn := s.siblingTags(ctx, siblings)
	return s.sync(ctx, conn, protectedTags(tagsByConn, id))
}

// SyncAll syncs every connection in turn. The sibling tags are read once
// for the whole sweep; a failed connection is reported and skipped.
func (s *Syncer) SyncAll(ctx context.Context) (*SweepReport, error) {
	start := time.Now()
	conns, err := s.repos.connections.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	report := &SweepReport{
		RunID:    uuid.New().String(),
		Results:  []*Result{},
		Failures: []Failure{},
	}
	tagsByConn := s.siblingTags(ctx, conns)

	for i := range conns {
		conn := &conns[i]
		s.logger.Info().Uint("connection_id", conn.ID).Str("connection", conn.String()).Msg("Syncing connection")

		result, err := s.sync(ctx, conn, protectedTags(tagsByConn, conn.ID))
		if err != nil {
			s.logger.Error().Err(err).Uint("connection_id", conn.ID).Msg("Failed to sync connection")
			report.Failures = append(report.Failures, Failure{
				ConnectionID: conn.ID,
				Connection:   conn.String(),
				Error:        err.Error(),
			})
			continue
		}
		report.Results = append(report.Results, result)
	}

	report.Elapsed = time.Since(start).Seconds()
	return report, nil
}

// siblingTags reads the tag names defined on each connection
func (s *Syncer) siblingTags(ctx context.Context, conns []models.Connection) map[uint][]string {
	out := make(map[uint][]string, len(conns))
	for i := range conns {
		tags, err := s.newSource(&conns[i]).Tags(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Uint("connection_id", conns[i].ID).
				Msg("Failed to read tags of connection, its tags are not protected")
			continue
		}
		names := make([]string, 0, len(tags))
		for name := range tags {
			names = append(names, name)
		}
		out[conns[i].ID] = names
	}
	return out
}

// protectedTags unions the tag names of every connection except self
func protectedTags(tagsByConn map[uint][]string, self uint) map[string]struct{} {
	protected := make(map[string]struct{})
	for id, names := range tagsByConn {
		if id == self {
			continue
		}
		for _, name := range names {
			protected[name] = struct{}{}
		}
	}
	return protected
}

func (s *Syncer) sync(ctx context.Context, conn *models.Connection, protected map[string]struct{}) (*Result, error) {
	mu := s.lockFor(conn.ID)
	if !mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer mu.Unlock()

	clusterName := ""
	if conn.Cluster != nil {
		clusterName = conn.Cluster.Name
	}

	start := time.Now()
	result, err := s.run(ctx, conn, clusterName, protected)
	elapsed := time.Since(start).Seconds()
	recordRun(clusterName, err, elapsed)
	if err != nil {
		return nil, err
	}

	result.Elapsed = elapsed
	recordResult(result, float64(time.Now().Unix()))
	return result, nil
}
