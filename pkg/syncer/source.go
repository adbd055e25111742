package syncer

import (
	"context"

	"github.com/proxsync/proxsync/pkg/config"
	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/proxmox"
)

// Source is the read side of one Proxmox VE cluster
type Source interface {
	Cluster(ctx context.Context) (*proxmox.ClusterStatus, error)
	Tags(ctx context.Context) (map[string]string, error)
	Nodes(ctx context.Context) ([]proxmox.Node, error)
	VirtualMachines(ctx context.Context) ([]proxmox.VirtualMachine, error)
	VMInterfaces(ctx context.Context) ([]proxmox.VMInterface, error)
}

// SourceFactory opens a Source for a stored connection
type SourceFactory func(conn *models.Connection) Source

// ProxmoxSource returns a factory building API clients with the sync settings
func ProxmoxSource(cfg config.SyncConfig) SourceFactory {
	return func(conn *models.Connection) Source {
		return proxmox.NewClient(proxmox.Config{
			Host:        conn.Host,
			Port:        conn.Port,
			User:        conn.User,
			TokenID:     conn.TokenID,
			TokenSecret: conn.TokenSecret,
			VerifySSL:   conn.VerifySSL,
			Timeout:     cfg.RequestTimeout,
			Concurrency: cfg.FetchConcurrency,
			Debug:       cfg.Debug,
		})
	}
}

// snapshot is the raw inventory of one cluster
type snapshot struct {
	cluster *proxmox.ClusterStatus
	tags    map[string]string
	nodes   []proxmox.Node
	vms     []proxmox.VirtualMachine
	ifaces  []proxmox.VMInterface
}

// fetch reads the full inventory. Any failure is fatal for the run.
func fetch(ctx context.Context, src Source) (*snapshot, error) {
	var (
		snap snapshot
		err  error
	)
	if snap.cluster, err = src.Cluster(ctx); err != nil {
		return nil, err
	}
	if snap.tags, err = src.Tags(ctx); err != nil {
		return nil, err
	}
	if snap.nodes, err = src.Nodes(ctx); err != nil {
		return nil, err
	}
	if snap.vms, err = src.VirtualMachines(ctx); err != nil {
		return nil, err
	}
	if snap.ifaces, err = src.VMInterfaces(ctx); err != nil {
		return nil, err
	}
	return &snap, nil
}
