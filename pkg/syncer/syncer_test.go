package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/proxsync/proxsync/pkg/config"
	"github.com/proxsync/proxsync/pkg/database"
	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/database/repositories"
	"github.com/proxsync/proxsync/pkg/proxmox"
)

// fakeSource serves a fixed inventory
type fakeSource struct {
	name    string
	tags    map[string]string
	nodes   []proxmox.Node
	vms     []proxmox.VirtualMachine
	ifaces  []proxmox.VMInterface
	err     error
	tagsErr error
}

func (f *fakeSource) Cluster(ctx context.Context) (*proxmox.ClusterStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &proxmox.ClusterStatus{Type: "cluster", Name: f.name}, nil
}

func (f *fakeSource) Tags(ctx context.Context) (map[string]string, error) {
	if f.tagsErr != nil {
		return nil, f.tagsErr
	}
	return f.tags, nil
}

func (f *fakeSource) Nodes(ctx context.Context) ([]proxmox.Node, error) { return f.nodes, nil }

func (f *fakeSource) VirtualMachines(ctx context.Context) ([]proxmox.VirtualMachine, error) {
	return f.vms, nil
}

func (f *fakeSource) VMInterfaces(ctx context.Context) ([]proxmox.VMInterface, error) {
	return f.ifaces, nil
}

// fakeSources maps connection hosts to sources
type fakeSources struct {
	mu      sync.Mutex
	sources map[string]*fakeSource
}

func (f *fakeSources) factory(conn *models.Connection) Source {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sources[conn.Host]
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.AllModels()...))
	return db
}

func labSource() *fakeSource {
	return &fakeSource{
		name: "lab",
		tags: map[string]string{"prod": "ff0000", "web": ""},
		nodes: []proxmox.Node{{
			Name:       "pve1",
			Status:     "online",
			Interfaces: []proxmox.NodeInterface{{Iface: "vmbr0", Type: "bridge"}},
		}},
		vms: []proxmox.VirtualMachine{{
			VMID:    101,
			Name:    "web1",
			Node:    "pve1",
			Status:  "running",
			Tags:    []string{"prod"},
			MaxDisk: 32 << 30,
			Sockets: 1,
			Cores:   2,
			Memory:  2048,
		}},
		ifaces: []proxmox.VMInterface{{
			VM:   "web1",
			Name: "web1:net0",
			Info: "virtio=aa:bb:cc:dd:ee:01,bridge=vmbr0",
			IPs:  []string{"10.0.0.5/24"},
			Node: "pve1",
		}},
	}
}

func addConnection(t *testing.T, db *gorm.DB, cluster, host string) *models.Connection {
	t.Helper()
	conn := &models.Connection{Host: host, Port: 8006, User: "root@pam", TokenID: "sync", TokenSecret: "s3cret"}
	require.NoError(t, repositories.NewConnectionRepository(db).Create(context.Background(), cluster, conn))
	return conn
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		FetchConcurrency:           1,
		ProtectedInterfacePrefixes: []string{"wg"},
	}
}

func TestSyncConnection(t *testing.T) {
	db := newTestDB(t)
	conn := addConnection(t, db, "lab", "pve-lab")
	sources := &fakeSources{sources: map[string]*fakeSource{"pve-lab": labSource()}}
	s := New(db, testSyncConfig(), sources.factory)

	result, err := s.SyncConnection(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "lab", result.Cluster)
	assert.Equal(t, "lab", result.SourceCluster)
	assert.Empty(t, result.Errors())
	assert.Len(t, result.Tags.Created, 2)
	assert.Len(t, result.Nodes.Created, 1)
	assert.Len(t, result.VirtualMachines.Created, 1)
	assert.Len(t, result.VMInterfaces.Created, 1)

	var field models.CustomField
	require.NoError(t, db.Where("name = ?", models.CustomFieldVMID).First(&field).Error)

	// second run converges
	result, err = s.SyncConnection(context.Background(), conn.ID)
	require.NoError(t, err)
	for _, batch := range result.batches() {
		assert.Empty(t, batch.Created)
		assert.Empty(t, batch.Updated)
		assert.Empty(t, batch.Deleted)
	}
}

func TestSyncConnectionNotFound(t *testing.T) {
	db := newTestDB(t)
	s := New(db, testSyncConfig(), (&fakeSources{}).factory)

	_, err := s.SyncConnection(context.Background(), 42)
	assert.ErrorIs(t, err, ErrConnectionNotFound)
}

func TestSyncConnectionInProgress(t *testing.T) {
	db := newTestDB(t)
	conn := addConnection(t, db, "lab", "pve-lab")
	sources := &fakeSources{sources: map[string]*fakeSource{"pve-lab": labSource()}}
	s := New(db, testSyncConfig(), sources.factory)

	mu := s.lockFor(conn.ID)
	mu.Lock()
	defer mu.Unlock()

	_, err := s.SyncConnection(context.Background(), conn.ID)
	assert.ErrorIs(t, err, ErrSyncInProgress)
}

func TestSyncConnectionUnreachable(t *testing.T) {
	db := newTestDB(t)
	conn := addConnection(t, db, "lab", "pve-lab")
	src := labSource()
	src.err = proxmox.ErrUnreachable
	s := New(db, testSyncConfig(), (&fakeSources{sources: map[string]*fakeSource{"pve-lab": src}}).factory)

	_, err := s.SyncConnection(context.Background(), conn.ID)
	assert.ErrorIs(t, err, proxmox.ErrUnreachable)

	var count int64
	require.NoError(t, db.Model(&models.Tag{}).Count(&count).Error)
	assert.Zero(t, count, "nothing is written when the fetch fails")
}

func TestSyncConnectionPrimaryTagsFailure(t *testing.T) {
	db := newTestDB(t)
	conn := addConnection(t, db, "lab", "pve-lab")
	sources := &fakeSources{sources: map[string]*fakeSource{"pve-lab": labSource()}}
	s := New(db, testSyncConfig(), sources.factory)

	_, err := s.SyncConnection(context.Background(), conn.ID)
	require.NoError(t, err)

	// a failed tag read must not be taken as "no tags" and wipe them
	sources.sources["pve-lab"].tagsErr = errors.New("permission denied")
	_, err = s.SyncConnection(context.Background(), conn.ID)
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Tag{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSyncAllProtectsSiblingTags(t *testing.T) {
	db := newTestDB(t)
	lab := addConnection(t, db, "lab", "pve-lab")
	addConnection(t, db, "edge", "pve-edge")

	edge := labSource()
	edge.name = "edge"
	edge.tags = map[string]string{"web": ""}
	edge.vms = nil
	edge.ifaces = nil
	edge.nodes = []proxmox.Node{{Name: "pve9", Status: "online"}}

	sources := &fakeSources{sources: map[string]*fakeSource{"pve-lab": labSource(), "pve-edge": edge}}
	s := New(db, testSyncConfig(), sources.factory)

	report, err := s.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Results, 2)
	assert.Empty(t, report.Failures)

	// lab drops both tags, edge still defines "web"
	sources.sources["pve-lab"].tags = map[string]string{}
	sources.sources["pve-lab"].vms[0].Tags = nil
	result, err := s.SyncConnection(context.Background(), lab.ID)
	require.NoError(t, err)
	require.Len(t, result.Tags.Deleted, 1)
	assert.Equal(t, "prod", result.Tags.Deleted[0].Name)

	var tag models.Tag
	require.NoError(t, db.Where("name = ?", "web").First(&tag).Error)
}

func TestSyncAllIsolatesFailures(t *testing.T) {
	db := newTestDB(t)
	addConnection(t, db, "lab", "pve-lab")
	addConnection(t, db, "broken", "pve-broken")

	broken := labSource()
	broken.err = proxmox.ErrUnreachable
	broken.tagsErr = proxmox.ErrUnreachable

	sources := &fakeSources{sources: map[string]*fakeSource{"pve-lab": labSource(), "pve-broken": broken}}
	s := New(db, testSyncConfig(), sources.factory)

	report, err := s.SyncAll(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "lab", report.Results[0].Cluster)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Error, "unreachable")
}

func TestProtectedTags(t *testing.T) {
	got := protectedTags(map[uint][]string{1: {"a", "b"}, 2: {"b", "c"}, 3: {"d"}}, 1)
	assert.Equal(t, map[string]struct{}{"b": {}, "c": {}, "d": {}}, got)
}

func TestRunDisabled(t *testing.T) {
	s := New(newTestDB(t), testSyncConfig(), (&fakeSources{}).factory)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx, 0))
}
