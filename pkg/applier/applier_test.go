package applier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/proxsync/proxsync/pkg/database"
	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/database/repositories"
	"github.com/proxsync/proxsync/pkg/inventory"
	"github.com/proxsync/proxsync/pkg/reconciler"
)

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

type fixture struct {
	db      *gorm.DB
	applier *Applier
	cluster *models.Cluster
	rec     *reconciler.Reconciler
}

func newFixture(t *testing.T) *fixture {
	db := newTestDB(t)
	cluster := &models.Cluster{Name: "lab"}
	require.NoError(t, db.Create(cluster).Error)
	return &fixture{
		db:      db,
		applier: New(NewStores(db)),
		cluster: cluster,
		rec:     reconciler.New(reconciler.Options{}),
	}
}

func intPtr(v int) *int { return &v }

func TestTagsApply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tags := repositories.NewTagRepository(f.db)

	require.NoError(t, tags.Create(ctx, &models.Tag{Name: "old", Slug: "pxsync__old", Color: "d1d1d1"}))
	require.NoError(t, tags.Create(ctx, &models.Tag{Name: "shared", Slug: "pxsync__shared", Color: "d1d1d1"}))
	require.NoError(t, tags.Create(ctx, &models.Tag{Name: "prod", Slug: "pxsync__prod", Color: "d1d1d1"}))

	existing, err := tags.List(ctx)
	require.NoError(t, err)
	plan := f.rec.Tags(existing, []inventory.Tag{
		{Name: "prod", Slug: "pxsync__prod", Color: "ff0000"},
		{Name: "web", Slug: "pxsync__web", Color: "d1d1d1"},
	})

	result := f.applier.Tags(ctx, plan, map[string]struct{}{"shared": {}})
	assert.Empty(t, result.Errors)
	require.Len(t, result.Created, 1)
	assert.Equal(t, "web", result.Created[0].Name)
	assert.Equal(t, models.ObjectTypeTag, result.Created[0].Model)
	require.Len(t, result.Updated, 1)
	require.Len(t, result.Deleted, 1)
	assert.Equal(t, "old", result.Deleted[0].Name)

	after, err := tags.List(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(after))
	for _, tag := range after {
		names = append(names, tag.Name)
	}
	assert.Equal(t, []string{"prod", "shared", "web"}, names)
	assert.Equal(t, []string{models.ObjectTypeVirtualMachine}, after[2].ObjectTypes)
}

type mockTagStore struct {
	mock.Mock
}

func (m *mockTagStore) Create(ctx context.Context, tag *models.Tag) error {
	return m.Called(tag.Name).Error(0)
}

func (m *mockTagStore) Update(ctx context.Context, tag *models.Tag) error {
	return m.Called(tag.Name).Error(0)
}

func (m *mockTagStore) Delete(ctx context.Context, id uint) error {
	return m.Called(id).Error(0)
}

func TestTagsApplyContinuesAfterFailure(t *testing.T) {
	store := new(mockTagStore)
	store.On("Create", "a").Return(errors.New("unique constraint failed"))
	store.On("Create", "b").Return(nil)
	store.On("Delete", uint(7)).Return(gorm.ErrRecordNotFound)

	a := New(Stores{Tags: store})
	result := a.Tags(context.Background(), &reconciler.TagPlan{
		Create: []inventory.Tag{{Name: "a"}, {Name: "b"}},
		Delete: []*models.Tag{{ID: 7, Name: "gone"}},
	}, nil)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `failed to create tag "a"`)
	assert.Len(t, result.Created, 1)
	assert.Len(t, result.Deleted, 1, "already deleted tags count as deleted")
	store.AssertExpectations(t)
}

func TestNodesApply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	devices := repositories.NewDeviceRepository(f.db)

	desired := []inventory.Node{{
		Name:   "pve1",
		Status: models.StatusActive,
		Interfaces: []inventory.NodeInterface{
			{Name: "vmbr0", Type: models.InterfaceTypeBridge},
			{Name: "eno1", Type: models.InterfaceTypeOther},
		},
	}}

	result := f.applier.Nodes(ctx, f.cluster.ID, f.rec.Nodes(nil, desired))
	assert.Empty(t, result.Errors)
	require.Len(t, result.Created, 1)

	existing, err := devices.ListByCluster(ctx, f.cluster.ID)
	require.NoError(t, err)
	require.Len(t, existing, 1)
	assert.Len(t, existing[0].Interfaces, 2)
	assert.NotZero(t, existing[0].RoleID)

	// second run converges
	assert.True(t, f.rec.Nodes(existing, desired).Empty())

	// a new interface is added, nothing is removed
	desired[0].Status = models.StatusOffline
	desired[0].Interfaces = []inventory.NodeInterface{{Name: "vmbr1", Type: models.InterfaceTypeBridge}}
	result = f.applier.Nodes(ctx, f.cluster.ID, f.rec.Nodes(existing, desired))
	assert.Empty(t, result.Errors)
	require.Len(t, result.Updated, 1)

	existing, err = devices.ListByCluster(ctx, f.cluster.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, existing[0].Status)
	assert.Len(t, existing[0].Interfaces, 3)
}

// syncCluster runs the full typed pipeline against the fixture store
func (f *fixture) syncCluster(t *testing.T, state inventory.State) []*Result {
	t.Helper()
	ctx := context.Background()

	devices := repositories.NewDeviceRepository(f.db)
	vms := repositories.NewVirtualMachineRepository(f.db)
	ifaces := repositories.NewVMInterfaceRepository(f.db)
	tags := repositories.NewTagRepository(f.db)
	vlans := repositories.NewVLANRepository(f.db)

	existingTags, err := tags.List(ctx)
	require.NoError(t, err)
	tagResult := f.applier.Tags(ctx, f.rec.Tags(existingTags, state.Tags), nil)

	existingNodes, err := devices.ListByCluster(ctx, f.cluster.ID)
	require.NoError(t, err)
	nodeResult := f.applier.Nodes(ctx, f.cluster.ID, f.rec.Nodes(existingNodes, state.Nodes))

	existingNodes, err = devices.ListByCluster(ctx, f.cluster.ID)
	require.NoError(t, err)
	owned, err := tags.ListOwned(ctx, f.rec.TagSlugPrefix())
	require.NoError(t, err)

	scope := VMScope{ClusterID: f.cluster.ID, Devices: map[string]*models.Device{}, ManagedTags: map[string]models.Tag{}}
	lookups := reconciler.VMLookups{ClusterName: f.cluster.Name, ClusterDevices: map[string]struct{}{}, ManagedTags: map[string]struct{}{}}
	for i := range existingNodes {
		scope.Devices[existingNodes[i].Name] = &existingNodes[i]
		lookups.ClusterDevices[existingNodes[i].Name] = struct{}{}
	}
	for _, tag := range owned {
		scope.ManagedTags[tag.Name] = tag
		lookups.ManagedTags[tag.Name] = struct{}{}
	}

	existingVMs, err := vms.ListByCluster(ctx, f.cluster.ID)
	require.NoError(t, err)
	vmResult := f.applier.VirtualMachines(ctx, scope, f.rec.VirtualMachines(existingVMs, state.VMs, lookups))

	existingVMs, err = vms.ListByCluster(ctx, f.cluster.ID)
	require.NoError(t, err)
	allVLANs, err := vlans.List(ctx)
	require.NoError(t, err)
	ifScope := InterfaceScope{VirtualMachines: map[string]*models.VirtualMachine{}, VLANs: reconciler.VLANIndex(allVLANs)}
	for i := range existingVMs {
		ifScope.VirtualMachines[existingVMs[i].Name] = &existingVMs[i]
	}

	existingIfaces, err := ifaces.ListByCluster(ctx, f.cluster.ID)
	require.NoError(t, err)
	ifResult := f.applier.VMInterfaces(ctx, ifScope, f.rec.VMInterfaces(existingIfaces, state.VMInterfaces, allVLANs))

	return []*Result{tagResult, nodeResult, vmResult, ifResult}
}

func labState() inventory.State {
	return inventory.State{
		Cluster: "lab",
		Tags:    []inventory.Tag{{Name: "prod", Slug: "pxsync__prod", Color: "ff0000"}},
		Nodes: []inventory.Node{{
			Name:       "pve1",
			Status:     models.StatusActive,
			Interfaces: []inventory.NodeInterface{{Name: "vmbr0", Type: models.InterfaceTypeBridge}},
		}},
		VMs: []inventory.VirtualMachine{{
			Name: "web1", VMID: 101, Status: models.StatusActive,
			VCPUs: 4, Memory: 4096, Disk: 32768, Device: "pve1",
			Tags: []string{"prod", "unknown"},
		}},
		VMInterfaces: []inventory.VMInterface{{
			Name:           "web1:net0",
			VirtualMachine: "web1",
			MACAddress:     "AA:BB:CC:DD:EE:01",
			VLAN:           intPtr(20),
			IPAddresses:    []string{"10.0.0.5/24"},
			Bridge:         "vmbr0",
			Node:           "pve1",
		}},
	}
}

func countOps(results []*Result) (created, updated, deleted int, errs []string) {
	for _, r := range results {
		created += len(r.Created)
		updated += len(r.Updated)
		deleted += len(r.Deleted)
		errs = append(errs, r.Errors...)
	}
	return
}

func TestFullSyncIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, repositories.NewVLANRepository(f.db).Create(ctx, &models.VLAN{VID: 20, Name: "servers"}))

	created, updated, deleted, errs := countOps(f.syncCluster(t, labState()))
	assert.Empty(t, errs)
	assert.Equal(t, 4, created)
	assert.Zero(t, updated)
	assert.Zero(t, deleted)

	created, updated, deleted, errs = countOps(f.syncCluster(t, labState()))
	assert.Empty(t, errs)
	assert.Zero(t, created)
	assert.Zero(t, updated, "second run must converge")
	assert.Zero(t, deleted)

	iface := loadInterface(t, f.db, "web1:net0")
	assert.Equal(t, []string{"AA:BB:CC:DD:EE:01"}, iface.MACs())
	require.NotNil(t, iface.UntaggedVLAN)
	assert.Equal(t, 20, iface.UntaggedVLAN.VID)
	assert.Equal(t, models.InterfaceModeAccess, iface.Mode)
	require.Len(t, iface.IPAddresses, 1)
	require.NotNil(t, iface.CableID)

	var tap models.Interface
	require.NoError(t, f.db.Where("name = ?", "tap101i0").First(&tap).Error)
	require.NotNil(t, tap.BridgeID)
	require.NotNil(t, tap.CableID)
	assert.Equal(t, *iface.CableID, *tap.CableID)

	var vm models.VirtualMachine
	require.NoError(t, f.db.Preload("Tags").Where("name = ?", "web1").First(&vm).Error)
	require.Len(t, vm.Tags, 1)
	assert.Equal(t, "prod", vm.Tags[0].Name)
	vmid, ok := vm.VMID()
	assert.True(t, ok)
	assert.Equal(t, 101, vmid)
}

func loadInterface(t *testing.T, db *gorm.DB, name string) *models.VMInterface {
	t.Helper()
	var iface models.VMInterface
	require.NoError(t, db.Where("name = ?", name).First(&iface).Error)
	loaded, err := repositories.NewVMInterfaceRepository(db).GetByID(context.Background(), iface.ID)
	require.NoError(t, err)
	return loaded
}

func TestFullSyncRenamesAndMoves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, repositories.NewVLANRepository(f.db).Create(ctx, &models.VLAN{VID: 20, Name: "servers"}))

	_, _, _, errs := countOps(f.syncCluster(t, labState()))
	require.Empty(t, errs)
	before := loadInterface(t, f.db, "web1:net0")

	// the guest is renamed and its NIC moved to another slot
	state := labState()
	state.VMs[0].Name = "web-renamed"
	state.VMInterfaces[0].VirtualMachine = "web-renamed"
	state.VMInterfaces[0].Name = "web-renamed:net1"
	state.VMInterfaces[0].IPAddresses = []string{"10.0.0.6/24"}

	results := f.syncCluster(t, state)
	created, updated, deleted, errs := countOps(results)
	assert.Empty(t, errs)
	assert.Zero(t, created)
	assert.Zero(t, deleted)
	assert.Equal(t, 2, updated)

	after := loadInterface(t, f.db, "web-renamed:net1")
	assert.Equal(t, before.ID, after.ID)
	require.Len(t, after.IPAddresses, 1)
	assert.Equal(t, "10.0.0.6/24", after.IPAddresses[0].Address)

	// the old address is released, not deleted
	var old models.IPAddress
	require.NoError(t, f.db.Where("address = ?", "10.0.0.5/24").First(&old).Error)
	assert.Nil(t, old.AssignedObjectID)

	// the cable now ends on the tap of slot 1
	var tap models.Interface
	require.NoError(t, f.db.Where("name = ?", "tap101i1").First(&tap).Error)
	require.NotNil(t, tap.CableID)
	assert.Equal(t, *after.CableID, *tap.CableID)

	var stale models.Interface
	require.NoError(t, f.db.Where("name = ?", "tap101i0").First(&stale).Error)
	assert.Nil(t, stale.CableID)

	_, updated, _, _ = countOps(f.syncCluster(t, state))
	assert.Zero(t, updated)
}

func TestFullSyncDeletesGuests(t *testing.T) {
	f := newFixture(t)

	_, _, _, errs := countOps(f.syncCluster(t, labState()))
	require.Empty(t, errs)

	state := labState()
	state.VMs = nil
	state.VMInterfaces = nil

	results := f.syncCluster(t, state)
	_, _, deleted, errs := countOps(results)
	assert.Empty(t, errs)
	assert.Equal(t, 1, deleted, "the interface goes away with its virtual machine")

	var count int64
	require.NoError(t, f.db.Model(&models.MACAddress{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, f.db.Model(&models.Cable{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestVMInterfacesDeleteAlreadyGone(t *testing.T) {
	f := newFixture(t)

	result := f.applier.VMInterfaces(context.Background(), InterfaceScope{}, &reconciler.VMInterfacePlan{
		Delete: []*models.VMInterface{{ID: 42, Name: "web1:net0"}},
	})
	assert.Empty(t, result.Errors)
	assert.Len(t, result.Deleted, 1)
}

func TestVMInterfacesUnknownVM(t *testing.T) {
	f := newFixture(t)

	result := f.applier.VMInterfaces(context.Background(), InterfaceScope{}, &reconciler.VMInterfacePlan{
		Create: []inventory.VMInterface{{Name: "ghost:net0", VirtualMachine: "ghost"}},
	})
	require.Len(t, result.Errors, 1)
	assert.Empty(t, result.Created)
}

func TestSlotIndex(t *testing.T) {
	n, ok := SlotIndex("net12")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	_, ok = SlotIndex("eth")
	assert.False(t, ok)
	assert.Equal(t, "tap101i0", TapName(101, 0))
}
