package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/proxsync/proxsync/pkg/database/models"
)

func TestDeviceRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewDeviceRepository(db)
	ctx := context.Background()

	cluster := createCluster(t, db, "pve")
	other := createCluster(t, db, "other")

	baseline, err := repo.EnsureBaseline(ctx)
	require.NoError(t, err)

	t.Run("EnsureBaselineIsIdempotent", func(t *testing.T) {
		again, err := repo.EnsureBaseline(ctx)
		require.NoError(t, err)
		assert.Equal(t, baseline, again)

		var count int64
		require.NoError(t, db.Model(&models.DeviceRole{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	node := &models.Device{
		Name:         "pve1",
		Status:       models.StatusActive,
		ClusterID:    &cluster.ID,
		SiteID:       baseline.SiteID,
		DeviceTypeID: baseline.DeviceTypeID,
		RoleID:       baseline.RoleID,
	}
	require.NoError(t, repo.Create(ctx, node))
	foreign := &models.Device{
		Name:         "PVE9",
		Status:       models.StatusActive,
		ClusterID:    &other.ID,
		SiteID:       baseline.SiteID,
		DeviceTypeID: baseline.DeviceTypeID,
		RoleID:       baseline.RoleID,
	}
	require.NoError(t, repo.Create(ctx, foreign))

	t.Run("EnsureInterface", func(t *testing.T) {
		bridge, err := repo.EnsureInterface(ctx, node.ID, "vmbr0", models.InterfaceTypeBridge)
		require.NoError(t, err)
		assert.NotZero(t, bridge.ID)

		same, err := repo.EnsureInterface(ctx, node.ID, "vmbr0", models.InterfaceTypeOther)
		require.NoError(t, err)
		assert.Equal(t, bridge.ID, same.ID)
		assert.Equal(t, models.InterfaceTypeBridge, same.Type)

		tap, err := repo.EnsureInterface(ctx, node.ID, "tap100i0", models.InterfaceTypeVirtual)
		require.NoError(t, err)
		require.NoError(t, repo.SetInterfaceBridge(ctx, tap, bridge.ID))

		reloaded, err := repo.GetByID(ctx, node.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.HasInterface("tap100i0"))
		for _, iface := range reloaded.Interfaces {
			if iface.Name == "tap100i0" {
				require.NotNil(t, iface.BridgeID)
				assert.Equal(t, bridge.ID, *iface.BridgeID)
			}
		}
	})

	t.Run("ListByCluster", func(t *testing.T) {
		devices, err := repo.ListByCluster(ctx, cluster.ID)
		require.NoError(t, err)
		require.Len(t, devices, 1)
		assert.Equal(t, "pve1", devices[0].Name)
		assert.Len(t, devices[0].Interfaces, 2)
	})

	t.Run("ListNames", func(t *testing.T) {
		names, err := repo.ListNames(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"pve1", "PVE9"}, names)
	})

	t.Run("FindByName", func(t *testing.T) {
		_, err := repo.FindByName(ctx, "pve9")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

		device, err := repo.FindByNameFold(ctx, "pve9")
		require.NoError(t, err)
		assert.Equal(t, foreign.ID, device.ID)
	})

	t.Run("Update", func(t *testing.T) {
		node.Status = models.StatusOffline
		require.NoError(t, repo.Update(ctx, node))

		reloaded, err := repo.GetByID(ctx, node.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusOffline, reloaded.Status)
	})
}
