package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/proxsync/proxsync/pkg/database/models"
)

func TestTagRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewTagRepository(db)
	ctx := context.Background()

	owned := &models.Tag{Name: "prod", Slug: "pxsync__prod", Color: "ff0000", ObjectTypes: []string{models.ObjectTypeVirtualMachine}}
	foreign := &models.Tag{Name: "backup", Slug: "backup", Color: "00ff00"}
	require.NoError(t, repo.Create(ctx, owned))
	require.NoError(t, repo.Create(ctx, foreign))

	t.Run("List", func(t *testing.T) {
		tags, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, tags, 2)
		assert.Equal(t, "backup", tags[0].Name)
		assert.Equal(t, []string{models.ObjectTypeVirtualMachine}, tags[1].ObjectTypes)
	})

	t.Run("ListOwned", func(t *testing.T) {
		tags, err := repo.ListOwned(ctx, "PXSYNC__")
		require.NoError(t, err)
		require.Len(t, tags, 1)
		assert.Equal(t, "prod", tags[0].Name)
	})

	t.Run("Update", func(t *testing.T) {
		owned.Color = "0000ff"
		require.NoError(t, repo.Update(ctx, owned))

		var reloaded models.Tag
		require.NoError(t, db.First(&reloaded, owned.ID).Error)
		assert.Equal(t, "0000ff", reloaded.Color)
	})

	t.Run("DeleteDetachesVirtualMachines", func(t *testing.T) {
		cluster := createCluster(t, db, "pve")
		vm := &models.VirtualMachine{Name: "web1", Status: models.StatusActive, ClusterID: cluster.ID}
		require.NoError(t, db.Create(vm).Error)
		require.NoError(t, db.Model(vm).Association("Tags").Append(owned))

		require.NoError(t, repo.Delete(ctx, owned.ID))

		var count int64
		require.NoError(t, db.Table("virtual_machine_tags").Where("tag_id = ?", owned.ID).Count(&count).Error)
		assert.Zero(t, count)
		assert.ErrorIs(t, db.First(&models.Tag{}, owned.ID).Error, gorm.ErrRecordNotFound)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		assert.ErrorIs(t, repo.Delete(ctx, 9999), gorm.ErrRecordNotFound)
	})
}
