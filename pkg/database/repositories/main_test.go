package repositories

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/proxsync/proxsync/pkg/database/models"
)

// newTestDB opens an in-memory SQLite store with the full schema migrated
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every new connection would get its own empty in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&models.Cluster{},
		&models.Connection{},
		&models.Tag{},
		&models.Site{},
		&models.Manufacturer{},
		&models.DeviceType{},
		&models.DeviceRole{},
		&models.Device{},
		&models.Interface{},
		&models.VLAN{},
		&models.VirtualMachine{},
		&models.VMInterface{},
		&models.MACAddress{},
		&models.IPAddress{},
		&models.Cable{},
		&models.CableTermination{},
		&models.CustomField{},
	)
	require.NoError(t, err)
	return db
}

func createCluster(t *testing.T, db *gorm.DB, name string) *models.Cluster {
	t.Helper()
	cluster := &models.Cluster{Name: name}
	require.NoError(t, db.Create(cluster).Error)
	return cluster
}
