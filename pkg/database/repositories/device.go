package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/proxsync/proxsync/pkg/database/models"
)

// Reference data assigned to every hypervisor node the sync creates
const (
	DefaultSiteName         = "Proxmox"
	DefaultSiteSlug         = "proxmox"
	DefaultManufacturer     = "Proxmox"
	DefaultManufacturerSlug = "proxmox"
	DefaultDeviceTypeName   = "Proxmox VE Node"
	DefaultDeviceTypeSlug   = "proxmox-ve-node"
	DefaultRoleName         = "Hypervisor"
	DefaultRoleSlug         = "hypervisor"
	DefaultRoleColor        = "ff9800"
)

// DeviceBaseline holds the IDs of the reference records new nodes point at
type DeviceBaseline struct {
	SiteID       uint
	DeviceTypeID uint
	RoleID       uint
}

type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// ListByCluster returns the devices assigned to the cluster with their interfaces
func (r *DeviceRepository) ListByCluster(ctx context.Context, clusterID uint) ([]models.Device, error) {
	var devices []models.Device
	err := r.db.WithContext(ctx).
		Preload("Interfaces").
		Where("cluster_id = ?", clusterID).
		Order("name").
		Find(&devices).Error
	return devices, err
}

// ListNames returns the names of all devices in the store, in any cluster
func (r *DeviceRepository) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&models.Device{}).Distinct().Pluck("name", &names).Error
	return names, err
}

func (r *DeviceRepository) GetByID(ctx context.Context, id uint) (*models.Device, error) {
	var device models.Device
	err := r.db.WithContext(ctx).Preload("Interfaces").First(&device, id).Error
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// FindByName looks a device up by its exact name
func (r *DeviceRepository) FindByName(ctx context.Context, name string) (*models.Device, error) {
	var device models.Device
	err := r.db.WithContext(ctx).Where("name = ?", name).Order("id").First(&device).Error
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// FindByNameFold looks a device up by name ignoring case
func (r *DeviceRepository) FindByNameFold(ctx context.Context, name string) (*models.Device, error) {
	var device models.Device
	err := r.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).Order("id").First(&device).Error
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *DeviceRepository) Create(ctx context.Context, device *models.Device) error {
	if device == nil {
		return errors.New("device cannot be nil")
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(device).Error
}

func (r *DeviceRepository) Update(ctx context.Context, device *models.Device) error {
	if device == nil {
		return errors.New("device cannot be nil")
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(device).Error
}

// EnsureBaseline finds or creates the default site, manufacturer, device type and role
func (r *DeviceRepository) EnsureBaseline(ctx context.Context) (*DeviceBaseline, error) {
	var baseline DeviceBaseline

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		site := models.Site{Name: DefaultSiteName, Slug: DefaultSiteSlug, Status: models.StatusActive}
		if err := tx.Where("slug = ?", site.Slug).FirstOrCreate(&site).Error; err != nil {
			return fmt.Errorf("failed to ensure site: %w", err)
		}

		manufacturer := models.Manufacturer{Name: DefaultManufacturer, Slug: DefaultManufacturerSlug}
		if err := tx.Where("slug = ?", manufacturer.Slug).FirstOrCreate(&manufacturer).Error; err != nil {
			return fmt.Errorf("failed to ensure manufacturer: %w", err)
		}

		deviceType := models.DeviceType{
			ManufacturerID: manufacturer.ID,
			Model:          DefaultDeviceTypeName,
			Slug:           DefaultDeviceTypeSlug,
		}
		if err := tx.Where("slug = ?", deviceType.Slug).FirstOrCreate(&deviceType).Error; err != nil {
			return fmt.Errorf("failed to ensure device type: %w", err)
		}

		role := models.DeviceRole{Name: DefaultRoleName, Slug: DefaultRoleSlug, Color: DefaultRoleColor}
		if err := tx.Where("slug = ?", role.Slug).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("failed to ensure device role: %w", err)
		}

		baseline = DeviceBaseline{SiteID: site.ID, DeviceTypeID: deviceType.ID, RoleID: role.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &baseline, nil
}

// EnsureInterface finds the named interface on the device or creates it with the given type
func (r *DeviceRepository) EnsureInterface(ctx context.Context, deviceID uint, name, ifType string) (*models.Interface, error) {
	iface := models.Interface{DeviceID: deviceID, Name: name, Type: ifType}
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND name = ?", deviceID, name).
		Attrs(models.Interface{Type: ifType}).
		FirstOrCreate(&iface).Error
	if err != nil {
		return nil, err
	}
	return &iface, nil
}

// SetInterfaceBridge points the interface at its bridge unless it already does
func (r *DeviceRepository) SetInterfaceBridge(ctx context.Context, iface *models.Interface, bridgeID uint) error {
	if iface.BridgeID != nil && *iface.BridgeID == bridgeID {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(iface).Update("bridge_id", bridgeID).Error; err != nil {
		return err
	}
	iface.BridgeID = &bridgeID
	return nil
}
