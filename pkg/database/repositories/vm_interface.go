package repositories

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/proxsync/proxsync/pkg/database/models"
)

type VMInterfaceRepository struct {
	db *gorm.DB
}

func NewVMInterfaceRepository(db *gorm.DB) *VMInterfaceRepository {
	return &VMInterfaceRepository{db: db}
}

// ListByCluster returns the interfaces of all virtual machines in the cluster
// with their owning VM, untagged VLAN, MAC and IP addresses loaded.
func (r *VMInterfaceRepository) ListByCluster(ctx context.Context, clusterID uint) ([]models.VMInterface, error) {
	db := r.db.WithContext(ctx)
	vmIDs := db.Model(&models.VirtualMachine{}).Select("id").Where("cluster_id = ?", clusterID)

	var ifaces []models.VMInterface
	err := db.Preload("VirtualMachine").
		Preload("UntaggedVLAN").
		Where("virtual_machine_id IN (?)", vmIDs).
		Order("id").
		Find(&ifaces).Error
	if err != nil {
		return nil, err
	}
	if err := r.loadAddresses(ctx, ifaces); err != nil {
		return nil, err
	}
	return ifaces, nil
}

func (r *VMInterfaceRepository) GetByID(ctx context.Context, id uint) (*models.VMInterface, error) {
	var iface models.VMInterface
	err := r.db.WithContext(ctx).
		Preload("VirtualMachine").
		Preload("UntaggedVLAN").
		First(&iface, id).Error
	if err != nil {
		return nil, err
	}
	ifaces := []models.VMInterface{iface}
	if err := r.loadAddresses(ctx, ifaces); err != nil {
		return nil, err
	}
	return &ifaces[0], nil
}

func (r *VMInterfaceRepository) loadAddresses(ctx context.Context, ifaces []models.VMInterface) error {
	if len(ifaces) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(ifaces))
	byID := make(map[uint]*models.VMInterface, len(ifaces))
	for i := range ifaces {
		ids = append(ids, ifaces[i].ID)
		byID[ifaces[i].ID] = &ifaces[i]
	}

	var macs []models.MACAddress
	err := r.db.WithContext(ctx).
		Where("assigned_object_type = ? AND assigned_object_id IN ?", models.ObjectTypeVMInterface, ids).
		Order("id").
		Find(&macs).Error
	if err != nil {
		return err
	}
	for _, mac := range macs {
		if iface, ok := byID[*mac.AssignedObjectID]; ok {
			iface.MACAddresses = append(iface.MACAddresses, mac)
		}
	}

	var ips []models.IPAddress
	err = r.db.WithContext(ctx).
		Where("assigned_object_type = ? AND assigned_object_id IN ?", models.ObjectTypeVMInterface, ids).
		Order("id").
		Find(&ips).Error
	if err != nil {
		return err
	}
	for _, ip := range ips {
		if iface, ok := byID[*ip.AssignedObjectID]; ok {
			iface.IPAddresses = append(iface.IPAddresses, ip)
		}
	}
	return nil
}

func (r *VMInterfaceRepository) Create(ctx context.Context, iface *models.VMInterface) error {
	if iface == nil {
		return errors.New("VM interface cannot be nil")
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(iface).Error
}

func (r *VMInterfaceRepository) Update(ctx context.Context, iface *models.VMInterface) error {
	if iface == nil {
		return errors.New("VM interface cannot be nil")
	}
	// cable_id is owned by CableRepository
	return r.db.WithContext(ctx).Omit(clause.Associations, "cable_id").Save(iface).Error
}

// Delete removes the interface, releases its IP addresses and drops its cable.
// Returns gorm.ErrRecordNotFound when the interface no longer exists.
func (r *VMInterfaceRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteVMInterface(tx, id)
	})
}

func deleteVMInterface(tx *gorm.DB, id uint) error {
	var iface models.VMInterface
	if err := tx.First(&iface, id).Error; err != nil {
		return err
	}
	if err := tx.Where("assigned_object_type = ? AND assigned_object_id = ?", models.ObjectTypeVMInterface, id).
		Delete(&models.MACAddress{}).Error; err != nil {
		return err
	}
	if err := unassignIPs(tx.Where("assigned_object_type = ? AND assigned_object_id = ?", models.ObjectTypeVMInterface, id)); err != nil {
		return err
	}
	if iface.CableID != nil {
		if err := deleteCable(tx, *iface.CableID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}
	result := tx.Delete(&models.VMInterface{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func unassignIPs(scope *gorm.DB) error {
	return scope.Model(&models.IPAddress{}).Updates(map[string]interface{}{
		"assigned_object_type": nil,
		"assigned_object_id":   nil,
	}).Error
}

// AssignMAC upserts the MAC address object and binds it to the interface
func (r *VMInterfaceRepository) AssignMAC(ctx context.Context, ifaceID uint, address string) (*models.MACAddress, error) {
	address = strings.ToUpper(address)
	mac := models.MACAddress{MACAddress: address}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("UPPER(mac_address) = ?", address).FirstOrCreate(&mac).Error; err != nil {
			return err
		}
		return tx.Model(&mac).Updates(map[string]interface{}{
			"assigned_object_type": models.ObjectTypeVMInterface,
			"assigned_object_id":   ifaceID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	mac.AssignedObjectType = stringPtr(models.ObjectTypeVMInterface)
	mac.AssignedObjectID = &ifaceID
	return &mac, nil
}

// ClearMACs deletes the MAC objects bound to the interface except keepID (0 keeps none)
func (r *VMInterfaceRepository) ClearMACs(ctx context.Context, ifaceID, keepID uint) error {
	q := r.db.WithContext(ctx).
		Where("assigned_object_type = ? AND assigned_object_id = ?", models.ObjectTypeVMInterface, ifaceID)
	if keepID != 0 {
		q = q.Where("id <> ?", keepID)
	}
	return q.Delete(&models.MACAddress{}).Error
}

// ListIPs returns the IP address objects bound to the interface
func (r *VMInterfaceRepository) ListIPs(ctx context.Context, ifaceID uint) ([]models.IPAddress, error) {
	var ips []models.IPAddress
	err := r.db.WithContext(ctx).
		Where("assigned_object_type = ? AND assigned_object_id = ?", models.ObjectTypeVMInterface, ifaceID).
		Order("id").
		Find(&ips).Error
	return ips, err
}

// AssignIP finds or creates the global IP record and binds it to the interface
func (r *VMInterfaceRepository) AssignIP(ctx context.Context, ifaceID uint, address string) (*models.IPAddress, error) {
	ip := models.IPAddress{Address: address, Status: models.StatusActive}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("address = ?", address).FirstOrCreate(&ip).Error; err != nil {
			return err
		}
		return tx.Model(&ip).Updates(map[string]interface{}{
			"assigned_object_type": models.ObjectTypeVMInterface,
			"assigned_object_id":   ifaceID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	ip.AssignedObjectType = stringPtr(models.ObjectTypeVMInterface)
	ip.AssignedObjectID = &ifaceID
	return &ip, nil
}

// UnassignIP detaches the address from the interface, keeping the IP record
func (r *VMInterfaceRepository) UnassignIP(ctx context.Context, ifaceID uint, address string) error {
	return unassignIPs(r.db.WithContext(ctx).
		Where("address = ? AND assigned_object_type = ? AND assigned_object_id = ?", address, models.ObjectTypeVMInterface, ifaceID))
}
