package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/proxsync/proxsync/pkg/database/models"
)

type VirtualMachineRepository struct {
	db *gorm.DB
}

func NewVirtualMachineRepository(db *gorm.DB) *VirtualMachineRepository {
	return &VirtualMachineRepository{db: db}
}

// ListByCluster returns the virtual machines of the cluster with device and tags loaded
func (r *VirtualMachineRepository) ListByCluster(ctx context.Context, clusterID uint) ([]models.VirtualMachine, error) {
	var vms []models.VirtualMachine
	err := r.db.WithContext(ctx).
		Preload("Device").
		Preload("Tags").
		Where("cluster_id = ?", clusterID).
		Order("id").
		Find(&vms).Error
	return vms, err
}

func (r *VirtualMachineRepository) GetByID(ctx context.Context, id uint) (*models.VirtualMachine, error) {
	var vm models.VirtualMachine
	err := r.db.WithContext(ctx).Preload("Device").Preload("Tags").First(&vm, id).Error
	if err != nil {
		return nil, err
	}
	return &vm, nil
}

func (r *VirtualMachineRepository) Create(ctx context.Context, vm *models.VirtualMachine) error {
	if vm == nil {
		return errors.New("virtual machine cannot be nil")
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(vm).Error
}

func (r *VirtualMachineRepository) Update(ctx context.Context, vm *models.VirtualMachine) error {
	if vm == nil {
		return errors.New("virtual machine cannot be nil")
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(vm).Error
}

// ReplaceTags sets the tag association of the virtual machine to exactly tags
func (r *VirtualMachineRepository) ReplaceTags(ctx context.Context, vm *models.VirtualMachine, tags []models.Tag) error {
	assoc := r.db.WithContext(ctx).Model(vm).Association("Tags")
	var err error
	if len(tags) == 0 {
		err = assoc.Clear()
	} else {
		err = assoc.Replace(tags)
	}
	if err != nil {
		return err
	}
	vm.Tags = tags
	return nil
}

// Delete removes the virtual machine together with its interfaces, their MAC
// objects and cables. Bound IP addresses are released, not deleted.
func (r *VirtualMachineRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ifaceIDs []uint
		if err := tx.Model(&models.VMInterface{}).Where("virtual_machine_id = ?", id).Pluck("id", &ifaceIDs).Error; err != nil {
			return err
		}
		for _, ifaceID := range ifaceIDs {
			if err := deleteVMInterface(tx, ifaceID); err != nil {
				return err
			}
		}
		if err := tx.Exec("DELETE FROM virtual_machine_tags WHERE virtual_machine_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.VirtualMachine{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
