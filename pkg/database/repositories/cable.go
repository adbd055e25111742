package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/proxsync/proxsync/pkg/database/models"
)

type CableRepository struct {
	db *gorm.DB
}

func NewCableRepository(db *gorm.DB) *CableRepository {
	return &CableRepository{db: db}
}

func (r *CableRepository) GetByID(ctx context.Context, id uint) (*models.Cable, error) {
	var cable models.Cable
	err := r.db.WithContext(ctx).Preload("Terminations").First(&cable, id).Error
	if err != nil {
		return nil, err
	}
	return &cable, nil
}

// FindByTermination returns the cable attached to the given object.
// Returns (nil, nil) when the object has no cable.
func (r *CableRepository) FindByTermination(ctx context.Context, objectType string, objectID uint) (*models.Cable, error) {
	var termination models.CableTermination
	err := r.db.WithContext(ctx).
		Where("termination_type = ? AND termination_id = ?", objectType, objectID).
		Limit(1).
		Find(&termination).Error
	if err != nil {
		return nil, err
	}
	if termination.ID == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, termination.CableID)
}

// Connect creates a cable between the A and B objects and records it on both ends
func (r *CableRepository) Connect(ctx context.Context, aType string, aID uint, bType string, bID uint) (*models.Cable, error) {
	cable := models.Cable{
		Status: "connected",
		Terminations: []models.CableTermination{
			{CableEnd: models.CableEndA, TerminationType: aType, TerminationID: aID},
			{CableEnd: models.CableEndB, TerminationType: bType, TerminationID: bID},
		},
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&cable).Error; err != nil {
			return fmt.Errorf("failed to create cable: %w", err)
		}
		for _, t := range cable.Terminations {
			if err := setCableRef(tx, t.TerminationType, t.TerminationID, &cable.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cable, nil
}

// Delete removes the cable and its terminations and clears the references on both ends
func (r *CableRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteCable(tx, id)
	})
}

func deleteCable(tx *gorm.DB, id uint) error {
	var terminations []models.CableTermination
	if err := tx.Where("cable_id = ?", id).Find(&terminations).Error; err != nil {
		return err
	}
	for _, t := range terminations {
		if err := setCableRef(tx, t.TerminationType, t.TerminationID, nil); err != nil {
			return err
		}
	}
	if err := tx.Where("cable_id = ?", id).Delete(&models.CableTermination{}).Error; err != nil {
		return err
	}
	result := tx.Delete(&models.Cable{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func setCableRef(tx *gorm.DB, objectType string, objectID uint, cableID *uint) error {
	var model interface{}
	switch objectType {
	case models.ObjectTypeVMInterface:
		model = &models.VMInterface{}
	case models.ObjectTypeInterface:
		model = &models.Interface{}
	default:
		return fmt.Errorf("unsupported cable termination type %q", objectType)
	}
	return tx.Model(model).Where("id = ?", objectID).Update("cable_id", cableID).Error
}
