package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/proxsync/proxsync/pkg/database/models"
)

type VLANRepository struct {
	db *gorm.DB
}

func NewVLANRepository(db *gorm.DB) *VLANRepository {
	return &VLANRepository{db: db}
}

func (r *VLANRepository) List(ctx context.Context) ([]models.VLAN, error) {
	var vlans []models.VLAN
	err := r.db.WithContext(ctx).Order("vid, id").Find(&vlans).Error
	return vlans, err
}

func (r *VLANRepository) Create(ctx context.Context, vlan *models.VLAN) error {
	return r.db.WithContext(ctx).Create(vlan).Error
}
