package repositories

import (
	"context"
	"errors"
	"slices"

	"gorm.io/gorm"

	"github.com/proxsync/proxsync/pkg/database/models"
)

const (
	vmidFieldLabel = "[Proxmox] VM ID"
	vmidFieldType  = "integer"
)

type CustomFieldRepository struct {
	db *gorm.DB
}

func NewCustomFieldRepository(db *gorm.DB) *CustomFieldRepository {
	return &CustomFieldRepository{db: db}
}

func (r *CustomFieldRepository) GetByName(ctx context.Context, name string) (*models.CustomField, error) {
	var field models.CustomField
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&field).Error
	if err != nil {
		return nil, err
	}
	return &field, nil
}

// EnsureVMIDField creates or repairs the custom field definition holding the Proxmox VMID
func (r *CustomFieldRepository) EnsureVMIDField(ctx context.Context) (*models.CustomField, error) {
	want := models.CustomField{
		Name:        models.CustomFieldVMID,
		Label:       vmidFieldLabel,
		Description: vmidFieldLabel,
		Type:        vmidFieldType,
		Required:    true,
		ObjectTypes: []string{models.ObjectTypeVirtualMachine},
	}

	field, err := r.GetByName(ctx, want.Name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.WithContext(ctx).Create(&want).Error; err != nil {
			return nil, err
		}
		return &want, nil
	}
	if err != nil {
		return nil, err
	}

	if field.Label == want.Label &&
		field.Description == want.Description &&
		field.Type == want.Type &&
		field.Required == want.Required &&
		slices.Equal(field.ObjectTypes, want.ObjectTypes) {
		return field, nil
	}

	field.Label = want.Label
	field.Description = want.Description
	field.Type = want.Type
	field.Required = want.Required
	field.ObjectTypes = want.ObjectTypes
	if err := r.db.WithContext(ctx).Save(field).Error; err != nil {
		return nil, err
	}
	return field, nil
}
