package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/proxsync/proxsync/pkg/database/models"
)

type TagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{db: db}
}

// List returns every tag in the store, regardless of owner
func (r *TagRepository) List(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := r.db.WithContext(ctx).Order("name").Find(&tags).Error
	return tags, err
}

// ListOwned returns the tags whose slug starts with prefix (case-insensitive)
func (r *TagRepository) ListOwned(ctx context.Context, prefix string) ([]models.Tag, error) {
	tags, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	owned := make([]models.Tag, 0, len(tags))
	for _, tag := range tags {
		if tag.OwnedBy(prefix) {
			owned = append(owned, tag)
		}
	}
	return owned, nil
}

func (r *TagRepository) Create(ctx context.Context, tag *models.Tag) error {
	if tag == nil {
		return errors.New("tag cannot be nil")
	}
	return r.db.WithContext(ctx).Create(tag).Error
}

func (r *TagRepository) Update(ctx context.Context, tag *models.Tag) error {
	if tag == nil {
		return errors.New("tag cannot be nil")
	}
	return r.db.WithContext(ctx).Save(tag).Error
}

// Delete removes the tag and detaches it from every virtual machine
func (r *TagRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM virtual_machine_tags WHERE tag_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Tag{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
