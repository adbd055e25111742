package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/database/pagination"
)

type ConnectionRepository struct {
	db *gorm.DB
}

func NewConnectionRepository(db *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Create stores the connection, creating its cluster by name when missing
func (r *ConnectionRepository) Create(ctx context.Context, clusterName string, conn *models.Connection) error {
	if conn == nil {
		return errors.New("connection cannot be nil")
	}
	if clusterName == "" {
		return errors.New("cluster name is required")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cluster := models.Cluster{Name: clusterName}
		if err := tx.Where("name = ?", clusterName).FirstOrCreate(&cluster).Error; err != nil {
			return fmt.Errorf("failed to ensure cluster %q: %w", clusterName, err)
		}
		conn.ClusterID = cluster.ID
		if err := tx.Omit(clause.Associations).Create(conn).Error; err != nil {
			return err
		}
		conn.Cluster = &cluster
		return nil
	})
}

func (r *ConnectionRepository) List(ctx context.Context) ([]models.Connection, error) {
	var conns []models.Connection
	err := r.db.WithContext(ctx).Preload("Cluster").Order("id").Find(&conns).Error
	return conns, err
}

func (r *ConnectionRepository) GetByID(ctx context.Context, id uint) (*models.Connection, error) {
	var conn models.Connection
	err := r.db.WithContext(ctx).Preload("Cluster").First(&conn, id).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *ConnectionRepository) Update(ctx context.Context, conn *models.Connection) error {
	if conn == nil {
		return errors.New("connection cannot be nil")
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(conn).Error
}

// Delete removes the connection. Records synced from it are kept.
func (r *ConnectionRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Connection{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListPaged returns one page of connections and the total count. Unknown
// sort columns fall back to id order.
func (r *ConnectionRepository) ListPaged(ctx context.Context, limit, offset int, sort string) ([]models.Connection, int64, error) {
	limit, offset = pagination.ClampPaginationParams(limit, offset)
	sort = pagination.SanitizeSortOrder(sort, pagination.ConnectionSortColumns, "id ASC")

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Connection{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var conns []models.Connection
	err := r.db.WithContext(ctx).
		Preload("Cluster").
		Order(sort).
		Limit(limit).
		Offset(offset).
		Find(&conns).Error
	return conns, total, err
}
