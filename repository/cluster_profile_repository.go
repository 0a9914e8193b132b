package repository

import (
	"context"
	"errors"

	"github.com/openpromo/hermes/models"
	"gorm.io/gorm"
)

// ClusterProfileRepositoryImpl implements ClusterProfileRepository
type ClusterProfileRepositoryImpl struct {
	*BaseRepository[models.ClusterProfile, models.ClusterProfileFilter]
}

func NewClusterProfileRepository(db *gorm.DB) ClusterProfileRepository {
	return &ClusterProfileRepositoryImpl{BaseRepository: NewBaseRepository[models.ClusterProfile, models.ClusterProfileFilter](db)}
}

// ListAll returns every cluster profile row, ordered by cluster id
func (r *ClusterProfileRepositoryImpl) ListAll(ctx context.Context) ([]*models.ClusterProfile, error) {
	return r.ByFilter(ctx, models.ClusterProfileFilter{}, "cluster_id ASC", 0, 0)
}

func (r *ClusterProfileRepositoryImpl) applyFilter(db *gorm.DB, f models.ClusterProfileFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.ClusterID != nil {
		db = db.Where("cluster_id = ?", *f.ClusterID)
	}
	return db
}

func (r *ClusterProfileRepositoryImpl) ByFilter(ctx context.Context, filter models.ClusterProfileFilter, orderBy string, limit, offset int) ([]*models.ClusterProfile, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ClusterProfile{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ClusterProfile
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ClusterProfileRepositoryImpl) Count(ctx context.Context, filter models.ClusterProfileFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ClusterProfile{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ClusterProfileRepositoryImpl) Exists(ctx context.Context, filter models.ClusterProfileFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ClusterProfileRepositoryImpl) ByID(ctx context.Context, id uint) (*models.ClusterProfile, error) {
	db := r.getDB(ctx)
	var row models.ClusterProfile
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
