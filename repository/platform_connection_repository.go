package repository

import (
	"context"
	"errors"

	"github.com/openpromo/hermes/models"
	"github.com/openpromo/hermes/utils"
	"gorm.io/gorm"
)

// PlatformConnectionRepositoryImpl implements PlatformConnectionRepository
type PlatformConnectionRepositoryImpl struct {
	*BaseRepository[models.PlatformConnection, models.PlatformConnectionFilter]
}

func NewPlatformConnectionRepository(db *gorm.DB) PlatformConnectionRepository {
	return &PlatformConnectionRepositoryImpl{BaseRepository: NewBaseRepository[models.PlatformConnection, models.PlatformConnectionFilter](db)}
}

// ActiveByTenantAndPlatform returns the active connection for the pair, or nil
// when the tenant has none for this platform.
func (r *PlatformConnectionRepositoryImpl) ActiveByTenantAndPlatform(ctx context.Context, tenantID uint, platformKey string) (*models.PlatformConnection, error) {
	rows, err := r.ByFilter(ctx, models.PlatformConnectionFilter{
		TenantID:    &tenantID,
		PlatformKey: &platformKey,
		IsActive:    utils.ToPtr(true),
	}, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *PlatformConnectionRepositoryImpl) applyFilter(db *gorm.DB, f models.PlatformConnectionFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.TenantID != nil {
		db = db.Where("tenant_id = ?", *f.TenantID)
	}
	if f.PlatformKey != nil {
		db = db.Where("platform_key = ?", *f.PlatformKey)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	return db
}

func (r *PlatformConnectionRepositoryImpl) ByFilter(ctx context.Context, filter models.PlatformConnectionFilter, orderBy string, limit, offset int) ([]*models.PlatformConnection, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PlatformConnection{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.PlatformConnection
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PlatformConnectionRepositoryImpl) Count(ctx context.Context, filter models.PlatformConnectionFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PlatformConnection{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PlatformConnectionRepositoryImpl) Exists(ctx context.Context, filter models.PlatformConnectionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PlatformConnectionRepositoryImpl) ByID(ctx context.Context, id uint) (*models.PlatformConnection, error) {
	db := r.getDB(ctx)
	var row models.PlatformConnection
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
