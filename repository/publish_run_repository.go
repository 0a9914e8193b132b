package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/openpromo/hermes/models"
	"github.com/openpromo/hermes/utils"
	"gorm.io/gorm"
)

// PublishRunRepositoryImpl implements PublishRunRepository
type PublishRunRepositoryImpl struct {
	*BaseRepository[models.PublishRun, models.PublishRunFilter]
}

func NewPublishRunRepository(db *gorm.DB) PublishRunRepository {
	return &PublishRunRepositoryImpl{BaseRepository: NewBaseRepository[models.PublishRun, models.PublishRunFilter](db)}
}

// ByUUID retrieves a publish run by UUID
func (r *PublishRunRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.PublishRun, error) {
	rows, err := r.ByFilter(ctx, models.PublishRunFilter{UUID: &id}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Update updates a publish run
func (r *PublishRunRepositoryImpl) Update(ctx context.Context, run *models.PublishRun) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	run.UpdatedAt = utils.UTCNow()
	err = db.Save(run).Error
	if err != nil {
		return err
	}

	return nil
}

func (r *PublishRunRepositoryImpl) applyFilter(db *gorm.DB, f models.PublishRunFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *PublishRunRepositoryImpl) ByFilter(ctx context.Context, filter models.PublishRunFilter, orderBy string, limit, offset int) ([]*models.PublishRun, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PublishRun{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.PublishRun
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PublishRunRepositoryImpl) Count(ctx context.Context, filter models.PublishRunFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PublishRun{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PublishRunRepositoryImpl) Exists(ctx context.Context, filter models.PublishRunFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PublishRunRepositoryImpl) ByID(ctx context.Context, id uint) (*models.PublishRun, error) {
	db := r.getDB(ctx)
	var row models.PublishRun
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
