package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openpromo/hermes/models"
	"github.com/openpromo/hermes/utils"
	"gorm.io/gorm"
)

// AdRepositoryImpl implements the AdRepository interface
type AdRepositoryImpl struct {
	*BaseRepository[models.Ad, models.AdFilter]
}

// NewAdRepository creates a new ad repository
func NewAdRepository(db *gorm.DB) AdRepository {
	return &AdRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Ad, models.AdFilter](db),
	}
}

// ByUUID retrieves an ad by UUID
func (r *AdRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Ad, error) {
	ads, err := r.ByFilter(ctx, models.AdFilter{UUID: &id}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(ads) == 0 {
		return nil, nil
	}
	return ads[0], nil
}

// ListDue returns ads eligible for publishing at the given time: scheduled,
// start_at has passed, and the end of the window (when set) has not. Both
// bounds are inclusive. An empty result is not an error.
func (r *AdRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Ad, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Ad{}).
		Where("status = ?", models.AdStatusScheduled).
		Where("start_at <= ?", now).
		Where("end_at IS NULL OR end_at >= ?", now).
		Order("start_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var ads []*models.Ad
	if err := query.Find(&ads).Error; err != nil {
		return nil, fmt.Errorf("failed to list due ads: %w", err)
	}
	return ads, nil
}

// UpdateStatus updates only the status of an ad
func (r *AdRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.AdStatus) error {
	db := r.getDB(ctx)
	return db.Model(&models.Ad{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": utils.UTCNow(),
		}).Error
}

// UpdateSegmentation overwrites the segmentation columns of an ad wholesale.
// Previous results are replaced, not merged.
func (r *AdRepositoryImpl) UpdateSegmentation(ctx context.Context, id uint, outcome SegmentationOutcome) error {
	db := r.getDB(ctx)
	return db.Model(&models.Ad{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"audience_signals":     outcome.Signals,
			"cluster_id":           outcome.ClusterID,
			"cluster_confidence":   outcome.ClusterConfidence,
			"cluster_profile_name": outcome.ClusterProfileName,
			"mapped_targeting":     outcome.Targeting,
			"segmented_at":         outcome.SegmentedAt,
			"updated_at":           utils.UTCNow(),
		}).Error
}

// UpdatePublishOutcome writes the terminal status together with the external
// IDs of every platform that succeeded, in one update.
func (r *AdRepositoryImpl) UpdatePublishOutcome(ctx context.Context, id uint, status models.AdStatus, identifiers []PlatformIdentifiers) error {
	db := r.getDB(ctx)

	updates := map[string]any{
		"status":     status,
		"updated_at": utils.UTCNow(),
	}
	for _, ids := range identifiers {
		switch ids.PlatformKey {
		case models.PlatformMeta:
			updates["meta_external_ids"] = ids.ExternalIDs
		case models.PlatformLinkedIn:
			updates["linkedin_external_ids"] = ids.ExternalIDs
		case models.PlatformGoogleAds:
			updates["googleads_external_ids"] = ids.ExternalIDs
		default:
			return fmt.Errorf("unknown platform key %q", ids.PlatformKey)
		}
	}

	return db.Model(&models.Ad{}).Where("id = ?", id).Updates(updates).Error
}

// ReclaimStuckProcessing flips ads stuck in processing since before the given
// time back to scheduled so the next run can pick them up. Covers the crash
// window between the processing write and the terminal write.
func (r *AdRepositoryImpl) ReclaimStuckProcessing(ctx context.Context, olderThan time.Time) (int64, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Ad{}).
		Where("status = ?", models.AdStatusProcessing).
		Where("updated_at < ?", olderThan).
		Updates(map[string]any{
			"status":     models.AdStatusScheduled,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reclaim stuck ads: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *AdRepositoryImpl) applyFilter(db *gorm.DB, f models.AdFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.TenantID != nil {
		db = db.Where("tenant_id = ?", *f.TenantID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.StartBefore != nil {
		db = db.Where("start_at <= ?", *f.StartBefore)
	}
	if f.EndAfter != nil {
		db = db.Where("end_at IS NULL OR end_at >= ?", *f.EndAfter)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

// ByFilter retrieves ads based on filter criteria
func (r *AdRepositoryImpl) ByFilter(ctx context.Context, filter models.AdFilter, orderBy string, limit, offset int) ([]*models.Ad, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Ad{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var ads []*models.Ad
	if err := query.Find(&ads).Error; err != nil {
		return nil, fmt.Errorf("failed to find ads by filter: %w", err)
	}
	return ads, nil
}

// Count returns the number of ads matching the filter
func (r *AdRepositoryImpl) Count(ctx context.Context, filter models.AdFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Ad{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any ad matching the filter exists
func (r *AdRepositoryImpl) Exists(ctx context.Context, filter models.AdFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ByID retrieves an ad by ID
func (r *AdRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Ad, error) {
	db := r.getDB(ctx)
	var ad models.Ad
	if err := db.Last(&ad, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ad, nil
}
