// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/openpromo/hermes/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// SegmentationOutcome carries the segmentation columns written back to an ad.
// The columns are overwritten wholesale on every processing attempt.
type SegmentationOutcome struct {
	Signals            models.AudienceSignals
	ClusterID          *int
	ClusterConfidence  *float64
	ClusterProfileName *string
	Targeting          *models.Targeting
	SegmentedAt        time.Time
}

// PlatformIdentifiers carries the external resource IDs captured for one
// platform after a successful submission.
type PlatformIdentifiers struct {
	PlatformKey string
	ExternalIDs pq.StringArray
}

// AdRepository defines operations for ads
type AdRepository interface {
	Repository[models.Ad, models.AdFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Ad, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Ad, error)
	UpdateStatus(ctx context.Context, id uint, status models.AdStatus) error
	UpdateSegmentation(ctx context.Context, id uint, outcome SegmentationOutcome) error
	UpdatePublishOutcome(ctx context.Context, id uint, status models.AdStatus, identifiers []PlatformIdentifiers) error
	ReclaimStuckProcessing(ctx context.Context, olderThan time.Time) (int64, error)
}

// PlatformConnectionRepository defines operations for platform connections.
// Connections are read-only from the orchestrator's perspective; lifecycle is
// managed elsewhere.
type PlatformConnectionRepository interface {
	Repository[models.PlatformConnection, models.PlatformConnectionFilter]
	ActiveByTenantAndPlatform(ctx context.Context, tenantID uint, platformKey string) (*models.PlatformConnection, error)
}

// PublishRunRepository defines operations for publish run summaries
type PublishRunRepository interface {
	Repository[models.PublishRun, models.PublishRunFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.PublishRun, error)
	Update(ctx context.Context, run *models.PublishRun) error
}

// ClusterProfileRepository defines operations for cluster profile reference data
type ClusterProfileRepository interface {
	Repository[models.ClusterProfile, models.ClusterProfileFilter]
	ListAll(ctx context.Context) ([]*models.ClusterProfile, error)
}
