package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/openpromo/hermes/utils"
	"gorm.io/gorm"
)

// PublishRun records the summary of one batch publishing run: how many ads
// were attempted and how many ended up live or partially live.
// Per-ad outcomes are kept as a jsonb snapshot for reporting.
type PublishRun struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_publish_runs_uuid" json:"uuid"`

	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	AdsAttempted  int     `gorm:"not null;default:0" json:"ads_attempted"`
	AdsLive       int     `gorm:"not null;default:0" json:"ads_live"`
	AdsPartial    int     `gorm:"not null;default:0" json:"ads_partial"`
	AdsReclaimed  int     `gorm:"not null;default:0" json:"ads_reclaimed"`
	SelectorError *string `gorm:"type:text" json:"selector_error,omitempty"`

	Outcomes json.RawMessage `gorm:"type:jsonb" json:"outcomes,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_publish_runs_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (PublishRun) TableName() string { return "publish_runs" }

// BeforeCreate is called before creating a new record
func (r *PublishRun) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = utils.UTCNow()
	}
	return nil
}

// AdOutcome is one row of the per-run outcome snapshot
type AdOutcome struct {
	AdID      uint     `json:"ad_id"`
	AdUUID    string   `json:"ad_uuid"`
	Title     string   `json:"title"`
	Status    AdStatus `json:"status"`
	Attempted int      `json:"attempted"`
	Succeeded int      `json:"succeeded"`
	Skipped   []string `json:"skipped,omitempty"`
	Note      string   `json:"note,omitempty"`
}

// PublishRunFilter provides filter fields for repository queries
type PublishRunFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
