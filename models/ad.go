package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/openpromo/hermes/utils"
	"gorm.io/gorm"
)

// AdStatus represents the lifecycle status of an ad
type AdStatus string

const (
	AdStatusScheduled           AdStatus = "scheduled"
	AdStatusProcessing          AdStatus = "processing"
	AdStatusSegmentationFailed  AdStatus = "segmentation_failed"
	AdStatusProcessedNoPlatform AdStatus = "processed_no_platforms"
	AdStatusLive                AdStatus = "live"
	AdStatusPartiallyLive       AdStatus = "partially_live"
	AdStatusPostFailedAll       AdStatus = "post_failed_all"
	AdStatusErrorProcessing     AdStatus = "error_processing"
)

// String returns the string representation of the status
func (s AdStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s AdStatus) Valid() bool {
	switch s {
	case AdStatusScheduled, AdStatusProcessing, AdStatusSegmentationFailed,
		AdStatusProcessedNoPlatform, AdStatusLive, AdStatusPartiallyLive,
		AdStatusPostFailedAll, AdStatusErrorProcessing:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status ends a publishing run for the ad
func (s AdStatus) Terminal() bool {
	switch s {
	case AdStatusSegmentationFailed, AdStatusProcessedNoPlatform, AdStatusLive,
		AdStatusPartiallyLive, AdStatusPostFailedAll, AdStatusErrorProcessing:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AdStatus
func (s *AdStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = AdStatus(v)
	case []byte:
		*s = AdStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AdStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for AdStatus
func (s AdStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid AdStatus: %s", s)
	}
	return string(s), nil
}

// AudienceSignal is a single derived audience primitive returned by the
// segmentation service: a category/value pair with an optional confidence.
type AudienceSignal struct {
	Category   string   `json:"category"`
	Value      string   `json:"value"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// AudienceSignals is the ordered list of signals stored as a jsonb column
type AudienceSignals []AudienceSignal

// Value implements the driver.Valuer interface for AudienceSignals
func (a AudienceSignals) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for AudienceSignals
func (a *AudienceSignals) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AudienceSignals", value)
	}

	return json.Unmarshal(bytes, a)
}

// Targeting is the platform-agnostic targeting produced by the mapper.
// It is built fresh on every run and serialized into the ad row; never
// mutated after creation within a run.
type Targeting struct {
	Locations   []string `json:"locations"`
	Keywords    []string `json:"keywords"`
	Industries  []string `json:"industries"`
	Seniorities []string `json:"seniorities"`
}

// Broad reports whether the targeting is the broad default (all sets empty),
// which downstream translators treat as "derive keywords from the ad text".
func (t Targeting) Broad() bool {
	return len(t.Locations) == 0 && len(t.Keywords) == 0 &&
		len(t.Industries) == 0 && len(t.Seniorities) == 0
}

// Value implements the driver.Valuer interface for Targeting
func (t Targeting) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements the sql.Scanner interface for Targeting
func (t *Targeting) Scan(value any) error {
	if value == nil {
		*t = Targeting{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Targeting", value)
	}

	return json.Unmarshal(bytes, t)
}

// Ad represents a scheduled advertisement in the database.
// Segmentation columns are overwritten wholesale on every processing attempt.
// Per-platform external ID arrays are only written together with a successful
// submission to that platform.
type Ad struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UUID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_ads_uuid" json:"uuid"`
	TenantID uint      `gorm:"not null;index:idx_ads_tenant_id" json:"tenant_id"`

	Title            string  `gorm:"size:255;not null" json:"title" validate:"required,max=255"`
	ShortDescription *string `gorm:"type:text" json:"short_description,omitempty"`
	LongDescription  *string `gorm:"type:text" json:"long_description,omitempty"`
	TargetURL        string  `gorm:"size:2048;not null" json:"target_url" validate:"required,url"`
	CreativeURL      *string `gorm:"size:2048" json:"creative_url,omitempty" validate:"omitempty,url"`

	StartAt time.Time  `gorm:"not null;index:idx_ads_start_at" json:"start_at"`
	EndAt   *time.Time `gorm:"index:idx_ads_end_at" json:"end_at,omitempty"`

	PublishMeta      bool `gorm:"not null;default:false" json:"publish_meta"`
	PublishLinkedIn  bool `gorm:"not null;default:false" json:"publish_linkedin"`
	PublishGoogleAds bool `gorm:"not null;default:false" json:"publish_googleads"`

	DailyBudget float64 `gorm:"not null;default:0" json:"daily_budget" validate:"gte=0"`

	Status AdStatus `gorm:"type:ad_status;not null;default:'scheduled';index:idx_ads_status" json:"status"`

	// Segmentation results, nullable until the ad is processed
	AudienceSignals    AudienceSignals `gorm:"type:jsonb" json:"audience_signals,omitempty"`
	ClusterID          *int            `json:"cluster_id,omitempty"`
	ClusterConfidence  *float64        `json:"cluster_confidence,omitempty"`
	ClusterProfileName *string         `gorm:"size:255" json:"cluster_profile_name,omitempty"`
	MappedTargeting    *Targeting      `gorm:"type:jsonb" json:"mapped_targeting,omitempty"`
	SegmentedAt        *time.Time      `json:"segmented_at,omitempty"`

	// Platform-assigned resource identifiers, set only on successful submission
	MetaExternalIDs      pq.StringArray `gorm:"type:text[]" json:"meta_external_ids,omitempty"`
	LinkedInExternalIDs  pq.StringArray `gorm:"type:text[]" json:"linkedin_external_ids,omitempty"`
	GoogleAdsExternalIDs pq.StringArray `gorm:"type:text[]" json:"googleads_external_ids,omitempty"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_ads_created_at" json:"created_at"`
	UpdatedAt *time.Time `gorm:"index:idx_ads_updated_at" json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Ad) TableName() string {
	return "ads"
}

// BeforeCreate is called before creating a new record
func (a *Ad) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	if a.Status == "" {
		a.Status = AdStatusScheduled
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (a *Ad) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	a.UpdatedAt = &now
	return nil
}

// EnabledPlatforms returns the platform keys this ad is enabled for, in
// registry order.
func (a *Ad) EnabledPlatforms() []string {
	var keys []string
	if a.PublishMeta {
		keys = append(keys, PlatformMeta)
	}
	if a.PublishLinkedIn {
		keys = append(keys, PlatformLinkedIn)
	}
	if a.PublishGoogleAds {
		keys = append(keys, PlatformGoogleAds)
	}
	return keys
}

// SegmentationText returns the free text sent to the segmentation service:
// the short description, falling back to the title when absent.
func (a *Ad) SegmentationText() string {
	if a.ShortDescription != nil && *a.ShortDescription != "" {
		return *a.ShortDescription
	}
	return a.Title
}

// DueAt reports whether the ad is inside its scheduling window at the given
// time. Bounds are inclusive on both ends.
func (a *Ad) DueAt(now time.Time) bool {
	if a.Status != AdStatusScheduled {
		return false
	}
	if a.StartAt.After(now) {
		return false
	}
	if a.EndAt != nil && a.EndAt.Before(now) {
		return false
	}
	return true
}

// CanTransitionTo checks if the ad can transition to the given status
func (a *Ad) CanTransitionTo(newStatus AdStatus) bool {
	switch a.Status {
	case AdStatusScheduled:
		return newStatus == AdStatusProcessing
	case AdStatusProcessing:
		return newStatus.Terminal() || newStatus == AdStatusScheduled
	default:
		return false
	}
}

// AdFilter represents filter criteria for ads
type AdFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UUID          *uuid.UUID `json:"uuid,omitempty"`
	TenantID      *uint      `json:"tenant_id,omitempty"`
	Status        *AdStatus  `json:"status,omitempty"`
	StartBefore   *time.Time `json:"start_before,omitempty"`
	EndAfter      *time.Time `json:"end_after,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
