package models

import (
	"time"
)

// Supported platform keys. Adapters register under these keys; adding a new
// platform means registering a new adapter, not touching the batch driver.
const (
	PlatformMeta      = "meta"
	PlatformLinkedIn  = "linkedin"
	PlatformGoogleAds = "googleads"
)

// PlatformConnection holds a tenant's credentials for one advertising
// platform. The access token is stored encrypted; the orchestrator only ever
// reads active connections and never writes this table.
type PlatformConnection struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	TenantID    uint   `gorm:"not null;index:idx_platform_connections_tenant_id;uniqueIndex:uk_platform_connections_tenant_platform" json:"tenant_id"`
	PlatformKey string `gorm:"size:32;not null;uniqueIndex:uk_platform_connections_tenant_platform" json:"platform_key"`

	EncryptedAccessToken string  `gorm:"type:text;not null" json:"-"`
	AccountID            string  `gorm:"size:255;not null" json:"account_id"`
	FundingID            *string `gorm:"size:255" json:"funding_id,omitempty"`
	IsActive             bool    `gorm:"not null;default:true;index:idx_platform_connections_is_active" json:"is_active"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (PlatformConnection) TableName() string { return "platform_connections" }

// PlatformConnectionFilter provides filter fields for repository queries
type PlatformConnectionFilter struct {
	ID          *uint
	TenantID    *uint
	PlatformKey *string
	IsActive    *bool
}
