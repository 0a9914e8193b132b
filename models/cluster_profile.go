package models

import "time"

// ClusterProfile maps a segmentation cluster id to a human-readable profile
// name. Reference data: rows are managed outside the orchestrator and loaded
// into an in-memory lookup table at startup (see scheduler.ClusterTable).
type ClusterProfile struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	ClusterID   int    `gorm:"not null;uniqueIndex:uk_cluster_profiles_cluster_id" json:"cluster_id"`
	ProfileName string `gorm:"size:255;not null" json:"profile_name"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (ClusterProfile) TableName() string { return "cluster_profiles" }

// ClusterProfileFilter provides filter fields for repository queries
type ClusterProfileFilter struct {
	ID        *uint
	ClusterID *int
}
