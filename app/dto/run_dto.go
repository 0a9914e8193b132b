package dto

import (
	"time"

	"github.com/openpromo/hermes/models"
)

// PublishRunResponse is the API representation of one publish run
type PublishRunResponse struct {
	UUID          string             `json:"uuid"`
	StartedAt     time.Time          `json:"started_at"`
	FinishedAt    *time.Time         `json:"finished_at,omitempty"`
	AdsAttempted  int                `json:"ads_attempted"`
	AdsLive       int                `json:"ads_live"`
	AdsPartial    int                `json:"ads_partial"`
	AdsReclaimed  int                `json:"ads_reclaimed"`
	SelectorError *string            `json:"selector_error,omitempty"`
	Outcomes      []models.AdOutcome `json:"outcomes,omitempty"`
}

// ListRunsResponse wraps a page of publish runs
type ListRunsResponse struct {
	Runs []PublishRunResponse `json:"runs"`
}
