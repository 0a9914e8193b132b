package scheduler

import (
	"github.com/openpromo/hermes/models"
)

// ResolveStatus folds the segmentation outcome and the per-platform counts
// into the ad's terminal status for this run. Segmentation failure takes
// precedence over every platform-derived state; when segmentation failed no
// platform was attempted.
func ResolveStatus(segmented bool, attempted, succeeded int) models.AdStatus {
	if !segmented {
		return models.AdStatusSegmentationFailed
	}
	if attempted == 0 {
		return models.AdStatusProcessedNoPlatform
	}
	if succeeded == attempted {
		return models.AdStatusLive
	}
	if succeeded > 0 {
		return models.AdStatusPartiallyLive
	}
	return models.AdStatusPostFailedAll
}
