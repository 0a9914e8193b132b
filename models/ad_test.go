package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openpromo/hermes/utils"
)

func TestAdStatusTransitions(t *testing.T) {
	tests := []struct {
		from    AdStatus
		to      AdStatus
		allowed bool
	}{
		{AdStatusScheduled, AdStatusProcessing, true},
		{AdStatusScheduled, AdStatusLive, false},
		{AdStatusProcessing, AdStatusLive, true},
		{AdStatusProcessing, AdStatusPartiallyLive, true},
		{AdStatusProcessing, AdStatusPostFailedAll, true},
		{AdStatusProcessing, AdStatusSegmentationFailed, true},
		{AdStatusProcessing, AdStatusProcessedNoPlatform, true},
		{AdStatusProcessing, AdStatusErrorProcessing, true},
		// Reclaim sweep moves stuck ads back to scheduled.
		{AdStatusProcessing, AdStatusScheduled, true},
		{AdStatusLive, AdStatusProcessing, false},
		{AdStatusPostFailedAll, AdStatusScheduled, false},
	}

	for _, tt := range tests {
		ad := &Ad{Status: tt.from}
		assert.Equal(t, tt.allowed, ad.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestAdStatusTerminal(t *testing.T) {
	assert.False(t, AdStatusScheduled.Terminal())
	assert.False(t, AdStatusProcessing.Terminal())
	for _, s := range []AdStatus{
		AdStatusSegmentationFailed, AdStatusProcessedNoPlatform, AdStatusLive,
		AdStatusPartiallyLive, AdStatusPostFailedAll, AdStatusErrorProcessing,
	} {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
	}
}

func TestAdDueAtBoundsAreInclusive(t *testing.T) {
	now := time.Now().UTC()

	ad := &Ad{Status: AdStatusScheduled, StartAt: now}
	assert.True(t, ad.DueAt(now), "start boundary is inclusive")

	ad = &Ad{Status: AdStatusScheduled, StartAt: now.Add(-time.Hour), EndAt: utils.ToPtr(now)}
	assert.True(t, ad.DueAt(now), "end boundary is inclusive")

	ad = &Ad{Status: AdStatusScheduled, StartAt: now.Add(time.Second)}
	assert.False(t, ad.DueAt(now))

	ad = &Ad{Status: AdStatusScheduled, StartAt: now.Add(-time.Hour), EndAt: utils.ToPtr(now.Add(-time.Second))}
	assert.False(t, ad.DueAt(now))

	ad = &Ad{Status: AdStatusProcessing, StartAt: now.Add(-time.Hour)}
	assert.False(t, ad.DueAt(now), "only scheduled ads are due")
}

func TestAdEnabledPlatforms(t *testing.T) {
	ad := &Ad{PublishMeta: true, PublishGoogleAds: true}
	assert.Equal(t, []string{PlatformMeta, PlatformGoogleAds}, ad.EnabledPlatforms())

	assert.Empty(t, (&Ad{}).EnabledPlatforms())
}

func TestAdSegmentationTextFallsBackToTitle(t *testing.T) {
	ad := &Ad{Title: "Backend Engineer"}
	assert.Equal(t, "Backend Engineer", ad.SegmentationText())

	ad.ShortDescription = utils.ToPtr("Go role in Berlin")
	assert.Equal(t, "Go role in Berlin", ad.SegmentationText())

	ad.ShortDescription = utils.ToPtr("")
	assert.Equal(t, "Backend Engineer", ad.SegmentationText())
}

func TestTargetingBroad(t *testing.T) {
	assert.True(t, Targeting{}.Broad())
	assert.False(t, Targeting{Keywords: []string{"golang"}}.Broad())
	assert.False(t, Targeting{Locations: []string{"DE"}}.Broad())
}
