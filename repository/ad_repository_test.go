package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpromo/hermes/models"
	"github.com/openpromo/hermes/repository"
	hermestesting "github.com/openpromo/hermes/testing"
	"github.com/openpromo/hermes/utils"
)

// setupDB creates a throwaway database, skipping when no test server is
// reachable.
func setupDB(t *testing.T) *hermestesting.TestDB {
	t.Helper()
	testDB, err := hermestesting.SetupTestDB()
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = testDB.TeardownTestDB()
	})
	return testDB
}

func TestListDueBoundaries(t *testing.T) {
	testDB := setupDB(t)
	ctx := hermestesting.CreateTestContext()
	repo := repository.NewAdRepository(testDB.DB)
	now := time.Now().UTC().Truncate(time.Microsecond)

	mkAd := func(title string, startAt time.Time, endAt *time.Time, status models.AdStatus) *models.Ad {
		ad := &models.Ad{
			TenantID:    1,
			Title:       title,
			TargetURL:   "https://example.com/jobs/1",
			StartAt:     startAt,
			EndAt:       endAt,
			Status:      status,
			PublishMeta: true,
		}
		require.NoError(t, testDB.DB.Create(ad).Error)
		return ad
	}

	startsNow := mkAd("starts exactly now", now, nil, models.AdStatusScheduled)
	endsNow := mkAd("ends exactly now", now.Add(-time.Hour), utils.ToPtr(now), models.AdStatusScheduled)
	mkAd("starts in the future", now.Add(time.Minute), nil, models.AdStatusScheduled)
	mkAd("window already closed", now.Add(-2*time.Hour), utils.ToPtr(now.Add(-time.Minute)), models.AdStatusScheduled)
	mkAd("already live", now.Add(-time.Hour), nil, models.AdStatusLive)
	mkAd("currently processing", now.Add(-time.Hour), nil, models.AdStatusProcessing)

	due, err := repo.ListDue(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, due, 2)

	titles := []string{due[0].Title, due[1].Title}
	assert.Contains(t, titles, startsNow.Title)
	assert.Contains(t, titles, endsNow.Title)

	// Ordering is by start time, then id.
	assert.Equal(t, endsNow.ID, due[0].ID)
	assert.Equal(t, startsNow.ID, due[1].ID)

	limited, err := repo.ListDue(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestUpdateSegmentationOverwritesWholesale(t *testing.T) {
	testDB := setupDB(t)
	ctx := hermestesting.CreateTestContext()
	repo := repository.NewAdRepository(testDB.DB)

	ad, err := testDB.CreateTestAd(1)
	require.NoError(t, err)

	first := repository.SegmentationOutcome{
		Signals: models.AudienceSignals{
			{Category: "location", Value: "Berlin"},
		},
		ClusterID:          utils.ToPtr(3),
		ClusterConfidence:  utils.ToPtr(0.8),
		ClusterProfileName: utils.ToPtr("Tech Professionals"),
		Targeting:          &models.Targeting{Locations: []string{"Berlin"}},
		SegmentedAt:        time.Now().UTC(),
	}
	require.NoError(t, repo.UpdateSegmentation(ctx, ad.ID, first))

	// A later run replaces everything, including clearing the cluster fields.
	second := repository.SegmentationOutcome{
		Signals:     models.AudienceSignals{{Category: "skill", Value: "golang"}},
		Targeting:   &models.Targeting{},
		SegmentedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.UpdateSegmentation(ctx, ad.ID, second))

	got, err := repo.ByID(ctx, ad.ID)
	require.NoError(t, err)
	require.Len(t, got.AudienceSignals, 1)
	assert.Equal(t, "golang", got.AudienceSignals[0].Value)
	assert.Nil(t, got.ClusterID)
	assert.Nil(t, got.ClusterProfileName)
	require.NotNil(t, got.MappedTargeting)
	assert.True(t, got.MappedTargeting.Broad())
}

func TestUpdatePublishOutcomeWritesStatusAndIDsTogether(t *testing.T) {
	testDB := setupDB(t)
	ctx := hermestesting.CreateTestContext()
	repo := repository.NewAdRepository(testDB.DB)

	ad, err := testDB.CreateTestAd(1)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, ad.ID, models.AdStatusProcessing))

	err = repo.UpdatePublishOutcome(ctx, ad.ID, models.AdStatusPartiallyLive, []repository.PlatformIdentifiers{
		{PlatformKey: models.PlatformLinkedIn, ExternalIDs: []string{"li-1", "li-2"}},
	})
	require.NoError(t, err)

	got, err := repo.ByID(ctx, ad.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AdStatusPartiallyLive, got.Status)
	assert.Equal(t, []string{"li-1", "li-2"}, []string(got.LinkedInExternalIDs))
	assert.Empty(t, got.MetaExternalIDs)
	assert.Empty(t, got.GoogleAdsExternalIDs)
}

func TestUpdatePublishOutcomeRejectsUnknownPlatform(t *testing.T) {
	testDB := setupDB(t)
	ctx := hermestesting.CreateTestContext()
	repo := repository.NewAdRepository(testDB.DB)

	ad, err := testDB.CreateTestAd(1)
	require.NoError(t, err)

	err = repo.UpdatePublishOutcome(ctx, ad.ID, models.AdStatusLive, []repository.PlatformIdentifiers{
		{PlatformKey: "myspace", ExternalIDs: []string{"x"}},
	})
	assert.Error(t, err)
}

func TestReclaimStuckProcessing(t *testing.T) {
	testDB := setupDB(t)
	ctx := hermestesting.CreateTestContext()
	repo := repository.NewAdRepository(testDB.DB)

	stuck, err := testDB.CreateTestAd(1)
	require.NoError(t, err)
	fresh, err := testDB.CreateTestAd(1)
	require.NoError(t, err)

	// One ad has been processing for an hour, the other just started.
	old := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, testDB.DB.Model(&models.Ad{}).Where("id = ?", stuck.ID).
		Updates(map[string]any{"status": models.AdStatusProcessing, "updated_at": old}).Error)
	require.NoError(t, repo.UpdateStatus(ctx, fresh.ID, models.AdStatusProcessing))

	reclaimed, err := repo.ReclaimStuckProcessing(ctx, time.Now().UTC().Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), reclaimed)

	gotStuck, err := repo.ByID(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AdStatusScheduled, gotStuck.Status)

	gotFresh, err := repo.ByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AdStatusProcessing, gotFresh.Status)
}

func TestActiveByTenantAndPlatform(t *testing.T) {
	testDB := setupDB(t)
	ctx := hermestesting.CreateTestContext()
	repo := repository.NewPlatformConnectionRepository(testDB.DB)

	_, err := testDB.CreateTestConnection(1, models.PlatformMeta, "token-1", nil)
	require.NoError(t, err)

	conn, err := repo.ActiveByTenantAndPlatform(ctx, 1, models.PlatformMeta)
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, "acct-1-meta", conn.AccountID)

	token, err := utils.DecryptCredential(conn.EncryptedAccessToken, hermestesting.TestCredentialKey)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)

	// Other tenant or platform yields nothing.
	missing, err := repo.ActiveByTenantAndPlatform(ctx, 2, models.PlatformMeta)
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Inactive connections are invisible.
	require.NoError(t, testDB.DB.Model(&models.PlatformConnection{}).
		Where("tenant_id = ?", 1).Update("is_active", false).Error)
	inactive, err := repo.ActiveByTenantAndPlatform(ctx, 1, models.PlatformMeta)
	require.NoError(t, err)
	assert.Nil(t, inactive)
}
