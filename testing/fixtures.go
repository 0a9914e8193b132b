package testing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openpromo/hermes/models"
	"github.com/openpromo/hermes/utils"
)

// TestCredentialKey is a fixed 32-byte key used to seal fixture credentials
var TestCredentialKey = []byte("0123456789abcdef0123456789abcdef")

// CreateTestAd creates a scheduled ad that is due now, enabled for all
// platforms, and persists it.
func (tdb *TestDB) CreateTestAd(tenantID uint) (*models.Ad, error) {
	ad := &models.Ad{
		UUID:             uuid.New(),
		TenantID:         tenantID,
		Title:            fmt.Sprintf("Test Ad %s", uuid.New().String()[:8]),
		ShortDescription: utils.ToPtr("Senior Go engineer for a fintech platform in Berlin"),
		TargetURL:        "https://example.com/jobs/1",
		StartAt:          utils.UTCNow().Add(-time.Hour),
		PublishMeta:      true,
		PublishLinkedIn:  true,
		PublishGoogleAds: true,
		DailyBudget:      50,
		Status:           models.AdStatusScheduled,
	}
	if err := tdb.DB.Create(ad).Error; err != nil {
		return nil, fmt.Errorf("failed to create test ad: %w", err)
	}
	return ad, nil
}

// CreateTestConnection creates an active platform connection for the tenant
// with an encrypted token sealed under TestCredentialKey.
func (tdb *TestDB) CreateTestConnection(tenantID uint, platformKey, token string, fundingID *string) (*models.PlatformConnection, error) {
	encrypted, err := utils.EncryptCredential(token, TestCredentialKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt test credential: %w", err)
	}
	conn := &models.PlatformConnection{
		TenantID:             tenantID,
		PlatformKey:          platformKey,
		EncryptedAccessToken: encrypted,
		AccountID:            fmt.Sprintf("acct-%d-%s", tenantID, platformKey),
		FundingID:            fundingID,
		IsActive:             true,
	}
	if err := tdb.DB.Create(conn).Error; err != nil {
		return nil, fmt.Errorf("failed to create test connection: %w", err)
	}
	return conn, nil
}

// CreateTestClusterProfiles inserts a small fixed cluster profile table
func (tdb *TestDB) CreateTestClusterProfiles() error {
	profiles := []*models.ClusterProfile{
		{ClusterID: 1, ProfileName: "Tech Professionals"},
		{ClusterID: 2, ProfileName: "Healthcare Workers"},
		{ClusterID: 3, ProfileName: "Finance Specialists"},
	}
	for _, p := range profiles {
		if err := tdb.DB.Create(p).Error; err != nil {
			return fmt.Errorf("failed to create cluster profile %d: %w", p.ClusterID, err)
		}
	}
	return nil
}
