package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpromo/hermes/models"
	"github.com/openpromo/hermes/utils"
)

func publishableAd() *models.Ad {
	return &models.Ad{
		ID:               1,
		Title:            "Senior Go Engineer",
		ShortDescription: utils.ToPtr("Senior Go engineer for a fintech platform in Berlin"),
		TargetURL:        "https://example.com/jobs/1",
		DailyBudget:      50,
	}
}

func TestMetaTranslate(t *testing.T) {
	client := NewMetaClient("https://graph.example.com", "", 0)

	targeting := models.Targeting{
		Locations: []string{"DE"},
		Keywords:  []string{"golang", "backend"},
	}
	payload := client.Translate(publishableAd(), targeting, "hash-1")
	require.NotNil(t, payload)

	p, ok := payload.(*MetaPayload)
	require.True(t, ok)
	assert.Equal(t, "Senior Go Engineer", p.CampaignName)
	assert.Equal(t, int64(5000), p.DailyBudgetCents)
	assert.Equal(t, []string{"DE"}, p.Countries)
	assert.Equal(t, []string{"golang", "backend"}, p.Interests)
	assert.Equal(t, "hash-1", p.ImageHash)
}

func TestMetaTranslateMissingFieldsReturnsNil(t *testing.T) {
	client := NewMetaClient("https://graph.example.com", "", 0)

	ad := publishableAd()
	ad.Title = ""
	assert.Nil(t, client.Translate(ad, models.Targeting{}, ""))

	ad = publishableAd()
	ad.TargetURL = ""
	assert.Nil(t, client.Translate(ad, models.Targeting{}, ""))
}

func TestMetaTranslateBroadTargetingDerivesInterests(t *testing.T) {
	client := NewMetaClient("https://graph.example.com", "", 0)

	payload := client.Translate(publishableAd(), models.Targeting{}, "")
	require.NotNil(t, payload)
	p := payload.(*MetaPayload)
	assert.Contains(t, p.Interests, "senior")
	assert.Contains(t, p.Interests, "fintech")
	assert.Contains(t, p.Interests, "berlin")
}

func TestMetaSubmitCreatesHierarchy(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		switch {
		case len(paths) == 1:
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "camp-1"})
		case len(paths) == 2:
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "adset-1"})
		default:
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "ad-1"})
		}
	}))
	defer srv.Close()

	client := NewMetaClient(srv.URL, "v21.0", 5*time.Second)
	creds := PlatformCredentials{AccessToken: "token-1", AccountID: "123"}
	payload := client.Translate(publishableAd(), models.Targeting{Locations: []string{"DE"}}, "")

	result, err := client.Submit(context.Background(), creds, payload)
	require.NoError(t, err)
	assert.Equal(t, "camp-1", result.CampaignID)
	assert.Equal(t, []string{"adset-1", "ad-1"}, result.ChildIDs)
	assert.Equal(t, []string{
		"/v21.0/act_123/campaigns",
		"/v21.0/act_123/adsets",
		"/v21.0/act_123/ads",
	}, paths)
}

func TestMetaSubmitFailureMidHierarchy(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "camp-1"})
	}))
	defer srv.Close()

	client := NewMetaClient(srv.URL, "", 5*time.Second)
	payload := client.Translate(publishableAd(), models.Targeting{}, "")

	_, err := client.Submit(context.Background(), PlatformCredentials{AccessToken: "t", AccountID: "123"}, payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create ad set")
}

func TestMetaSubmitRejectsForeignPayload(t *testing.T) {
	client := NewMetaClient("https://graph.example.com", "", 0)
	_, err := client.Submit(context.Background(), PlatformCredentials{}, &LinkedInPayload{})
	assert.Error(t, err)
}

func TestLinkedInSubmitRequiresFunding(t *testing.T) {
	client := NewLinkedInClient("https://api.example.com", 0)
	payload := client.Translate(publishableAd(), models.Targeting{}, "")
	require.NotNil(t, payload)

	_, err := client.Submit(context.Background(), PlatformCredentials{AccessToken: "t", AccountID: "a"}, payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "funding")
}

func TestLinkedInSubmitCreatesHierarchy(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "2.0.0", r.Header.Get("X-Restli-Protocol-Version"))
		if len(paths) == 2 {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "urn:li:sponsoredFundingSource:fund-1", body["fundingSource"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": paths[len(paths)-1]})
	}))
	defer srv.Close()

	client := NewLinkedInClient(srv.URL, 5*time.Second)
	creds := PlatformCredentials{AccessToken: "t", AccountID: "a", FundingID: "fund-1"}
	payload := client.Translate(publishableAd(), models.Targeting{Seniorities: []string{"senior"}}, "")

	result, err := client.Submit(context.Background(), creds, payload)
	require.NoError(t, err)
	assert.Equal(t, "/v2/adCampaigns", result.CampaignID)
	assert.Equal(t, []string{"/v2/adCampaigns", "/v2/adLineItems", "/v2/adCreatives"}, paths)
}

func TestGoogleAdsTranslateTruncatesHeadline(t *testing.T) {
	client := NewGoogleAdsClient("https://ads.example.com", "", 0)

	ad := publishableAd()
	ad.Title = "An Exceedingly Long Job Title That Overflows The Limit"
	payload := client.Translate(ad, models.Targeting{Keywords: []string{"golang"}}, "")
	require.NotNil(t, payload)

	p := payload.(*GoogleAdsPayload)
	assert.Len(t, p.Headline, googleHeadlineMaxLen)
	assert.Equal(t, int64(50_000_000), p.DailyBudgetMicros)
	assert.Equal(t, []string{"golang"}, p.Keywords)
}

func TestTranslateBudgetRounding(t *testing.T) {
	meta := NewMetaClient("https://graph.example.com", "", 0)
	google := NewGoogleAdsClient("https://ads.example.com", "", 0)

	tests := []struct {
		budget     float64
		wantCents  int64
		wantMicros int64
	}{
		{19.99, 1999, 19_990_000},
		{10.33, 1033, 10_330_000},
		{0.07, 7, 70_000},
		{50, 5000, 50_000_000},
	}
	for _, tt := range tests {
		ad := publishableAd()
		ad.DailyBudget = tt.budget

		mp := meta.Translate(ad, models.Targeting{}, "").(*MetaPayload)
		assert.Equal(t, tt.wantCents, mp.DailyBudgetCents, "meta cents for %v", tt.budget)

		gp := google.Translate(ad, models.Targeting{}, "").(*GoogleAdsPayload)
		assert.Equal(t, tt.wantMicros, gp.DailyBudgetMicros, "google micros for %v", tt.budget)
	}
}

func TestGoogleAdsTranslateTruncatesHeadlineByRunes(t *testing.T) {
	client := NewGoogleAdsClient("https://ads.example.com", "", 0)

	ad := publishableAd()
	ad.Title = "Führungskräfte für Zürich im Außendienst gesucht"
	payload := client.Translate(ad, models.Targeting{}, "")
	require.NotNil(t, payload)

	p := payload.(*GoogleAdsPayload)
	runes := []rune(p.Headline)
	assert.Len(t, runes, googleHeadlineMaxLen)
	assert.True(t, utf8.ValidString(p.Headline))
	assert.Equal(t, string([]rune(ad.Title)[:googleHeadlineMaxLen]), p.Headline)
}

func TestGoogleAdsSubmitSendsDeveloperToken(t *testing.T) {
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens = append(tokens, r.Header.Get("developer-token"))
		_ = json.NewEncoder(w).Encode(map[string]string{"resourceName": "customers/1/res"})
	}))
	defer srv.Close()

	client := NewGoogleAdsClient(srv.URL, "dev-token", 5*time.Second)
	payload := client.Translate(publishableAd(), models.Targeting{}, "")

	result, err := client.Submit(context.Background(), PlatformCredentials{AccessToken: "t", AccountID: "1"}, payload)
	require.NoError(t, err)
	assert.Equal(t, "customers/1/res", result.CampaignID)
	for _, tok := range tokens {
		assert.Equal(t, "dev-token", tok)
	}
}

func TestDeriveKeywords(t *testing.T) {
	keywords := deriveKeywords("Go, go, GOLANG! A senior backend-engineer role.", 0)
	assert.Equal(t, []string{"golang", "senior", "backend", "engineer", "role"}, keywords)

	capped := deriveKeywords("alpha bravo charlie delta", 2)
	assert.Equal(t, []string{"alpha", "bravo"}, capped)
}
