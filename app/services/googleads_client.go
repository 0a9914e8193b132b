package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/openpromo/hermes/models"
)

// GoogleAdsClient publishes ads to the Google Ads API. Object hierarchy:
// campaign (carries the budget) -> ad group (carries the keywords) -> ad.
type GoogleAdsClient struct {
	BaseURL        string
	DeveloperToken string
	HTTPClient     *http.Client
}

func NewGoogleAdsClient(baseURL, developerToken string, timeout time.Duration) *GoogleAdsClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GoogleAdsClient{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		DeveloperToken: developerToken,
		HTTPClient:     &http.Client{Timeout: timeout},
	}
}

func (c *GoogleAdsClient) Key() string           { return models.PlatformGoogleAds }
func (c *GoogleAdsClient) RequiresFunding() bool { return false }

// PrepareAsset is a no-op: responsive search ads are text-only here
func (c *GoogleAdsClient) PrepareAsset(ctx context.Context, creds PlatformCredentials, creativeURL string) (string, error) {
	return "", nil
}

const googleHeadlineMaxLen = 30

// GoogleAdsPayload is the translated representation of an ad for Google Ads
type GoogleAdsPayload struct {
	CampaignName      string
	DailyBudgetMicros int64
	Keywords          []string
	Headline          string
	Description       string
	FinalURL          string
}

type googleCreateResponse struct {
	ResourceName string `json:"resourceName"`
}

// Translate builds the Google Ads payload, or nil when the ad cannot be
// represented. The headline is the title truncated to the platform limit.
func (c *GoogleAdsClient) Translate(ad *models.Ad, targeting models.Targeting, assetHandle string) any {
	if ad.Title == "" || ad.TargetURL == "" {
		return nil
	}

	headline := ad.Title
	if runes := []rune(headline); len(runes) > googleHeadlineMaxLen {
		headline = string(runes[:googleHeadlineMaxLen])
	}

	keywords := targeting.Keywords
	if targeting.Broad() {
		keywords = deriveKeywords(ad.SegmentationText(), 20)
	}

	return &GoogleAdsPayload{
		CampaignName:      ad.Title,
		DailyBudgetMicros: int64(math.Round(ad.DailyBudget * 1_000_000)),
		Keywords:          keywords,
		Headline:          headline,
		Description:       ad.SegmentationText(),
		FinalURL:          ad.TargetURL,
	}
}

// Submit creates the campaign, ad group, and ad group ad in order
func (c *GoogleAdsClient) Submit(ctx context.Context, creds PlatformCredentials, payload any) (*PlatformResult, error) {
	p, ok := payload.(*GoogleAdsPayload)
	if !ok || p == nil {
		return nil, fmt.Errorf("invalid google ads payload")
	}

	campaignBody, _ := json.Marshal(map[string]any{
		"name":   p.CampaignName,
		"status": "ENABLED",
		"campaignBudget": map[string]any{
			"amountMicros": p.DailyBudgetMicros,
			"period":       "DAILY",
		},
		"advertisingChannelType": "SEARCH",
	})
	var campaign googleCreateResponse
	if err := c.post(ctx, creds, "campaigns", campaignBody, &campaign); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	if campaign.ResourceName == "" {
		return nil, fmt.Errorf("campaign created without resource name")
	}

	adGroupBody, _ := json.Marshal(map[string]any{
		"name":     p.CampaignName + " - ad group",
		"campaign": campaign.ResourceName,
		"keywords": p.Keywords,
		"status":   "ENABLED",
	})
	var adGroup googleCreateResponse
	if err := c.post(ctx, creds, "adGroups", adGroupBody, &adGroup); err != nil {
		return nil, fmt.Errorf("create ad group: %w", err)
	}

	adBody, _ := json.Marshal(map[string]any{
		"adGroup": adGroup.ResourceName,
		"ad": map[string]any{
			"finalUrls": []string{p.FinalURL},
			"responsiveSearchAd": map[string]any{
				"headlines":    []string{p.Headline},
				"descriptions": []string{p.Description},
			},
		},
		"status": "ENABLED",
	})
	var adResp googleCreateResponse
	if err := c.post(ctx, creds, "adGroupAds", adBody, &adResp); err != nil {
		return nil, fmt.Errorf("create ad: %w", err)
	}

	return &PlatformResult{
		CampaignID: campaign.ResourceName,
		ChildIDs:   []string{adGroup.ResourceName, adResp.ResourceName},
	}, nil
}

func (c *GoogleAdsClient) post(ctx context.Context, creds PlatformCredentials, path string, body []byte, out any) error {
	url := fmt.Sprintf("%s/v17/customers/%s/%s:mutate", c.BaseURL, creds.AccountID, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	if c.DeveloperToken != "" {
		req.Header.Set("developer-token", c.DeveloperToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("google ads %s http status: %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
