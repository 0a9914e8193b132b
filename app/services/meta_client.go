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

// MetaClient publishes ads to the Meta Marketing API. Object hierarchy:
// campaign -> ad set (budget and targeting) -> ad (creative). Creatives with
// an image reference a pre-uploaded image hash obtained via PrepareAsset.
type MetaClient struct {
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
}

func NewMetaClient(baseURL, apiVersion string, timeout time.Duration) *MetaClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if apiVersion == "" {
		apiVersion = "v21.0"
	}
	return &MetaClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIVersion: apiVersion,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *MetaClient) Key() string           { return models.PlatformMeta }
func (c *MetaClient) RequiresFunding() bool { return false }

// MetaPayload is the translated representation of an ad for Meta
type MetaPayload struct {
	CampaignName     string
	Objective        string
	DailyBudgetCents int64
	Countries        []string
	Interests        []string
	Title            string
	Body             string
	LinkURL          string
	ImageHash        string
}

type metaImageResponse struct {
	Hash string `json:"hash"`
}

type metaCreateResponse struct {
	ID string `json:"id"`
}

// PrepareAsset uploads the creative image by URL and returns its image hash
func (c *MetaClient) PrepareAsset(ctx context.Context, creds PlatformCredentials, creativeURL string) (string, error) {
	body, _ := json.Marshal(map[string]any{"url": creativeURL})
	var out metaImageResponse
	if err := c.post(ctx, creds, fmt.Sprintf("act_%s/adimages", creds.AccountID), body, &out); err != nil {
		return "", err
	}
	if out.Hash == "" {
		return "", fmt.Errorf("adimages returned no hash")
	}
	return out.Hash, nil
}

// Translate builds the Meta payload for the ad, or nil when the ad cannot be
// represented: Meta creatives need a body text in addition to the title.
func (c *MetaClient) Translate(ad *models.Ad, targeting models.Targeting, assetHandle string) any {
	body := ad.SegmentationText()
	if ad.Title == "" || body == "" || ad.TargetURL == "" {
		return nil
	}

	interests := targeting.Keywords
	if targeting.Broad() {
		interests = deriveKeywords(body, 10)
	}

	return &MetaPayload{
		CampaignName:     ad.Title,
		Objective:        "LINK_CLICKS",
		DailyBudgetCents: int64(math.Round(ad.DailyBudget * 100)),
		Countries:        targeting.Locations,
		Interests:        interests,
		Title:            ad.Title,
		Body:             body,
		LinkURL:          ad.TargetURL,
		ImageHash:        assetHandle,
	}
}

// Submit creates the campaign, ad set, and ad in order. A failure at any step
// is a failure for the whole platform attempt; identifiers created before the
// failure are not reported as success.
func (c *MetaClient) Submit(ctx context.Context, creds PlatformCredentials, payload any) (*PlatformResult, error) {
	p, ok := payload.(*MetaPayload)
	if !ok || p == nil {
		return nil, fmt.Errorf("invalid meta payload")
	}

	campaignBody, _ := json.Marshal(map[string]any{
		"name":      p.CampaignName,
		"objective": p.Objective,
		"status":    "ACTIVE",
	})
	var campaign metaCreateResponse
	if err := c.post(ctx, creds, fmt.Sprintf("act_%s/campaigns", creds.AccountID), campaignBody, &campaign); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	if campaign.ID == "" {
		return nil, fmt.Errorf("campaign created without id")
	}

	adSetBody, _ := json.Marshal(map[string]any{
		"name":         p.CampaignName + " - ad set",
		"campaign_id":  campaign.ID,
		"daily_budget": p.DailyBudgetCents,
		"targeting": map[string]any{
			"geo_locations": map[string]any{"countries": p.Countries},
			"interests":     p.Interests,
		},
		"status": "ACTIVE",
	})
	var adSet metaCreateResponse
	if err := c.post(ctx, creds, fmt.Sprintf("act_%s/adsets", creds.AccountID), adSetBody, &adSet); err != nil {
		return nil, fmt.Errorf("create ad set: %w", err)
	}

	creative := map[string]any{
		"title": p.Title,
		"body":  p.Body,
		"link":  p.LinkURL,
	}
	if p.ImageHash != "" {
		creative["image_hash"] = p.ImageHash
	}
	adBody, _ := json.Marshal(map[string]any{
		"name":     p.CampaignName + " - ad",
		"adset_id": adSet.ID,
		"creative": creative,
		"status":   "ACTIVE",
	})
	var adResp metaCreateResponse
	if err := c.post(ctx, creds, fmt.Sprintf("act_%s/ads", creds.AccountID), adBody, &adResp); err != nil {
		return nil, fmt.Errorf("create ad: %w", err)
	}

	return &PlatformResult{
		CampaignID: campaign.ID,
		ChildIDs:   []string{adSet.ID, adResp.ID},
	}, nil
}

func (c *MetaClient) post(ctx context.Context, creds PlatformCredentials, path string, body []byte, out any) error {
	url := fmt.Sprintf("%s/%s/%s", c.BaseURL, c.APIVersion, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("meta %s http status: %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
