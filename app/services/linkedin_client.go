package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openpromo/hermes/models"
)

// LinkedInClient publishes ads to the LinkedIn Marketing API. Object
// hierarchy: campaign -> line item -> sponsored content. Line item creation
// requires the connection's funding identifier.
type LinkedInClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewLinkedInClient(baseURL string, timeout time.Duration) *LinkedInClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LinkedInClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *LinkedInClient) Key() string           { return models.PlatformLinkedIn }
func (c *LinkedInClient) RequiresFunding() bool { return true }

// PrepareAsset is a no-op: sponsored content references the landing page and
// creative by URL, there is no pre-upload step.
func (c *LinkedInClient) PrepareAsset(ctx context.Context, creds PlatformCredentials, creativeURL string) (string, error) {
	return "", nil
}

// LinkedInPayload is the translated representation of an ad for LinkedIn
type LinkedInPayload struct {
	CampaignName string
	DailyBudget  float64
	Locations    []string
	Industries   []string
	Seniorities  []string
	Headline     string
	Text         string
	LandingPage  string
	CreativeURL  string
}

type linkedInCreateResponse struct {
	ID string `json:"id"`
}

// Translate builds the LinkedIn payload, or nil when the ad cannot be
// represented: sponsored content needs both a headline and a text body.
func (c *LinkedInClient) Translate(ad *models.Ad, targeting models.Targeting, assetHandle string) any {
	text := ad.SegmentationText()
	if ad.Title == "" || text == "" || ad.TargetURL == "" {
		return nil
	}

	p := &LinkedInPayload{
		CampaignName: ad.Title,
		DailyBudget:  ad.DailyBudget,
		Locations:    targeting.Locations,
		Industries:   targeting.Industries,
		Seniorities:  targeting.Seniorities,
		Headline:     ad.Title,
		Text:         text,
		LandingPage:  ad.TargetURL,
	}
	if ad.CreativeURL != nil {
		p.CreativeURL = *ad.CreativeURL
	}
	return p
}

// Submit creates the campaign, line item, and sponsored content in order
func (c *LinkedInClient) Submit(ctx context.Context, creds PlatformCredentials, payload any) (*PlatformResult, error) {
	p, ok := payload.(*LinkedInPayload)
	if !ok || p == nil {
		return nil, fmt.Errorf("invalid linkedin payload")
	}
	if creds.FundingID == "" {
		return nil, fmt.Errorf("funding identifier is required for line items")
	}

	campaignBody, _ := json.Marshal(map[string]any{
		"account": "urn:li:sponsoredAccount:" + creds.AccountID,
		"name":    p.CampaignName,
		"type":    "SPONSORED_UPDATES",
		"status":  "ACTIVE",
		"targeting": map[string]any{
			"locations":   p.Locations,
			"industries":  p.Industries,
			"seniorities": p.Seniorities,
		},
	})
	var campaign linkedInCreateResponse
	if err := c.post(ctx, creds, "adCampaigns", campaignBody, &campaign); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	if campaign.ID == "" {
		return nil, fmt.Errorf("campaign created without id")
	}

	lineItemBody, _ := json.Marshal(map[string]any{
		"campaign":      campaign.ID,
		"fundingSource": p.fundingURN(creds),
		"dailyBudget": map[string]any{
			"amount":       fmt.Sprintf("%.2f", p.DailyBudget),
			"currencyCode": "USD",
		},
		"status": "ACTIVE",
	})
	var lineItem linkedInCreateResponse
	if err := c.post(ctx, creds, "adLineItems", lineItemBody, &lineItem); err != nil {
		return nil, fmt.Errorf("create line item: %w", err)
	}

	content := map[string]any{
		"lineItem":    lineItem.ID,
		"headline":    p.Headline,
		"text":        p.Text,
		"landingPage": p.LandingPage,
	}
	if p.CreativeURL != "" {
		content["imageUrl"] = p.CreativeURL
	}
	contentBody, _ := json.Marshal(content)
	var creative linkedInCreateResponse
	if err := c.post(ctx, creds, "adCreatives", contentBody, &creative); err != nil {
		return nil, fmt.Errorf("create sponsored content: %w", err)
	}

	return &PlatformResult{
		CampaignID: campaign.ID,
		ChildIDs:   []string{lineItem.ID, creative.ID},
	}, nil
}

func (p *LinkedInPayload) fundingURN(creds PlatformCredentials) string {
	return "urn:li:sponsoredFundingSource:" + creds.FundingID
}

func (c *LinkedInClient) post(ctx context.Context, creds PlatformCredentials, path string, body []byte, out any) error {
	url := c.BaseURL + "/v2/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("linkedin %s http status: %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
