package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openpromo/hermes/models"
	"github.com/redis/go-redis/v9"
)

// SegmentationResult is the parsed response of the audience segmentation
// service for one ad text.
type SegmentationResult struct {
	Signals    models.AudienceSignals `json:"derived_audience_primitives"`
	ClusterID  *int                   `json:"assigned_cluster_id,omitempty"`
	Confidence *float64               `json:"cluster_assignment_confidence,omitempty"`
}

// SegmentationClient calls the external audience segmentation service. One
// synchronous request per ad; requests are not batched. Responses are cached
// in redis keyed by a hash of the ad text so a rerun of an unchanged ad does
// not hit the service again. Cache failures are ignored.
type SegmentationClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	rc         *redis.Client
	cacheTTL   time.Duration
}

func NewSegmentationClient(baseURL, apiKey string, timeout time.Duration, rc *redis.Client, cacheTTL time.Duration) *SegmentationClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SegmentationClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
		rc:         rc,
		cacheTTL:   cacheTTL,
	}
}

type segmentationRequest struct {
	JobAdText string `json:"job_ad_text"`
}

// Segment requests audience segmentation for the given ad text. Any transport
// error, non-2xx status, or malformed body is returned as an error; the caller
// treats every error identically to an explicit failure response.
func (c *SegmentationClient) Segment(ctx context.Context, adText string) (*SegmentationResult, error) {
	if strings.TrimSpace(adText) == "" {
		return nil, fmt.Errorf("empty ad text")
	}

	cacheKey := c.cacheKey(adText)
	if cached := c.fromCache(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	payload, _ := json.Marshal(segmentationRequest{JobAdText: adText})
	url := c.BaseURL + "/api/v1/segment"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("segmentation http status: %d", resp.StatusCode)
	}

	var out SegmentationResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode segmentation response: %w", err)
	}

	c.toCache(ctx, cacheKey, &out)
	return &out, nil
}

func (c *SegmentationClient) cacheKey(adText string) string {
	sum := sha256.Sum256([]byte(adText))
	return "hermes:segmentation:" + hex.EncodeToString(sum[:])
}

func (c *SegmentationClient) fromCache(ctx context.Context, key string) *SegmentationResult {
	if c.rc == nil || c.cacheTTL <= 0 {
		return nil
	}
	bs, err := c.rc.Get(ctx, key).Bytes()
	if err != nil || len(bs) == 0 {
		return nil
	}
	var out SegmentationResult
	if err := json.Unmarshal(bs, &out); err != nil {
		return nil
	}
	return &out
}

func (c *SegmentationClient) toCache(ctx context.Context, key string, res *SegmentationResult) {
	if c.rc == nil || c.cacheTTL <= 0 {
		return
	}
	if bs, err := json.Marshal(res); err == nil {
		_ = c.rc.Set(ctx, key, bs, c.cacheTTL).Err()
	}
}
