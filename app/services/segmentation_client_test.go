package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpromo/hermes/models"
)

func TestSegmentationClientParsesResponse(t *testing.T) {
	var gotBody segmentationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/segment", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"derived_audience_primitives": []map[string]any{
				{"category": "location", "value": "Berlin"},
				{"category": "skill", "value": "golang", "confidence": 0.9},
			},
			"assigned_cluster_id":           3,
			"cluster_assignment_confidence": 0.82,
		})
	}))
	defer srv.Close()

	client := NewSegmentationClient(srv.URL, "", 0, nil, 0)
	res, err := client.Segment(context.Background(), "Senior Go engineer in Berlin")
	require.NoError(t, err)

	assert.Equal(t, "Senior Go engineer in Berlin", gotBody.JobAdText)
	require.Len(t, res.Signals, 2)
	assert.Equal(t, models.AudienceSignal{Category: "location", Value: "Berlin"}, res.Signals[0])
	require.NotNil(t, res.ClusterID)
	assert.Equal(t, 3, *res.ClusterID)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.82, *res.Confidence, 1e-9)
}

func TestSegmentationClientSendsAPIKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	client := NewSegmentationClient(srv.URL, "secret", 0, nil, 0)
	_, err := client.Segment(context.Background(), "some ad text")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestSegmentationClientNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewSegmentationClient(srv.URL, "", 0, nil, 0)
	_, err := client.Segment(context.Background(), "some ad text")
	assert.Error(t, err)
}

func TestSegmentationClientMalformedBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewSegmentationClient(srv.URL, "", 0, nil, 0)
	_, err := client.Segment(context.Background(), "some ad text")
	assert.Error(t, err)
}

func TestSegmentationClientRejectsEmptyText(t *testing.T) {
	client := NewSegmentationClient("http://localhost:1", "", 0, nil, 0)
	_, err := client.Segment(context.Background(), "   ")
	assert.Error(t, err)
}

func TestSegmentationClientCachesResponses(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/1"
	}
	opt, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	rc := redis.NewClient(opt)
	if err := rc.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer rc.Close()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"derived_audience_primitives": []map[string]any{
				{"category": "skill", "value": "golang"},
			},
			"assigned_cluster_id":           1,
			"cluster_assignment_confidence": 0.9,
		})
	}))
	defer srv.Close()

	adText := "cacheable ad text " + uuid.New().String()
	client := NewSegmentationClient(srv.URL, "", 0, rc, time.Minute)
	defer rc.Del(context.Background(), client.cacheKey(adText))

	first, err := client.Segment(context.Background(), adText)
	require.NoError(t, err)
	second, err := client.Segment(context.Background(), adText)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}
