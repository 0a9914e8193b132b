package businessflow

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/openpromo/hermes/models"
)

type stubRunRepo struct {
	runs map[uuid.UUID]*models.PublishRun
}

func (r *stubRunRepo) ByID(ctx context.Context, id uint) (*models.PublishRun, error) { return nil, nil }
func (r *stubRunRepo) Save(ctx context.Context, run *models.PublishRun) error        { return nil }
func (r *stubRunRepo) SaveBatch(ctx context.Context, runs []*models.PublishRun) error {
	return nil
}
func (r *stubRunRepo) Count(ctx context.Context, f models.PublishRunFilter) (int64, error) {
	return int64(len(r.runs)), nil
}
func (r *stubRunRepo) Exists(ctx context.Context, f models.PublishRunFilter) (bool, error) {
	return len(r.runs) > 0, nil
}
func (r *stubRunRepo) Update(ctx context.Context, run *models.PublishRun) error { return nil }

func (r *stubRunRepo) ByFilter(ctx context.Context, f models.PublishRunFilter, orderBy string, limit, offset int) ([]*models.PublishRun, error) {
	var out []*models.PublishRun
	for _, run := range r.runs {
		out = append(out, run)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *stubRunRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.PublishRun, error) {
	return r.runs[id], nil
}

func sampleRun(t *testing.T) *models.PublishRun {
	t.Helper()
	outcomes, err := json.Marshal([]models.AdOutcome{
		{AdID: 1, AdUUID: uuid.New().String(), Title: "Senior Go Engineer", Status: models.AdStatusPartiallyLive, Attempted: 3, Succeeded: 1, Skipped: []string{"meta"}},
		{AdID: 2, AdUUID: uuid.New().String(), Title: "Data Analyst", Status: models.AdStatusLive, Attempted: 2, Succeeded: 2},
	})
	require.NoError(t, err)

	started := time.Now().UTC().Add(-time.Minute)
	finished := time.Now().UTC()
	return &models.PublishRun{
		ID:           1,
		UUID:         uuid.New(),
		StartedAt:    started,
		FinishedAt:   &finished,
		AdsAttempted: 2,
		AdsLive:      1,
		AdsPartial:   1,
		Outcomes:     outcomes,
	}
}

func TestGetRunValidation(t *testing.T) {
	flow := NewRunReportFlow(&stubRunRepo{runs: map[uuid.UUID]*models.PublishRun{}})

	_, err := flow.GetRun(context.Background(), "not-a-uuid")
	require.Error(t, err)
	var be *BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "VALIDATION_ERROR", be.Code)

	_, err = flow.GetRun(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestExportRunReport(t *testing.T) {
	run := sampleRun(t)
	flow := NewRunReportFlow(&stubRunRepo{runs: map[uuid.UUID]*models.PublishRun{run.UUID: run}})

	filename, content, err := flow.ExportRunReport(context.Background(), run.UUID.String())
	require.NoError(t, err)
	assert.Equal(t, "publish_run_"+run.UUID.String()+".xlsx", filename)
	require.NotEmpty(t, content)

	xl, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	assert.ElementsMatch(t, []string{"Summary", "Ads"}, xl.GetSheetList())

	rows, err := xl.GetRows("Ads")
	require.NoError(t, err)
	require.Len(t, rows, 3) // header plus two ads
	assert.Equal(t, "Senior Go Engineer", rows[1][2])
	assert.Equal(t, "partially_live", rows[1][3])
	assert.Equal(t, "meta", rows[1][6])
	assert.Equal(t, "live", rows[2][3])
}

func TestExportRunReportWithoutOutcomes(t *testing.T) {
	run := sampleRun(t)
	run.Outcomes = nil
	flow := NewRunReportFlow(&stubRunRepo{runs: map[uuid.UUID]*models.PublishRun{run.UUID: run}})

	_, content, err := flow.ExportRunReport(context.Background(), run.UUID.String())
	require.NoError(t, err)

	xl, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows("Ads")
	require.NoError(t, err)
	assert.Len(t, rows, 1) // header only
}
