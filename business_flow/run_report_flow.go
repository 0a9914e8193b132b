package businessflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/openpromo/hermes/models"
	"github.com/openpromo/hermes/repository"
)

// RunReportFlow provides use cases around publish run reporting.
// Reports are rendered as Excel workbooks: a summary sheet for the run plus
// one row per processed ad with its resolved status and publishing counters.
type RunReportFlow interface {
	GetRun(ctx context.Context, runUUID string) (*models.PublishRun, error)
	ListRecentRuns(ctx context.Context, limit int) ([]*models.PublishRun, error)
	ExportRunReport(ctx context.Context, runUUID string) (string, []byte, error)
}

type RunReportFlowImpl struct {
	runRepo repository.PublishRunRepository
}

func NewRunReportFlow(runRepo repository.PublishRunRepository) RunReportFlow {
	return &RunReportFlowImpl{runRepo: runRepo}
}

func (f *RunReportFlowImpl) GetRun(ctx context.Context, runUUID string) (*models.PublishRun, error) {
	id, err := uuid.Parse(runUUID)
	if err != nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "run UUID is invalid", err)
	}
	run, err := f.runRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("DB_ERROR", "failed to load publish run", err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

func (f *RunReportFlowImpl) ListRecentRuns(ctx context.Context, limit int) ([]*models.PublishRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	runs, err := f.runRepo.ByFilter(ctx, models.PublishRunFilter{}, "started_at DESC", limit, 0)
	if err != nil {
		return nil, NewBusinessError("DB_ERROR", "failed to list publish runs", err)
	}
	return runs, nil
}

// ExportRunReport renders the run and its per-ad outcomes as an xlsx workbook
// and returns the suggested filename plus the file bytes.
func (f *RunReportFlowImpl) ExportRunReport(ctx context.Context, runUUID string) (string, []byte, error) {
	run, err := f.GetRun(ctx, runUUID)
	if err != nil {
		return "", nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	const summarySheet = "Summary"
	if err := xl.SetSheetName(xl.GetSheetName(0), summarySheet); err != nil {
		return "", nil, NewBusinessError("REPORT_ERROR", "failed to create summary sheet", err)
	}

	summaryRows := [][]any{
		{"Run UUID", run.UUID.String()},
		{"Started At", run.StartedAt.Format("2006-01-02 15:04:05 UTC")},
		{"Finished At", formatFinishedAt(run)},
		{"Ads Attempted", run.AdsAttempted},
		{"Ads Live", run.AdsLive},
		{"Ads Partially Live", run.AdsPartial},
		{"Ads Reclaimed", run.AdsReclaimed},
		{"Selector Error", selectorError(run)},
	}
	for i, row := range summaryRows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := xl.SetSheetRow(summarySheet, cell, &row); err != nil {
			return "", nil, NewBusinessError("REPORT_ERROR", "failed to write summary row", err)
		}
	}

	outcomes, err := decodeOutcomes(run)
	if err != nil {
		return "", nil, NewBusinessError("REPORT_ERROR", "failed to decode run outcomes", err)
	}

	const adsSheet = "Ads"
	if _, err := xl.NewSheet(adsSheet); err != nil {
		return "", nil, NewBusinessError("REPORT_ERROR", "failed to create ads sheet", err)
	}
	header := []any{"Ad ID", "Ad UUID", "Title", "Status", "Platforms Attempted", "Platforms Succeeded", "Platforms Skipped", "Note"}
	if err := xl.SetSheetRow(adsSheet, "A1", &header); err != nil {
		return "", nil, NewBusinessError("REPORT_ERROR", "failed to write ads header", err)
	}
	for i, oc := range outcomes {
		row := []any{
			oc.AdID,
			oc.AdUUID,
			oc.Title,
			string(oc.Status),
			oc.Attempted,
			oc.Succeeded,
			strings.Join(oc.Skipped, ", "),
			oc.Note,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := xl.SetSheetRow(adsSheet, cell, &row); err != nil {
			return "", nil, NewBusinessError("REPORT_ERROR", "failed to write ads row", err)
		}
	}

	var buf bytes.Buffer
	if err := xl.Write(&buf); err != nil {
		return "", nil, NewBusinessError("REPORT_ERROR", "failed to render workbook", err)
	}

	filename := fmt.Sprintf("publish_run_%s.xlsx", run.UUID.String())
	return filename, buf.Bytes(), nil
}

func decodeOutcomes(run *models.PublishRun) ([]models.AdOutcome, error) {
	if len(run.Outcomes) == 0 {
		return nil, nil
	}
	var outcomes []models.AdOutcome
	if err := json.Unmarshal(run.Outcomes, &outcomes); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func formatFinishedAt(run *models.PublishRun) string {
	if run.FinishedAt == nil {
		return "in progress"
	}
	return run.FinishedAt.Format("2006-01-02 15:04:05 UTC")
}

func selectorError(run *models.PublishRun) string {
	if run.SelectorError == nil {
		return ""
	}
	return *run.SelectorError
}
