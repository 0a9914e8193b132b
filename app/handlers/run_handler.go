// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/openpromo/hermes/app/dto"
	businessflow "github.com/openpromo/hermes/business_flow"
	"github.com/openpromo/hermes/models"
)

// RunTrigger starts one publishing run on demand
type RunTrigger interface {
	RunOnce(ctx context.Context) (*models.PublishRun, error)
}

// RunHandlerInterface defines the contract for publish run handlers
type RunHandlerInterface interface {
	TriggerRun(c fiber.Ctx) error
	GetRun(c fiber.Ctx) error
	ListRuns(c fiber.Ctx) error
	DownloadRunReport(c fiber.Ctx) error
}

// RunHandler handles publish-run-related HTTP requests
type RunHandler struct {
	reportFlow businessflow.RunReportFlow
	trigger    RunTrigger
}

func NewRunHandler(reportFlow businessflow.RunReportFlow, trigger RunTrigger) *RunHandler {
	return &RunHandler{
		reportFlow: reportFlow,
		trigger:    trigger,
	}
}

func (h *RunHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *RunHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

const (
	queryTimeout = 30 * time.Second
	runTimeout   = 10 * time.Minute
)

// TriggerRun starts a publishing run immediately and returns its summary
func (h *RunHandler) TriggerRun(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	run, err := h.trigger.RunOnce(ctx)
	if err != nil {
		log.Printf("manual publish run failed: %v", err)
		if run != nil {
			// The run row exists; report it alongside the failure.
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Publish run failed", "RUN_FAILED", toRunResponse(run))
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Publish run failed", "RUN_FAILED", err.Error())
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Publish run completed", toRunResponse(run))
}

// GetRun returns one publish run by UUID
func (h *RunHandler) GetRun(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	run, err := h.reportFlow.GetRun(ctx, c.Params("uuid"))
	if err != nil {
		return h.flowError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Publish run retrieved", toRunResponse(run))
}

// ListRuns returns the most recent publish runs
func (h *RunHandler) ListRuns(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	runs, err := h.reportFlow.ListRecentRuns(ctx, limit)
	if err != nil {
		return h.flowError(c, err)
	}
	resp := dto.ListRunsResponse{Runs: make([]dto.PublishRunResponse, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, toRunResponse(run))
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Publish runs retrieved", resp)
}

// DownloadRunReport streams the run report as an xlsx attachment
func (h *RunHandler) DownloadRunReport(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	filename, content, err := h.reportFlow.ExportRunReport(ctx, c.Params("uuid"))
	if err != nil {
		return h.flowError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Send(content)
}

func (h *RunHandler) flowError(c fiber.Ctx, err error) error {
	if errors.Is(err, businessflow.ErrRunNotFound) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Publish run not found", "RUN_NOT_FOUND", nil)
	}
	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		status := fiber.StatusInternalServerError
		if be.Code == "VALIDATION_ERROR" {
			status = fiber.StatusBadRequest
		}
		return h.ErrorResponse(c, status, be.Message, be.Code, nil)
	}
	return h.ErrorResponse(c, fiber.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR", nil)
}

func toRunResponse(run *models.PublishRun) dto.PublishRunResponse {
	resp := dto.PublishRunResponse{
		UUID:          run.UUID.String(),
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
		AdsAttempted:  run.AdsAttempted,
		AdsLive:       run.AdsLive,
		AdsPartial:    run.AdsPartial,
		AdsReclaimed:  run.AdsReclaimed,
		SelectorError: run.SelectorError,
	}
	if len(run.Outcomes) > 0 {
		// Outcomes are stored as a jsonb snapshot; decode failures leave them out.
		_ = json.Unmarshal(run.Outcomes, &resp.Outcomes)
	}
	return resp
}
