package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/amirphl/outreach-autopilot/app/dto"
	"github.com/amirphl/outreach-autopilot/app/scheduler"
	businessflow "github.com/amirphl/outreach-autopilot/business_flow"
	"github.com/amirphl/outreach-autopilot/models"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// AutopilotHandlerInterface defines the contract for autopilot ops handlers
type AutopilotHandlerInterface interface {
	RunCampaign(c fiber.Ctx) error
	GetRun(c fiber.Ctx) error
	ListRunEvents(c fiber.Ctx) error
	DownloadRunReport(c fiber.Ctx) error
}

// RunTrigger starts a forced run of one campaign
type RunTrigger interface {
	RunCampaign(ctx context.Context, campaignID uint) (*scheduler.RunOutcome, error)
}

// AutopilotHandler handles forced runs and run inspection
type AutopilotHandler struct {
	trigger    RunTrigger
	reports    businessflow.RunReportFlow
	runTimeout time.Duration
}

func (h *AutopilotHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AutopilotHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewAutopilotHandler creates a new autopilot handler. runTimeout bounds a forced run.
func NewAutopilotHandler(trigger RunTrigger, reports businessflow.RunReportFlow, runTimeout time.Duration) *AutopilotHandler {
	if runTimeout <= 0 {
		runTimeout = defaultRequestTimeout
	}
	return &AutopilotHandler{
		trigger:    trigger,
		reports:    reports,
		runTimeout: runTimeout,
	}
}

// RunCampaign forces a run of one campaign regardless of its send window
// @Summary Force a campaign run
// @Tags Autopilot
// @Produce json
// @Param id path integer true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.RunJobResponse} "Run finished"
// @Failure 400 {object} dto.APIResponse "Invalid campaign id"
// @Failure 409 {object} dto.APIResponse "A run is already in progress"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/autopilot/campaigns/{id}/run [post]
func (h *AutopilotHandler) RunCampaign(c fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/autopilot/campaigns/{id}/run", h.runTimeout)
	defer cancel()

	outcome, err := h.trigger.RunCampaign(ctx, uint(id))
	if err != nil {
		if businessflow.IsRunInProgress(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "A run for this campaign is already in progress", "RUN_IN_PROGRESS", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to run campaign", "RUN_CAMPAIGN_FAILED", err.Error())
	}
	if outcome.Job == nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to start run", "RUN_CAMPAIGN_FAILED", errString(outcome.Err))
	}

	resp := toRunJobResponse(outcome.Job)
	if outcome.Err != nil {
		if businessflow.IsCampaignNotFound(outcome.Err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", resp)
		}
		if businessflow.IsConfigurationError(outcome.Err) {
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Campaign automation config is invalid", "INVALID_AUTOMATION_CONFIG", resp)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign run failed", "RUN_CAMPAIGN_FAILED", resp)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaign run finished", resp)
}

// GetRun returns one run job
// @Summary Get run job
// @Tags Autopilot
// @Produce json
// @Param uuid path string true "Run job UUID"
// @Success 200 {object} dto.APIResponse{data=dto.RunJobResponse}
// @Failure 404 {object} dto.APIResponse "Run job not found"
// @Router /api/v1/autopilot/runs/{uuid} [get]
func (h *AutopilotHandler) GetRun(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid uuid", "INVALID_UUID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/autopilot/runs/{uuid}", defaultRequestTimeout)
	defer cancel()

	job, err := h.reports.GetRun(ctx, id)
	if err != nil {
		return h.reportError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Run job retrieved successfully", toRunJobResponse(job))
}

// ListRunEvents returns a page of a run's event log, oldest first
// @Summary List run events
// @Tags Autopilot
// @Produce json
// @Param uuid path string true "Run job UUID"
// @Param limit query integer false "Page size (default 100, max 1000)"
// @Param offset query integer false "Offset"
// @Success 200 {object} dto.APIResponse{data=dto.ListRunEventsResponse}
// @Failure 404 {object} dto.APIResponse "Run job not found"
// @Router /api/v1/autopilot/runs/{uuid}/events [get]
func (h *AutopilotHandler) ListRunEvents(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid uuid", "INVALID_UUID", nil)
	}

	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := createRequestContext(c, "/api/v1/autopilot/runs/{uuid}/events", defaultRequestTimeout)
	defer cancel()

	events, err := h.reports.ListEvents(ctx, id, limit, offset)
	if err != nil {
		return h.reportError(c, err)
	}

	items := make([]dto.RunEventItem, 0, len(events))
	for _, e := range events {
		item := dto.RunEventItem{
			ID:        e.ID,
			Level:     string(e.Level),
			Kind:      e.Kind,
			Message:   e.Message,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
		if len(e.Metadata) > 0 {
			item.Metadata = e.Metadata
		}
		items = append(items, item)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Run events retrieved successfully", dto.ListRunEventsResponse{
		Items:  items,
		Limit:  limit,
		Offset: offset,
	})
}

// DownloadRunReport streams the xlsx report of one run
// @Summary Download run report
// @Tags Autopilot
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param uuid path string true "Run job UUID"
// @Success 200 {file} binary
// @Failure 404 {object} dto.APIResponse "Run job not found"
// @Router /api/v1/autopilot/runs/{uuid}/report.xlsx [get]
func (h *AutopilotHandler) DownloadRunReport(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid uuid", "INVALID_UUID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/autopilot/runs/{uuid}/report.xlsx", defaultRequestTimeout)
	defer cancel()

	filename, data, err := h.reports.DownloadRunReportExcel(ctx, id)
	if err != nil {
		return h.reportError(c, err)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

func (h *AutopilotHandler) reportError(c fiber.Ctx, err error) error {
	if businessflow.IsRunJobNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Run job not found", "RUN_JOB_NOT_FOUND", nil)
	}
	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, be.Message, be.Code, nil)
	}
	return h.ErrorResponse(c, fiber.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR", nil)
}

func toRunJobResponse(job *models.RunJob) dto.RunJobResponse {
	resp := dto.RunJobResponse{
		UUID:         job.UUID.String(),
		CampaignID:   job.CampaignID,
		RunType:      string(job.RunType),
		Status:       job.Status.String(),
		Progress:     job.Progress,
		Summary:      job.Summary,
		Errors:       []string(job.Errors),
		ErrorMessage: job.ErrorMessage,
		StartedAt:    job.StartedAt.Format(time.RFC3339),
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	if job.FinishedAt != nil {
		finished := job.FinishedAt.Format(time.RFC3339)
		resp.FinishedAt = &finished
	}
	return resp
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}
