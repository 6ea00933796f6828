package handlers

import (
	"errors"
	"time"

	"github.com/amirphl/outreach-autopilot/app/dto"
	businessflow "github.com/amirphl/outreach-autopilot/business_flow"
	"github.com/amirphl/outreach-autopilot/models"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// EngagementHandlerInterface defines the contract for delivery webhooks
type EngagementHandlerInterface interface {
	Open(c fiber.Ctx) error
	Reply(c fiber.Ctx) error
	Unsubscribe(c fiber.Ctx) error
}

// EngagementHandler receives open, reply and unsubscribe notifications
type EngagementHandler struct {
	flow      businessflow.EngagementFlow
	validator *validator.Validate
}

func (h *EngagementHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *EngagementHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewEngagementHandler creates a new engagement handler
func NewEngagementHandler(flow businessflow.EngagementFlow) *EngagementHandler {
	return &EngagementHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

// Open records the first open of a message
// @Summary Record message open
// @Tags Engagement
// @Accept json
// @Produce json
// @Param request body dto.EngagementRequest true "Tracking id"
// @Success 200 {object} dto.APIResponse{data=dto.EngagementResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Message not found"
// @Router /api/v1/engagement/open [post]
func (h *EngagementHandler) Open(c fiber.Ctx) error {
	trackingID, ok, err := h.parseEngagement(c)
	if !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/engagement/open", defaultRequestTimeout)
	defer cancel()

	msg, err := h.flow.RecordOpen(ctx, trackingID)
	if err != nil {
		return h.flowError(c, err, "Failed to record open", "RECORD_OPEN_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Open recorded", toEngagementResponse(msg))
}

// Reply records a reply and pauses the recipient's sequences
// @Summary Record message reply
// @Tags Engagement
// @Accept json
// @Produce json
// @Param request body dto.EngagementRequest true "Tracking id"
// @Success 200 {object} dto.APIResponse{data=dto.EngagementResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Message not found"
// @Router /api/v1/engagement/reply [post]
func (h *EngagementHandler) Reply(c fiber.Ctx) error {
	trackingID, ok, err := h.parseEngagement(c)
	if !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/engagement/reply", defaultRequestTimeout)
	defer cancel()

	msg, err := h.flow.RecordReply(ctx, trackingID)
	if err != nil {
		return h.flowError(c, err, "Failed to record reply", "RECORD_REPLY_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Reply recorded", toEngagementResponse(msg))
}

// Unsubscribe suppresses an address and pauses its sequences
// @Summary Unsubscribe an address
// @Tags Engagement
// @Accept json
// @Produce json
// @Param request body dto.UnsubscribeRequest true "Address to suppress"
// @Success 200 {object} dto.APIResponse{data=dto.UnsubscribeResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/engagement/unsubscribe [post]
func (h *EngagementHandler) Unsubscribe(c fiber.Ctx) error {
	var req dto.UnsubscribeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/engagement/unsubscribe", defaultRequestTimeout)
	defer cancel()

	paused, err := h.flow.RecordUnsubscribe(ctx, req.Address, req.Reason)
	if err != nil {
		if errors.Is(err, businessflow.ErrInvalidAddress) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid address", "INVALID_ADDRESS", nil)
		}
		return h.flowError(c, err, "Failed to record unsubscribe", "RECORD_UNSUBSCRIBE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Address unsubscribed", dto.UnsubscribeResponse{
		Address:         req.Address,
		PausedSequences: paused,
	})
}

// parseEngagement binds and validates the body. When ok is false the error response has been
// written and err is the result of writing it.
func (h *EngagementHandler) parseEngagement(c fiber.Ctx) (id uuid.UUID, ok bool, err error) {
	var req dto.EngagementRequest
	if err := c.Bind().JSON(&req); err != nil {
		return uuid.Nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return uuid.Nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}
	id, perr := uuid.Parse(req.TrackingID)
	if perr != nil {
		return uuid.Nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tracking id", "INVALID_TRACKING_ID", nil)
	}
	return id, true, nil
}

func (h *EngagementHandler) flowError(c fiber.Ctx, err error, message, code string) error {
	if businessflow.IsMessageNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Message not found", "MESSAGE_NOT_FOUND", nil)
	}
	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, message, be.Code, nil)
	}
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, code, nil)
}

func toEngagementResponse(msg *models.OutboundMessage) dto.EngagementResponse {
	resp := dto.EngagementResponse{
		MessageID:   msg.ID,
		CampaignID:  msg.CampaignID,
		RecipientID: msg.RecipientID,
	}
	if msg.OpenedAt != nil {
		resp.OpenedAt = msg.OpenedAt.Format(time.RFC3339)
	}
	if msg.RepliedAt != nil {
		resp.RepliedAt = msg.RepliedAt.Format(time.RFC3339)
	}
	return resp
}
