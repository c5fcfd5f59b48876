package handlers

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/dto"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/service"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// TriggersHandler serves the cross-service trigger endpoints.
type TriggersHandler struct {
	service *service.CrmService
}

// NewTriggersHandler constructs handler.
func NewTriggersHandler(crmService *service.CrmService) *TriggersHandler {
	return &TriggersHandler{service: crmService}
}

// PaymentCompleted POST /api/crm/requests/trigger/payment-completed.
func (h *TriggersHandler) PaymentCompleted(c *fiber.Ctx) error {
	var req dto.PaymentCompletedRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	completed, err := h.service.ProcessPaymentCompleted(c.UserContext(), service.PaymentCompletedEvent{
		EventID:               req.EventID,
		ServiceRequestID:      *req.ServiceRequestID,
		PaymentTransactionRef: req.PaymentTransactionRef,
		AmountPaid:            *req.AmountPaid,
		PaymentTimestamp:      *req.PaymentTimestamp,
	})
	if err != nil {
		return err
	}
	if completed == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.JSON(fiber.Map{"data": dto.NewServiceRequestResponse(completed)})
}

// Receive POST /api/crm/requests/trigger/receive.
func (h *TriggersHandler) Receive(c *fiber.Ctx) error {
	var req dto.IncomingTriggerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	err := h.service.ApplyIncomingTrigger(c.UserContext(), service.IncomingTrigger{
		SourceService: req.SourceService,
		Action:        req.Action,
		RelatedID:     req.RelatedCrmRequestID,
		Data:          req.Data,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(dto.MessageResponse{Message: "trigger accepted"})
}

// Send POST /api/crm/requests/trigger/send/:requestId?action=.
func (h *TriggersHandler) Send(c *fiber.Ctx) error {
	id, err := requestID(c, "requestId")
	if err != nil {
		return err
	}
	action, err := domain.ParseTriggerActionType(c.Query("action"))
	if err != nil {
		return apperrors.NewValidationError("unknown action", map[string]any{"action": c.Query("action")})
	}
	if err := h.service.DispatchTrigger(c.UserContext(), id, action); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{
		Message: fmt.Sprintf("triggered %s for service request %d", action, id),
	})
}
