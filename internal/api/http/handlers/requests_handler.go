package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/dto"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/service"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// RequestsHandler manages service request endpoints.
type RequestsHandler struct {
	service *service.CrmService
	history *service.HistoryService
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(crmService *service.CrmService, historyService *service.HistoryService) *RequestsHandler {
	return &RequestsHandler{service: crmService, history: historyService}
}

// Create POST /api/crm/requests.
func (h *RequestsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateServiceRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	created, err := h.service.CreateRequest(c.UserContext(), service.CreateRequestInput{
		CustomerID:     req.CustomerID,
		RequestType:    req.RequestType,
		RequestDetails: req.RequestDetails,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewServiceRequestResponse(created)})
}

// List GET /api/crm/requests.
func (h *RequestsHandler) List(c *fiber.Ctx) error {
	requests, err := h.service.ListRequests(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.ServiceRequestResponse, 0, len(requests))
	for i := range requests {
		items = append(items, dto.NewServiceRequestResponse(&requests[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /api/crm/requests/:id.
func (h *RequestsHandler) Get(c *fiber.Ctx) error {
	id, err := requestID(c, "id")
	if err != nil {
		return err
	}
	req, err := h.service.GetRequest(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewServiceRequestResponse(req)})
}

// History GET /api/crm/requests/:id/history.
func (h *RequestsHandler) History(c *fiber.Ctx) error {
	id, err := requestID(c, "id")
	if err != nil {
		return err
	}
	entries, err := h.history.ListForRequest(c.UserContext(), id)
	if err != nil {
		return err
	}
	items := make([]dto.RequestHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewRequestHistoryResponse(entry))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateStatus PUT /api/crm/requests/:id/status.
func (h *RequestsHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := requestID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	status, err := domain.ParseRequestStatus(req.Status)
	if err != nil {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": req.Status})
	}
	updated, err := h.service.UpdateStatus(c.UserContext(), id, service.UpdateStatusInput{
		Status:     status,
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewServiceRequestResponse(updated)})
}

// Forward POST /api/crm/requests/:id/forward.
func (h *RequestsHandler) Forward(c *fiber.Ctx) error {
	id, err := requestID(c, "id")
	if err != nil {
		return err
	}
	forwarded, err := h.service.ForwardToBackOffice(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewServiceRequestResponse(forwarded)})
}

func requestID(c *fiber.Ctx, param string) (int64, error) {
	raw := c.Params(param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid request id", map[string]any{param: raw})
	}
	return id, nil
}
