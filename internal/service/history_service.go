package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/repository"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// HistoryService turns domain events into audit trail entries.
type HistoryService struct {
	dispatcher events.Dispatcher
	history    repository.RequestHistoryRepository
	requests   repository.ServiceRequestRepository
	logger     *zap.Logger
}

// NewHistoryService creates the service.
func NewHistoryService(dispatcher events.Dispatcher, history repository.RequestHistoryRepository, requests repository.ServiceRequestRepository, logger *zap.Logger) *HistoryService {
	return &HistoryService{
		dispatcher: dispatcher,
		history:    history,
		requests:   requests,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (h *HistoryService) RegisterHandlers() {
	if h.dispatcher == nil {
		return
	}
	h.dispatcher.Subscribe(events.EventRequestCreated, h.handleCreated)
	h.dispatcher.Subscribe(events.EventRequestStatusChanged, h.handleStatusChanged)
	h.dispatcher.Subscribe(events.EventRequestAssigned, h.handleAssigned)
	h.dispatcher.Subscribe(events.EventPaymentCompleted, h.handlePaymentCompleted)
	h.dispatcher.Subscribe(events.EventRequestForwarded, h.handleForwarded)
	h.dispatcher.Subscribe(events.EventTriggerDispatched, h.handleTriggerDispatched)
}

// ListForRequest returns the audit trail of an existing request.
func (h *HistoryService) ListForRequest(ctx context.Context, requestID int64) ([]domain.RequestHistory, error) {
	if _, err := h.requests.Get(ctx, requestID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("service request", map[string]any{"id": requestID})
		}
		return nil, err
	}
	return h.history.ListByRequest(ctx, requestID)
}

func (h *HistoryService) handleCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RequestCreatedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	return h.record(ctx, event, domain.ChangeTypeCreated, nil, map[string]any{
		"customerId":  payload.CustomerID,
		"requestType": payload.RequestType,
		"status":      payload.Status,
	})
}

func (h *HistoryService) handleStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RequestStatusChangedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	return h.record(ctx, event, domain.ChangeTypeStatus,
		map[string]any{"status": payload.OldStatus},
		map[string]any{"status": payload.NewStatus})
}

func (h *HistoryService) handleAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RequestAssignedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	return h.record(ctx, event, domain.ChangeTypeAssignee,
		map[string]any{"assignedTo": payload.OldAssignee},
		map[string]any{"assignedTo": payload.NewAssignee})
}

func (h *HistoryService) handlePaymentCompleted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PaymentCompletedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	return h.record(ctx, event, domain.ChangeTypePaymentCompleted, nil, map[string]any{
		"eventId":               payload.EventID,
		"paymentTransactionRef": payload.PaymentTransactionRef,
		"amountPaid":            payload.AmountPaid,
		"paymentTimestamp":      payload.PaymentTimestamp,
	})
}

func (h *HistoryService) handleForwarded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RequestForwardedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	value := map[string]any{"status": payload.Status}
	if payload.StatusCode != 0 {
		value["statusCode"] = payload.StatusCode
	}
	if payload.Error != "" {
		value["error"] = payload.Error
	}
	return h.record(ctx, event, domain.ChangeTypeForwardResult, nil, value)
}

func (h *HistoryService) handleTriggerDispatched(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TriggerDispatchedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	return h.record(ctx, event, domain.ChangeTypeTriggerDispatched, nil, map[string]any{
		"action":     payload.Action,
		"statusCode": payload.StatusCode,
	})
}

func (h *HistoryService) record(ctx context.Context, event events.Event, change domain.RequestChangeType, oldValue, newValue map[string]any) error {
	h.logger.Debug("recording request history",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Int64("request_id", event.RequestID))
	entry := &domain.RequestHistory{
		RequestID:  event.RequestID,
		ChangeType: change,
		Source:     event.Source,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	return h.history.Create(ctx, entry)
}

func unexpectedPayload(event events.Event) error {
	return fmt.Errorf("event %s: unexpected payload %T", event.Type, event.Payload)
}
