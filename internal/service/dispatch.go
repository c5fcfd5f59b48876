package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// OutboundTrigger is the action envelope sent to another microservice.
type OutboundTrigger struct {
	SourceService       string                   `json:"sourceService"`
	Action              domain.TriggerActionType `json:"action"`
	RelatedCrmRequestID int64                    `json:"relatedCrmRequestId"`
	CustomerID          string                   `json:"customerId"`
	RequestType         string                   `json:"requestType"`
	Details             string                   `json:"details"`
}

// DispatchTrigger notifies the other microservice about a request. Delivery
// failures are returned as DELIVERY_FAILED; the request is never modified.
func (s *CrmService) DispatchTrigger(ctx context.Context, requestID int64, action domain.TriggerActionType) error {
	if _, err := domain.ParseTriggerActionType(string(action)); err != nil {
		return apperrors.NewValidationError("unknown action", map[string]any{"action": string(action)})
	}
	log := s.logger.With(zap.Int64("request_id", requestID), zap.String("action", string(action)))

	return s.withRequest(ctx, requestID, func(ctx context.Context, req *domain.ServiceRequest) error {
		target := s.downstream.ExternalActionsURL()
		envelope := OutboundTrigger{
			SourceService:       s.downstream.SourceService,
			Action:              action,
			RelatedCrmRequestID: req.ID,
			CustomerID:          req.CustomerID,
			RequestType:         req.RequestType,
			Details:             req.RequestDetails,
		}
		log.Info("triggering other microservice", zap.String("customer_id", req.CustomerID), zap.String("url", target))

		resp, err := s.gateway.Post(ctx, target, envelope)
		if err != nil {
			log.Error("trigger delivery failed", zap.Error(err))
			return apperrors.NewDeliveryFailed(fmt.Sprintf("failed to trigger other microservice for request %d", req.ID), err)
		}
		if !resp.Success() {
			log.Error("trigger rejected downstream", zap.Int("status_code", resp.StatusCode))
			return apperrors.NewDeliveryFailed(
				fmt.Sprintf("other microservice responded %d for request %d", resp.StatusCode, req.ID), nil)
		}

		s.publishEvent(ctx, events.Event{
			Type:      events.EventTriggerDispatched,
			RequestID: req.ID,
			Source:    domain.SourceDispatch,
			Payload: events.TriggerDispatchedPayload{
				Action:     action,
				StatusCode: resp.StatusCode,
			},
		})
		return nil
	})
}
