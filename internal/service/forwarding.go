package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
)

// BackOfficeForward is the payload handed to the back office.
type BackOfficeForward struct {
	OriginalRequestID int64     `json:"originalRequestId"`
	CustomerID        string    `json:"customerId"`
	RequestType       string    `json:"requestType"`
	Details           string    `json:"details"`
	RequestTimestamp  time.Time `json:"requestTimestamp"`
}

// ForwardToBackOffice hands the request to the back office. Delivery
// failures are recorded as FORWARD_FAILED and never returned as errors.
func (s *CrmService) ForwardToBackOffice(ctx context.Context, id int64) (*domain.ServiceRequest, error) {
	log := s.logger.With(zap.Int64("request_id", id))

	var result *domain.ServiceRequest
	err := s.withRequest(ctx, id, func(ctx context.Context, req *domain.ServiceRequest) error {
		if req.Status == domain.RequestStatusForwarded || req.Status == domain.RequestStatusCompleted {
			log.Warn("service request already forwarded or completed; skipping",
				zap.String("status", string(req.Status)))
			result = req
			return nil
		}

		payload := BackOfficeForward{
			OriginalRequestID: req.ID,
			CustomerID:        req.CustomerID,
			RequestType:       req.RequestType,
			Details:           req.RequestDetails,
			RequestTimestamp:  s.now(),
		}
		log.Info("forwarding service request to back office", zap.String("url", s.downstream.BackOfficeURL))

		outcome := events.RequestForwardedPayload{Status: domain.RequestStatusForwardFailed}
		resp, err := s.gateway.Post(ctx, s.downstream.BackOfficeURL, payload)
		switch {
		case err != nil:
			log.Error("back office unreachable", zap.Error(err))
			outcome.Error = err.Error()
		case !resp.Success():
			log.Error("back office rejected forward", zap.Int("status_code", resp.StatusCode))
			outcome.StatusCode = resp.StatusCode
		default:
			log.Info("service request forwarded", zap.Int("status_code", resp.StatusCode))
			outcome.Status = domain.RequestStatusForwarded
			outcome.StatusCode = resp.StatusCode
		}

		// The outcome is recorded even when the caller gave up during the call.
		persistCtx := context.WithoutCancel(ctx)
		oldStatus := req.Status
		oldAssignee := req.Clone().AssignedTo
		req.Status = outcome.Status
		req.Assign(domain.BackOfficeQueue)

		if err := s.requests.Save(persistCtx, req); err != nil {
			return fmt.Errorf("save service request: %w", err)
		}
		log.Info("persisted forward outcome", zap.String("status", string(req.Status)))

		s.publishStatusChange(persistCtx, req.ID, domain.SourceForwarding, oldStatus, req.Status)
		s.publishAssignment(persistCtx, req.ID, domain.SourceForwarding, oldAssignee, req.AssignedTo)
		s.publishEvent(persistCtx, events.Event{
			Type:      events.EventRequestForwarded,
			RequestID: req.ID,
			Source:    domain.SourceForwarding,
			Payload:   outcome,
		})
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
