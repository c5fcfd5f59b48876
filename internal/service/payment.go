package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// PaymentCompletedEvent is the payment system's completion notification.
type PaymentCompletedEvent struct {
	EventID               string
	ServiceRequestID      int64
	PaymentTransactionRef string
	AmountPaid            decimal.Decimal
	PaymentTimestamp      time.Time
}

// ProcessPaymentCompleted completes the request. A request already
// COMPLETED yields (nil, nil); a CANCELED request is rejected.
func (s *CrmService) ProcessPaymentCompleted(ctx context.Context, event PaymentCompletedEvent) (*domain.ServiceRequest, error) {
	log := s.logger.With(
		zap.String("event_id", event.EventID),
		zap.Int64("request_id", event.ServiceRequestID))
	log.Info("processing payment completed event")

	if strings.TrimSpace(event.PaymentTransactionRef) == "" {
		return nil, apperrors.NewValidationError("paymentTransactionRef is required", nil)
	}

	var completed *domain.ServiceRequest
	err := s.withRequest(ctx, event.ServiceRequestID, func(ctx context.Context, req *domain.ServiceRequest) error {
		switch req.Status {
		case domain.RequestStatusCompleted:
			log.Warn("service request already completed; ignoring duplicate payment event")
			return nil
		case domain.RequestStatusCanceled:
			log.Error("payment completed for canceled service request")
			return apperrors.NewIllegalState("cannot complete a canceled request", map[string]any{
				"id":      req.ID,
				"eventId": event.EventID,
			})
		}

		oldStatus := req.Status
		req.Status = domain.RequestStatusCompleted
		req.RequestDetails = paymentDetails(event)
		req.RequestType = domain.PaymentCompletedRequestType

		if err := s.requests.Save(ctx, req); err != nil {
			return fmt.Errorf("save service request: %w", err)
		}
		log.Info("service request completed by payment")

		s.publishStatusChange(ctx, req.ID, domain.SourcePayment, oldStatus, req.Status)
		s.publishEvent(ctx, events.Event{
			Type:      events.EventPaymentCompleted,
			RequestID: req.ID,
			Source:    domain.SourcePayment,
			Payload: events.PaymentCompletedPayload{
				EventID:               event.EventID,
				PaymentTransactionRef: event.PaymentTransactionRef,
				AmountPaid:            formatAmount(event.AmountPaid),
				PaymentTimestamp:      event.PaymentTimestamp,
			},
		})
		completed = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

func paymentDetails(event PaymentCompletedEvent) string {
	return fmt.Sprintf("paymentTransactionRef : %s , amountPaid : %s",
		event.PaymentTransactionRef, formatAmount(event.AmountPaid))
}

// formatAmount keeps every fractional digit that was paid, padding to at
// least two places.
func formatAmount(amount decimal.Decimal) string {
	places := -amount.Exponent()
	if places < 2 {
		places = 2
	}
	return amount.StringFixed(places)
}
