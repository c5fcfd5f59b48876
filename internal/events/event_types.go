package events

import (
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestCreated       EventType = "request_created"
	EventRequestStatusChanged EventType = "request_status_changed"
	EventRequestAssigned      EventType = "request_assigned"
	EventPaymentCompleted     EventType = "request_payment_completed"
	EventRequestForwarded     EventType = "request_forwarded"
	EventTriggerDispatched    EventType = "request_trigger_dispatched"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string              `json:"id"`
	Type      EventType           `json:"type"`
	RequestID int64               `json:"request_id"`
	Source    domain.ChangeSource `json:"source"`
	Timestamp time.Time           `json:"timestamp"`
	Payload   interface{}         `json:"payload"`
}

// RequestCreatedPayload payload.
type RequestCreatedPayload struct {
	CustomerID  string               `json:"customer_id"`
	RequestType string               `json:"request_type"`
	Status      domain.RequestStatus `json:"status"`
}

// RequestStatusChangedPayload payload.
type RequestStatusChangedPayload struct {
	OldStatus domain.RequestStatus `json:"old_status"`
	NewStatus domain.RequestStatus `json:"new_status"`
}

// RequestAssignedPayload payload.
type RequestAssignedPayload struct {
	OldAssignee *string `json:"old_assignee,omitempty"`
	NewAssignee *string `json:"new_assignee,omitempty"`
}

// PaymentCompletedPayload payload.
type PaymentCompletedPayload struct {
	EventID               string    `json:"event_id"`
	PaymentTransactionRef string    `json:"payment_transaction_ref"`
	AmountPaid            string    `json:"amount_paid"`
	PaymentTimestamp      time.Time `json:"payment_timestamp"`
}

// RequestForwardedPayload payload.
type RequestForwardedPayload struct {
	Status     domain.RequestStatus `json:"status"`
	StatusCode int                  `json:"status_code,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// TriggerDispatchedPayload payload.
type TriggerDispatchedPayload struct {
	Action     domain.TriggerActionType `json:"action"`
	StatusCode int                      `json:"status_code"`
}
