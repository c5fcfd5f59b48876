package domain

import "time"

// RequestChangeType captures what changed in a history entry.
type RequestChangeType string

const (
	ChangeTypeCreated           RequestChangeType = "CREATED"
	ChangeTypeStatus            RequestChangeType = "STATUS_CHANGE"
	ChangeTypeAssignee          RequestChangeType = "ASSIGNEE_CHANGE"
	ChangeTypePaymentCompleted  RequestChangeType = "PAYMENT_COMPLETED"
	ChangeTypeForwardResult     RequestChangeType = "FORWARD_RESULT"
	ChangeTypeTriggerDispatched RequestChangeType = "TRIGGER_DISPATCHED"
)

// ChangeSource identifies which inbound channel produced a change.
type ChangeSource string

const (
	SourceIntake          ChangeSource = "INTAKE"
	SourceDirectUpdate    ChangeSource = "DIRECT_UPDATE"
	SourceIncomingTrigger ChangeSource = "INCOMING_TRIGGER"
	SourcePayment         ChangeSource = "PAYMENT"
	SourceForwarding      ChangeSource = "FORWARDING"
	SourceDispatch        ChangeSource = "DISPATCH"
)

// RequestHistory is an immutable audit trail entry.
type RequestHistory struct {
	ID         int64
	RequestID  int64
	ChangeType RequestChangeType
	Source     ChangeSource
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
