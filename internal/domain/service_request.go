package domain

import (
	"fmt"
	"strings"
	"time"
)

// RequestStatus enumerates lifecycle states for service requests.
type RequestStatus string

const (
	RequestStatusPending       RequestStatus = "PENDING"
	RequestStatusInProgress    RequestStatus = "IN_PROGRESS"
	RequestStatusForwarded     RequestStatus = "FORWARDED"
	RequestStatusForwardFailed RequestStatus = "FORWARD_FAILED"
	RequestStatusCompleted     RequestStatus = "COMPLETED"
	RequestStatusCanceled      RequestStatus = "CANCELED"
)

// BackOfficeQueue is the assignee recorded for every forward attempt.
const BackOfficeQueue = "BackOfficeQueue"

// PaymentCompletedRequestType marks requests completed by a payment notification.
const PaymentCompletedRequestType = "PaymentCompletedTrigger"

var requestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusInProgress,
	RequestStatusForwarded,
	RequestStatusForwardFailed,
	RequestStatusCompleted,
	RequestStatusCanceled,
}

// RequestStatuses returns every known status.
func RequestStatuses() []RequestStatus {
	return append([]RequestStatus(nil), requestStatuses...)
}

// ParseRequestStatus matches a status name case-insensitively.
func ParseRequestStatus(raw string) (RequestStatus, error) {
	candidate := RequestStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, status := range requestStatuses {
		if status == candidate {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown request status %q", raw)
}

// Valid reports whether s is one of the known statuses.
func (s RequestStatus) Valid() bool {
	for _, status := range requestStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// ServiceRequest is the aggregate tracked through its lifecycle.
type ServiceRequest struct {
	ID             int64
	CustomerID     string
	RequestType    string
	RequestDetails string
	Status         RequestStatus
	AssignedTo     *string
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// Clone returns a deep copy so callers never share pointers with a store.
func (r *ServiceRequest) Clone() *ServiceRequest {
	if r == nil {
		return nil
	}
	out := *r
	if r.AssignedTo != nil {
		assigned := *r.AssignedTo
		out.AssignedTo = &assigned
	}
	if r.UpdatedAt != nil {
		updated := *r.UpdatedAt
		out.UpdatedAt = &updated
	}
	return &out
}

// Assign sets the assignee.
func (r *ServiceRequest) Assign(assignee string) {
	r.AssignedTo = &assignee
}

// Assignee returns the assignee or an empty string.
func (r *ServiceRequest) Assignee() string {
	if r.AssignedTo == nil {
		return ""
	}
	return *r.AssignedTo
}
