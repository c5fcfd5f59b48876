package dto

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/crm-service/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate runs struct tag validation on an inbound payload.
func Validate(payload any) error {
	return validate.Struct(payload)
}

// CreateServiceRequestRequest payload.
type CreateServiceRequestRequest struct {
	CustomerID     string `json:"customerId" validate:"required"`
	RequestType    string `json:"requestType" validate:"required"`
	RequestDetails string `json:"requestDetails"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status     string  `json:"status" validate:"required"`
	AssignedTo *string `json:"assignedTo"`
}

// PaymentCompletedRequest is the payment system's completion event.
type PaymentCompletedRequest struct {
	EventID               string           `json:"eventId"`
	ServiceRequestID      *int64           `json:"serviceRequestId" validate:"required"`
	PaymentTransactionRef string           `json:"paymentTransactionRef" validate:"required"`
	AmountPaid            *decimal.Decimal `json:"amountPaid" validate:"required"`
	PaymentTimestamp      *time.Time       `json:"paymentTimestamp" validate:"required"`
}

// IncomingTriggerRequest is an action notification from another service.
type IncomingTriggerRequest struct {
	SourceService       string         `json:"sourceService"`
	Action              string         `json:"action" validate:"required"`
	RelatedCrmRequestID *int64         `json:"relatedCrmRequestId"`
	Data                map[string]any `json:"data"`
}

// ServiceRequestResponse is the public view of a request.
type ServiceRequestResponse struct {
	ID             int64                `json:"id"`
	CustomerID     string               `json:"customerId"`
	RequestType    string               `json:"requestType"`
	RequestDetails string               `json:"requestDetails"`
	Status         domain.RequestStatus `json:"status"`
	AssignedTo     *string              `json:"assignedTo"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      *time.Time           `json:"updatedAt"`
}

// RequestHistoryResponse is one audit trail entry.
type RequestHistoryResponse struct {
	ID         int64                    `json:"id"`
	ChangeType domain.RequestChangeType `json:"changeType"`
	Source     domain.ChangeSource      `json:"source"`
	OldValue   map[string]any           `json:"oldValue,omitempty"`
	NewValue   map[string]any           `json:"newValue,omitempty"`
	CreatedAt  time.Time                `json:"createdAt"`
}

// MessageResponse carries a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// NewServiceRequestResponse maps a domain request.
func NewServiceRequestResponse(req *domain.ServiceRequest) ServiceRequestResponse {
	return ServiceRequestResponse{
		ID:             req.ID,
		CustomerID:     req.CustomerID,
		RequestType:    req.RequestType,
		RequestDetails: req.RequestDetails,
		Status:         req.Status,
		AssignedTo:     req.AssignedTo,
		CreatedAt:      req.CreatedAt,
		UpdatedAt:      req.UpdatedAt,
	}
}

// NewRequestHistoryResponse maps a history entry.
func NewRequestHistoryResponse(entry domain.RequestHistory) RequestHistoryResponse {
	return RequestHistoryResponse{
		ID:         entry.ID,
		ChangeType: entry.ChangeType,
		Source:     entry.Source,
		OldValue:   entry.OldValue,
		NewValue:   entry.NewValue,
		CreatedAt:  entry.CreatedAt,
	}
}
