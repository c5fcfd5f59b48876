package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/gateway"
	"github.com/spec-kit/crm-service/internal/lock"
	"github.com/spec-kit/crm-service/internal/repository"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

const lockKind = "service_request"

// AssignmentPolicy decides when a direct status update stores assignedTo.
type AssignmentPolicy int

const (
	// AssignIfPresent stores any non-blank assignee.
	AssignIfPresent AssignmentPolicy = iota
	// AssignIfBlank stores the assignee only when it is supplied but blank,
	// matching the behavior of the legacy CRM.
	AssignIfBlank
)

// AssignmentPolicyFromConfig maps the config value; unknown values fall back
// to AssignIfPresent.
func AssignmentPolicyFromConfig(value string) AssignmentPolicy {
	if value == config.AssignmentPolicyLegacyBlank {
		return AssignIfBlank
	}
	return AssignIfPresent
}

// CrmService coordinates service request workflows.
type CrmService struct {
	requests   repository.ServiceRequestRepository
	locker     lock.Locker
	gateway    gateway.Gateway
	dispatcher events.Dispatcher
	logger     *zap.Logger
	downstream config.DownstreamConfig
	assignment AssignmentPolicy
	now        func() time.Time
}

// CrmDependencies bundles collaborators for the CRM service.
type CrmDependencies struct {
	RequestRepo      repository.ServiceRequestRepository
	Locker           lock.Locker
	Gateway          gateway.Gateway
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
	Downstream       config.DownstreamConfig
	AssignmentPolicy AssignmentPolicy
	Clock            func() time.Time
}

// CreateRequestInput describes intake payload. Status and timestamps are
// never accepted from callers.
type CreateRequestInput struct {
	CustomerID     string
	RequestType    string
	RequestDetails string
}

// UpdateStatusInput describes an administrative status override.
type UpdateStatusInput struct {
	Status     domain.RequestStatus
	AssignedTo *string
}

// IncomingTrigger is a generic action notification from another service.
type IncomingTrigger struct {
	SourceService string
	Action        string
	RelatedID     *int64
	Data          map[string]any
}

// NewCrmService constructs the service.
func NewCrmService(deps CrmDependencies) *CrmService {
	svc := &CrmService{
		requests:   deps.RequestRepo,
		locker:     deps.Locker,
		gateway:    deps.Gateway,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		downstream: deps.Downstream,
		assignment: deps.AssignmentPolicy,
		now:        deps.Clock,
	}
	if svc.locker == nil {
		svc.locker = lock.NewLocalLocker()
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// CreateRequest records a new request in PENDING.
func (s *CrmService) CreateRequest(ctx context.Context, input CreateRequestInput) (*domain.ServiceRequest, error) {
	details := map[string]any{}
	if strings.TrimSpace(input.CustomerID) == "" {
		details["customerId"] = "required"
	}
	if strings.TrimSpace(input.RequestType) == "" {
		details["requestType"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("customerId and requestType are required", details)
	}

	req := &domain.ServiceRequest{
		CustomerID:     strings.TrimSpace(input.CustomerID),
		RequestType:    strings.TrimSpace(input.RequestType),
		RequestDetails: input.RequestDetails,
		Status:         domain.RequestStatusPending,
	}
	if err := s.requests.Save(ctx, req); err != nil {
		return nil, fmt.Errorf("save service request: %w", err)
	}
	s.logger.Info("created service request", zap.Int64("request_id", req.ID))

	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestCreated,
		RequestID: req.ID,
		Source:    domain.SourceIntake,
		Payload: events.RequestCreatedPayload{
			CustomerID:  req.CustomerID,
			RequestType: req.RequestType,
			Status:      req.Status,
		},
	})
	return req, nil
}

// GetRequest fetches a request by id.
func (s *CrmService) GetRequest(ctx context.Context, id int64) (*domain.ServiceRequest, error) {
	return s.load(ctx, id)
}

// ListRequests returns every request in store order.
func (s *CrmService) ListRequests(ctx context.Context) ([]domain.ServiceRequest, error) {
	return s.requests.List(ctx)
}

// UpdateStatus overrides the status without consulting any transition rules.
func (s *CrmService) UpdateStatus(ctx context.Context, id int64, input UpdateStatusInput) (*domain.ServiceRequest, error) {
	if !input.Status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": string(input.Status)})
	}

	var updated *domain.ServiceRequest
	err := s.withRequest(ctx, id, func(ctx context.Context, req *domain.ServiceRequest) error {
		oldStatus := req.Status
		oldAssignee := req.Clone().AssignedTo

		req.Status = input.Status
		if s.shouldAssign(input.AssignedTo) {
			req.Assign(*input.AssignedTo)
		}

		if err := s.requests.Save(ctx, req); err != nil {
			return fmt.Errorf("save service request: %w", err)
		}
		s.logger.Info("updated service request status",
			zap.Int64("request_id", id),
			zap.String("status", string(req.Status)))

		s.publishStatusChange(ctx, req.ID, domain.SourceDirectUpdate, oldStatus, req.Status)
		s.publishAssignment(ctx, req.ID, domain.SourceDirectUpdate, oldAssignee, req.AssignedTo)
		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *CrmService) shouldAssign(assignedTo *string) bool {
	if assignedTo == nil {
		return false
	}
	blank := strings.TrimSpace(*assignedTo) == ""
	if s.assignment == AssignIfBlank {
		return blank
	}
	return !blank
}

// ApplyIncomingTrigger applies an action sent by another service. Malformed
// action data is logged and dropped; the record is persisted either way.
func (s *CrmService) ApplyIncomingTrigger(ctx context.Context, trigger IncomingTrigger) error {
	if trigger.RelatedID == nil {
		s.logger.Warn("incoming trigger has no related request id; skipping",
			zap.String("source_service", trigger.SourceService),
			zap.String("action", trigger.Action))
		return nil
	}
	id := *trigger.RelatedID
	log := s.logger.With(
		zap.Int64("request_id", id),
		zap.String("source_service", trigger.SourceService),
		zap.String("action", trigger.Action))

	return s.withRequest(ctx, id, func(ctx context.Context, req *domain.ServiceRequest) error {
		oldStatus := req.Status
		oldAssignee := req.Clone().AssignedTo

		switch action := domain.DecodeTriggerAction(trigger.Action, trigger.Data).(type) {
		case domain.UpdateStatusAction:
			if action.Err != nil {
				log.Error("dropping malformed status update", zap.Any("new_status", action.Raw), zap.Error(action.Err))
				break
			}
			req.Status = action.NewStatus
		case domain.AssignAgentAction:
			if action.Err != nil {
				log.Warn("dropping malformed agent assignment", zap.Error(action.Err))
				break
			}
			req.Assign(action.AgentID)
			log.Info("assigning agent", zap.String("agent_id", action.AgentID))
		case domain.UnhandledAction:
			log.Warn("unhandled trigger action")
		default:
			log.Error("unknown trigger action variant", zap.String("type", fmt.Sprintf("%T", action)))
		}

		if err := s.requests.Save(ctx, req); err != nil {
			return fmt.Errorf("save service request: %w", err)
		}
		log.Info("processed incoming trigger", zap.String("status", string(req.Status)))

		s.publishStatusChange(ctx, req.ID, domain.SourceIncomingTrigger, oldStatus, req.Status)
		s.publishAssignment(ctx, req.ID, domain.SourceIncomingTrigger, oldAssignee, req.AssignedTo)
		return nil
	})
}

// withRequest loads the record under its lock and runs fn.
func (s *CrmService) withRequest(ctx context.Context, id int64, fn func(ctx context.Context, req *domain.ServiceRequest) error) error {
	err := s.locker.WithLock(ctx, lock.RecordKey(lockKind, id), func(ctx context.Context) error {
		req, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		return fn(ctx, req)
	})
	if errors.Is(err, lock.ErrNotObtained) {
		return apperrors.NewConflict("service request is busy", map[string]any{"id": id})
	}
	return err
}

func (s *CrmService) load(ctx context.Context, id int64) (*domain.ServiceRequest, error) {
	req, err := s.requests.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("service request", map[string]any{"id": id})
	}
	if err != nil {
		return nil, fmt.Errorf("load service request %d: %w", id, err)
	}
	return req, nil
}

func (s *CrmService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *CrmService) publishStatusChange(ctx context.Context, id int64, source domain.ChangeSource, oldStatus, newStatus domain.RequestStatus) {
	if oldStatus == newStatus {
		return
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestStatusChanged,
		RequestID: id,
		Source:    source,
		Payload: events.RequestStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
		},
	})
}

func (s *CrmService) publishAssignment(ctx context.Context, id int64, source domain.ChangeSource, oldAssignee, newAssignee *string) {
	if sameAssignee(oldAssignee, newAssignee) {
		return
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestAssigned,
		RequestID: id,
		Source:    source,
		Payload: events.RequestAssignedPayload{
			OldAssignee: oldAssignee,
			NewAssignee: newAssignee,
		},
	})
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
