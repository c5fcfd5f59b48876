package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/gateway"
	"github.com/spec-kit/crm-service/internal/lock"
	"github.com/spec-kit/crm-service/internal/repository"
)

type gatewayCall struct {
	URL     string
	Payload any
}

type fakeGateway struct {
	mu    sync.Mutex
	calls []gatewayCall
	resp  *gateway.Response
	err   error
}

func (g *fakeGateway) Post(_ context.Context, url string, payload any) (*gateway.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, gatewayCall{URL: url, Payload: payload})
	if g.err != nil {
		return nil, g.err
	}
	if g.resp != nil {
		return g.resp, nil
	}
	return &gateway.Response{StatusCode: 200}, nil
}

func (g *fakeGateway) respond(status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resp = &gateway.Response{StatusCode: status}
	g.err = nil
}

func (g *fakeGateway) fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGateway) lastCall() gatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[len(g.calls)-1]
}

// slowRepository widens the read-modify-write window.
type slowRepository struct {
	repository.ServiceRequestRepository
	delay time.Duration
}

func (r *slowRepository) Get(ctx context.Context, id int64) (*domain.ServiceRequest, error) {
	req, err := r.ServiceRequestRepository.Get(ctx, id)
	time.Sleep(r.delay)
	return req, err
}

type fixture struct {
	svc      *CrmService
	history  *HistoryService
	repo     *repository.MemoryServiceRequestRepository
	trail    *repository.MemoryRequestHistoryRepository
	gateway  *fakeGateway
	now      time.Time
	settings CrmDependencies
}

var testDownstream = config.DownstreamConfig{
	BackOfficeURL:   "http://backoffice.local/api/requests",
	OtherServiceURL: "http://other.local",
	SourceService:   "my-crm-service",
}

func newFixture(t *testing.T, opts ...func(*CrmDependencies)) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	repo := repository.NewMemoryServiceRequestRepository().WithClock(func() time.Time { return now })
	trail := repository.NewMemoryRequestHistoryRepository()
	gw := &fakeGateway{}
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())

	deps := CrmDependencies{
		RequestRepo: repo,
		Locker:      lock.NewLocalLocker(),
		Gateway:     gw,
		Dispatcher:  dispatcher,
		Logger:      zap.NewNop(),
		Downstream:  testDownstream,
		Clock:       func() time.Time { return now },
	}
	for _, opt := range opts {
		opt(&deps)
	}

	history := NewHistoryService(dispatcher, trail, repo, zap.NewNop())
	history.RegisterHandlers()

	return &fixture{
		svc:      NewCrmService(deps),
		history:  history,
		repo:     repo,
		trail:    trail,
		gateway:  gw,
		now:      now,
		settings: deps,
	}
}

func (f *fixture) create(t *testing.T) *domain.ServiceRequest {
	t.Helper()
	req, err := f.svc.CreateRequest(context.Background(), CreateRequestInput{
		CustomerID:     "CUST100",
		RequestType:    "ACCOUNT_BALANCE",
		RequestDetails: "Check balance for account ending 1234",
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) setStatus(t *testing.T, id int64, status domain.RequestStatus) {
	t.Helper()
	_, err := f.svc.UpdateStatus(context.Background(), id, UpdateStatusInput{Status: status})
	require.NoError(t, err)
}

func (f *fixture) stored(t *testing.T, id int64) *domain.ServiceRequest {
	t.Helper()
	req, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return req
}

func ptr[T any](v T) *T {
	return &v
}
