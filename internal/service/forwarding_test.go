package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/gateway"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

func TestForwardSuccess(t *testing.T) {
	f := newFixture(t)
	req := f.create(t)

	forwarded, err := f.svc.ForwardToBackOffice(context.Background(), req.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusForwarded, forwarded.Status)
	assert.Equal(t, domain.BackOfficeQueue, forwarded.Assignee())
	require.Equal(t, 1, f.gateway.callCount())

	call := f.gateway.lastCall()
	assert.Equal(t, testDownstream.BackOfficeURL, call.URL)
	payload, ok := call.Payload.(BackOfficeForward)
	require.True(t, ok)
	assert.Equal(t, req.ID, payload.OriginalRequestID)
	assert.Equal(t, req.CustomerID, payload.CustomerID)
	assert.Equal(t, req.RequestType, payload.RequestType)
	assert.Equal(t, req.RequestDetails, payload.Details)
	assert.Equal(t, f.now, payload.RequestTimestamp)
}

func TestForwardNonSuccessBecomesForwardFailed(t *testing.T) {
	f := newFixture(t)
	req := f.create(t)
	f.gateway.respond(http.StatusInternalServerError)

	forwarded, err := f.svc.ForwardToBackOffice(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusForwardFailed, forwarded.Status)
	assert.Equal(t, domain.BackOfficeQueue, forwarded.Assignee())

	stored := f.stored(t, req.ID)
	assert.Equal(t, domain.RequestStatusForwardFailed, stored.Status)
	assert.Equal(t, domain.BackOfficeQueue, stored.Assignee())
}

func TestForwardTransportErrorBecomesForwardFailed(t *testing.T) {
	f := newFixture(t)
	req := f.create(t)
	f.gateway.fail(&gateway.TransportError{URL: testDownstream.BackOfficeURL, Err: errors.New("connection refused")})

	forwarded, err := f.svc.ForwardToBackOffice(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusForwardFailed, forwarded.Status)
	assert.Equal(t, domain.BackOfficeQueue, forwarded.Assignee())
	assert.NotNil(t, f.stored(t, req.ID).UpdatedAt)
}

// stallingGateway holds the call until the caller's context ends.
type stallingGateway struct{}

func (stallingGateway) Post(ctx context.Context, url string, _ any) (*gateway.Response, error) {
	<-ctx.Done()
	return nil, &gateway.TransportError{URL: url, Err: ctx.Err()}
}

func TestForwardRecordsFailureWhenCallerDeadlinePasses(t *testing.T) {
	f := newFixture(t, func(d *CrmDependencies) { d.Gateway = stallingGateway{} })
	req := f.create(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	forwarded, err := f.svc.ForwardToBackOffice(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusForwardFailed, forwarded.Status)

	stored := f.stored(t, req.ID)
	assert.Equal(t, domain.RequestStatusForwardFailed, stored.Status)
	assert.Equal(t, domain.BackOfficeQueue, stored.Assignee())

	entries, err := f.history.ListForRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ChangeTypeForwardResult, entries[len(entries)-1].ChangeType)
}

func TestForwardSkipsForwardedAndCompleted(t *testing.T) {
	for _, status := range []domain.RequestStatus{domain.RequestStatusForwarded, domain.RequestStatusCompleted} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			req := f.create(t)
			f.setStatus(t, req.ID, status)
			before := f.stored(t, req.ID)

			result, err := f.svc.ForwardToBackOffice(context.Background(), req.ID)
			require.NoError(t, err)

			assert.Equal(t, before, result)
			assert.Equal(t, before, f.stored(t, req.ID))
			assert.Equal(t, 0, f.gateway.callCount())
		})
	}
}

func TestForwardRetryAfterFailure(t *testing.T) {
	f := newFixture(t)
	req := f.create(t)
	ctx := context.Background()

	f.gateway.respond(http.StatusBadGateway)
	failed, err := f.svc.ForwardToBackOffice(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RequestStatusForwardFailed, failed.Status)

	f.gateway.respond(http.StatusOK)
	retried, err := f.svc.ForwardToBackOffice(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusForwarded, retried.Status)
	assert.Equal(t, 2, f.gateway.callCount())
}

func TestForwardUnknownRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ForwardToBackOffice(context.Background(), 5)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	assert.Equal(t, 0, f.gateway.callCount())
}

func TestForwardScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.CreateRequest(ctx, CreateRequestInput{CustomerID: "CUST1", RequestType: "BAL_INQ"})
	require.NoError(t, err)
	assert.NotZero(t, req.ID)
	assert.Equal(t, domain.RequestStatusPending, req.Status)

	inProgress, err := f.svc.UpdateStatus(ctx, req.ID, UpdateStatusInput{Status: domain.RequestStatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusInProgress, inProgress.Status)

	f.gateway.respond(http.StatusOK)
	forwarded, err := f.svc.ForwardToBackOffice(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusForwarded, forwarded.Status)
	assert.Equal(t, domain.BackOfficeQueue, forwarded.Assignee())

	again, err := f.svc.ForwardToBackOffice(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, forwarded, again)
	assert.Equal(t, 1, f.gateway.callCount())
}
