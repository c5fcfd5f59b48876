package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/observability"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

func newMiddlewareApp(t *testing.T, timeout time.Duration, handler fiber.Handler) (*fiber.App, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics()
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, timeout)
	app.Get("/work", handler)
	return app, metrics
}

func callMiddlewareApp(t *testing.T, app *fiber.App) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/work", nil), 2000)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestDeadlineBecomesRequestTimeout(t *testing.T) {
	app, metrics := newMiddlewareApp(t, 20*time.Millisecond, func(c *fiber.Ctx) error {
		<-c.UserContext().Done()
		return fmt.Errorf("load service request 1: %w", c.UserContext().Err())
	})

	status, body := callMiddlewareApp(t, app)
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, CodeRequestTimeout, errorCode(body))
	assert.Equal(t, int64(1), metrics.Snapshot().Errors["/work|GET|REQUEST_TIMEOUT"])
}

func TestDomainErrorWinsOverDeadline(t *testing.T) {
	app, _ := newMiddlewareApp(t, time.Second, func(c *fiber.Ctx) error {
		return apperrors.NewDeliveryFailed("other microservice unreachable", context.DeadlineExceeded)
	})

	status, body := callMiddlewareApp(t, app)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, apperrors.CodeDeliveryFailed, errorCode(body))
}

func TestUnknownErrorIsInternal(t *testing.T) {
	app, _ := newMiddlewareApp(t, 0, func(c *fiber.Ctx) error {
		return errors.New("disk on fire")
	})

	status, body := callMiddlewareApp(t, app)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, apperrors.CodeInternal, errorCode(body))
	assert.NotContains(t, body["error"].(map[string]any)["message"], "disk")
}

func TestPanicIsRecovered(t *testing.T) {
	app, _ := newMiddlewareApp(t, 0, func(c *fiber.Ctx) error {
		panic("boom")
	})

	status, body := callMiddlewareApp(t, app)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, apperrors.CodeInternal, errorCode(body))
}
