// Package gateway performs synchronous JSON calls to downstream services.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/observability"
)

const maxResponseBody = 1 << 20

// Response is a completed downstream exchange, successful or not.
type Response struct {
	StatusCode int
	Body       []byte
}

// Success reports a 2xx status.
func (r *Response) Success() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// TransportError means no usable response was received.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("post %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Gateway posts a payload to a downstream URL.
type Gateway interface {
	Post(ctx context.Context, url string, payload any) (*Response, error)
}

// HTTPGateway is the net/http implementation with process-wide timeouts.
type HTTPGateway struct {
	client  *http.Client
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewHTTPGateway builds a gateway with a dial timeout of cfg.ConnectTimeout
// and a response timeout of cfg.ReadTimeout.
func NewHTTPGateway(cfg config.DownstreamConfig, logger *zap.Logger, metrics *observability.Metrics) *HTTPGateway {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout()}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout(),
		ResponseHeaderTimeout: cfg.ReadTimeout(),
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &HTTPGateway{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.ConnectTimeout() + cfg.ReadTimeout(),
		},
		logger:  logger,
		metrics: metrics,
	}
}

func (g *HTTPGateway) Post(ctx context.Context, target string, payload any) (*Response, error) {
	host := hostOf(target)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &TransportError{URL: target, Err: fmt.Errorf("encode payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		g.metrics.RecordDownstream(host, "error")
		return nil, &TransportError{URL: target, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.metrics.RecordDownstream(host, "error")
		g.logger.Warn("downstream call failed",
			zap.String("url", target),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))
		return nil, &TransportError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		g.metrics.RecordDownstream(host, "error")
		return nil, &TransportError{URL: target, Err: fmt.Errorf("read response: %w", err)}
	}

	out := &Response{StatusCode: resp.StatusCode, Body: respBody}
	outcome := "ok"
	if !out.Success() {
		outcome = "status_" + strconv.Itoa(resp.StatusCode)
	}
	g.metrics.RecordDownstream(host, outcome)
	g.logger.Debug("downstream call completed",
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))
	return out, nil
}

func hostOf(target string) string {
	parsed, err := url.Parse(target)
	if err != nil || parsed.Host == "" {
		return target
	}
	return parsed.Host
}
