package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/nimasrn/drgame-ledger/pkg/prom"
	"github.com/valyala/fasthttp"
)

// statusError is a non-2xx answer. 5xx is worth retrying, 4xx is not.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.code, e.body)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	return !errors.Is(err, ErrRejected) && !errors.Is(err, ErrCircuitOpen) &&
		!errors.Is(err, context.Canceled)
}

// breaker opens after threshold consecutive failures and stays open for cooldown.
type breaker struct {
	threshold        int32
	cooldown         time.Duration
	consecutiveFails atomic.Int32
	openUntil        atomic.Int64
}

func (b *breaker) allow() bool {
	return time.Now().UnixNano() >= b.openUntil.Load()
}

func (b *breaker) success() {
	b.consecutiveFails.Store(0)
}

func (b *breaker) failure(provider string) {
	if n := b.consecutiveFails.Add(1); n >= b.threshold {
		b.openUntil.Store(time.Now().Add(b.cooldown).UnixNano())
		b.consecutiveFails.Store(0)
		logger.Warn("circuit breaker opened", "provider", provider, "consecutive_fails", n, "cooldown", b.cooldown)
	}
}

// transport is a JSON-over-fasthttp caller with deadlines, retries and a circuit breaker.
type transport struct {
	provider   string
	client     *fasthttp.Client
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	breaker    *breaker
	stats      *Stats
}

func newTransport(provider string, cfg Config) *transport {
	cfg = cfg.withDefaults()
	return &transport{
		provider: provider,
		client: &fasthttp.Client{
			Name:                provider,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			Dial:                cfg.Dial,
		},
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		breaker:    &breaker{threshold: int32(cfg.BreakerThreshold), cooldown: cfg.BreakerCooldown},
		stats:      NewStats(),
	}
}

// postJSON sends body to url and decodes the reply into out, retrying transport errors and 5xx.
func (t *transport) postJSON(ctx context.Context, endpoint, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.retryDelay):
			}
		}
		if !t.breaker.allow() {
			return fmt.Errorf("%s %s: %w", t.provider, endpoint, ErrCircuitOpen)
		}

		start := time.Now()
		raw, err := t.do(ctx, url, headers, payload)
		elapsed := time.Since(start)
		prom.ObserveGatewayRequest(t.provider, endpoint, elapsed.Seconds(), err != nil)
		if err == nil {
			t.stats.RecordSuccess(elapsed.Milliseconds())
			t.breaker.success()
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("decode %s response: %w", endpoint, err)
			}
			return nil
		}

		t.stats.RecordFailure()
		t.breaker.failure(t.provider)
		lastErr = err
		logger.Warn("gateway request failed", "provider", t.provider, "endpoint", endpoint, "attempt", attempt+1, "error", err)
		if !retryable(err) {
			break
		}
	}
	return fmt.Errorf("%s %s failed: %w", t.provider, endpoint, lastErr)
}

func (t *transport) do(ctx context.Context, url string, headers map[string]string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.SetBody(body)

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, &statusError{code: code, body: string(resp.Body())}
	}

	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}

func (t *transport) snapshot() Snapshot {
	return Snapshot{
		Provider:     t.provider,
		Total:        t.stats.TotalRequests.Load(),
		Failed:       t.stats.FailedReqs.Load(),
		SuccessRate:  t.stats.SuccessRate(),
		AvgLatencyMs: t.stats.AvgLatencyMs(),
		P95LatencyMs: t.stats.P95LatencyMs(),
		CircuitOpen:  !t.breaker.allow(),
	}
}
