// Package pool runs outbound HTTP requests on a fixed number of slots.
//
// Acquire never waits: when every slot is busy the caller gets a capacity
// failure immediately and decides whether to retry. A slot is released exactly
// once when its request finishes, whatever the outcome.
package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalog/internal/domain"
	"github.com/kailas-cloud/catalog/internal/metrics"
)

// Defaults for Config fields left zero.
const (
	DefaultSize    = 4
	DefaultTimeout = 30 * time.Second
)

// Request describes one outbound GET.
type Request struct {
	// Endpoint is a low-cardinality label for metrics and logs.
	Endpoint string
	URL      string
	// Query is URL-encoded and appended to URL's existing query.
	Query url.Values
	// Headers are added after the fixed and privileged headers.
	Headers map[string]string
}

// Config holds pool settings.
type Config struct {
	Size      int
	Timeout   time.Duration
	UserAgent string
	// PrivilegedHost receives PrivilegedHeaders; no other host ever does.
	PrivilegedHost    string
	PrivilegedHeaders map[string]string
	// HTTPClient is the host transport. Defaults to a client with no timeout of
	// its own; the per-call deadline comes from Timeout.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Pool is a bounded set of transport slots.
type Pool struct {
	slots       []atomic.Bool
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	privHost    string
	privHeaders map[string]string
	logger      *zap.Logger
}

// New creates a pool.
func New(cfg Config) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	headers := make(map[string]string, len(cfg.PrivilegedHeaders))
	for k, v := range cfg.PrivilegedHeaders {
		headers[k] = v
	}
	return &Pool{
		slots:       make([]atomic.Bool, cfg.Size),
		client:      cfg.HTTPClient,
		timeout:     cfg.Timeout,
		userAgent:   cfg.UserAgent,
		privHost:    hostOf(cfg.PrivilegedHost),
		privHeaders: headers,
		logger:      cfg.Logger,
	}
}

// Slot is one acquired unit of transport capacity.
type Slot struct {
	pool     *Pool
	index    int
	released atomic.Bool
}

// Acquire claims an idle slot. It returns false when all slots are busy.
func (p *Pool) Acquire() (*Slot, bool) {
	for i := range p.slots {
		if p.slots[i].CompareAndSwap(false, true) {
			metrics.PoolSlotsBusy.Inc()
			return &Slot{pool: p, index: i}, true
		}
	}
	metrics.PoolRejectionsTotal.Inc()
	return nil, false
}

func (s *Slot) release() {
	if s.released.CompareAndSwap(false, true) {
		s.pool.slots[s.index].Store(false)
		metrics.PoolSlotsBusy.Dec()
	}
}

// Size returns the number of slots.
func (p *Pool) Size() int { return len(p.slots) }

// Busy returns the number of slots currently executing a request.
func (p *Pool) Busy() int {
	n := 0
	for i := range p.slots {
		if p.slots[i].Load() {
			n++
		}
	}
	return n
}

// Do acquires a slot and executes req on it.
func (p *Pool) Do(ctx context.Context, req Request) ([]byte, error) {
	slot, ok := p.Acquire()
	if !ok {
		metrics.TransportRequestsTotal.WithLabelValues(endpointLabel(req), string(domain.KindCapacity)).Inc()
		return nil, domain.Errorf(domain.KindCapacity, endpointLabel(req),
			"all %d transport slots are busy", len(p.slots))
	}
	return p.Execute(ctx, slot, req)
}

// Execute performs req on slot and returns the response body.
// The slot is released before Execute returns, including when the request
// cannot be built or started.
func (p *Pool) Execute(ctx context.Context, slot *Slot, req Request) ([]byte, error) {
	if slot == nil || slot.pool != p {
		return nil, errors.New("pool: slot does not belong to this pool")
	}
	defer slot.release()

	op := endpointLabel(req)
	start := time.Now()

	body, err := p.execute(ctx, op, req)

	outcome := "ok"
	if err != nil {
		if k, ok := domain.KindOf(err); ok {
			outcome = string(k)
		} else {
			outcome = "error"
		}
	}
	metrics.TransportRequestsTotal.WithLabelValues(op, outcome).Inc()
	metrics.TransportRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	p.logger.Debug("outbound request",
		zap.String("endpoint", op),
		zap.Int("slot", slot.index),
		zap.String("outcome", outcome),
		zap.Int("bytes", len(body)),
		zap.Duration("latency", time.Since(start)),
	)
	return body, err
}

func (p *Pool) execute(ctx context.Context, op string, req Request) ([]byte, error) {
	target, err := BuildURL(req.URL, req.Query)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidInput, op, "invalid request url", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidInput, op, "cannot build request", err)
	}
	p.setHeaders(httpReq, target, req.Headers)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &domain.Error{
			Kind:   domain.KindHTTPStatus,
			Op:     op,
			Status: resp.StatusCode,
			Msg:    fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, op, err)
	}
	return body, nil
}

func (p *Pool) setHeaders(r *http.Request, target *url.URL, extra map[string]string) {
	if p.userAgent != "" {
		r.Header.Set("User-Agent", p.userAgent)
	}
	r.Header.Set("Accept", "*/*")
	if p.privHost != "" && strings.EqualFold(target.Host, p.privHost) {
		for k, v := range p.privHeaders {
			r.Header.Set(k, v)
		}
	}
	for k, v := range extra {
		r.Header.Set(k, v)
	}
}

// BuildURL parses raw and appends query, keeping any query raw already has.
func BuildURL(raw string, query url.Values) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", raw)
	}
	if len(query) > 0 {
		enc := query.Encode()
		if u.RawQuery == "" {
			u.RawQuery = enc
		} else {
			u.RawQuery += "&" + enc
		}
	}
	return u, nil
}

// hostOf accepts either a bare host or a base URL.
func hostOf(s string) string {
	if s == "" {
		return ""
	}
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		return u.Host
	}
	return s
}

func endpointLabel(req Request) string {
	if req.Endpoint == "" {
		return "other"
	}
	return req.Endpoint
}
