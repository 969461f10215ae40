// Package health serves liveness and readiness endpoints backed by periodic
// checks.
//
// Every check runs in its own goroutine. A check turns unhealthy after
// FailureThreshold consecutive failures and healthy again after
// SuccessThreshold consecutive successes. Optional readiness checks are
// reported but never take the service out of rotation, which suits
// dependencies the service can degrade around, such as a cache.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Default thresholds of a check.
const (
	FailureThreshold = 3
	SuccessThreshold = 1
)

// Option tunes a registered check.
type Option func(*check)

// Optional marks a readiness check as non-blocking: its failure is reported
// as degraded while the endpoint still passes.
func Optional() Option {
	return func(c *check) { c.optional = true }
}

// Thresholds overrides the failure and success thresholds.
func Thresholds(failures, successes int) Option {
	return func(c *check) {
		c.failures = max(failures, 1)
		c.successes = max(successes, 1)
	}
}

// check is driven by a single goroutine; endpoint handlers only read the
// atomics.
type check struct {
	name      string
	timeout   time.Duration
	fn        CheckFunc
	optional  bool
	failures  int
	successes int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	failStreak int
	okStreak   int
}

func newCheck(name string, timeout time.Duration, fn CheckFunc, opts []Option) *check {
	c := &check{
		name:      name,
		timeout:   timeout,
		fn:        fn,
		failures:  FailureThreshold,
		successes: SuccessThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	c.healthy.Store(true)
	return c
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)
	if err != nil {
		c.okStreak = 0
		c.failStreak++
		if c.failStreak >= c.failures {
			c.healthy.Store(false)
		}
		return
	}
	c.failStreak = 0
	c.okStreak++
	if c.okStreak >= c.successes {
		c.healthy.Store(true)
	}
}

func (c *check) problem() string {
	if p := c.lastErr.Load(); p != nil && *p != nil {
		return (*p).Error()
	}
	return "check is unhealthy"
}

// Health tracks liveness and readiness of the service.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check of the process itself.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newCheck(name, timeout, fn, opts))
}

// AddReadinessCheck registers a check of a dependency.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(name, timeout, fn, opts))
}

// Start runs every registered check now and then every interval until Stop
// or ctx is done. Register checks before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := append(append([]*check(nil), h.liveness...), h.readiness...)
	h.mu.Unlock()

	for _, c := range checks {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			c.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					c.run(ctx)
				}
			}
		}()
	}
}

// Stop halts the checks. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness gate, e.g. to drain on shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the gate is open and every required readiness
// check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	failed, _ := evaluate(h.snapshot(false))
	return len(failed) == 0
}

func (h *Health) snapshot(liveness bool) []*check {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if liveness {
		return append([]*check(nil), h.liveness...)
	}
	return append([]*check(nil), h.readiness...)
}

// evaluate splits unhealthy checks into blocking failures and degraded
// optional ones.
func evaluate(checks []*check) (failed, degraded map[string]string) {
	failed = map[string]string{}
	degraded = map[string]string{}
	for _, c := range checks {
		if c.healthy.Load() {
			continue
		}
		if c.optional {
			degraded[c.name] = c.problem()
		} else {
			failed[c.name] = c.problem()
		}
	}
	return failed, degraded
}

type statusResponse struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks,omitempty"`
	Degraded map[string]string `json:"degraded,omitempty"`
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	failed, degraded := evaluate(h.snapshot(true))
	writeStatus(w, failed, degraded)
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failed, degraded := evaluate(h.snapshot(false))
	if !h.ready.Load() {
		failed["_readiness"] = "service is not ready"
	}
	writeStatus(w, failed, degraded)
}

func writeStatus(w http.ResponseWriter, failed, degraded map[string]string) {
	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	switch {
	case len(failed) > 0:
		resp.Status = "unhealthy"
		resp.Checks = failed
		code = http.StatusServiceUnavailable
	case len(degraded) > 0:
		resp.Status = "degraded"
	}
	if len(degraded) > 0 {
		resp.Degraded = degraded
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
