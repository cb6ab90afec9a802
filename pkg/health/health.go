// Package health exposes liveness and readiness probes for the HTTP server.
//
// All registered checks run from a single background loop. A check flips to
// unhealthy only after failing on consecutive polls (flap damping), and flips
// back after one clean poll. Probe handlers report the state recorded by the
// last poll; they never execute checks inline.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// CheckFunc probes one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// failAfter is how many consecutive failed polls it takes before a probe
// reports unhealthy.
const failAfter = 3

type probe struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	// Guarded by Health.mu. Written only by the poll loop.
	fails   int
	healthy bool
	lastErr error
}

// Health tracks liveness and readiness probes and serves their endpoints.
type Health struct {
	mu        sync.RWMutex
	live      []*probe
	ready     []*probe
	accepting bool
	stop      context.CancelFunc
}

// New returns a Health with no probes registered. The service reports not
// ready until SetReady(true) is called.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a probe behind /livez. Liveness probes answer
// "is this process still functional": goroutine counts, GC pauses.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.live = append(h.live, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a probe behind /readyz. Readiness probes answer
// "can this process serve traffic": database connectivity, warmup state.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = append(h.ready, newProbe(name, timeout, check))
}

func newProbe(name string, timeout time.Duration, check CheckFunc) *probe {
	// Start healthy so a slow first poll does not fail the pod on boot.
	return &probe{name: name, timeout: timeout, fn: check, healthy: true}
}

// Start launches the poll loop. Every probe runs once immediately and then on
// each tick of the interval, all from one goroutine.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.stop = cancel
	h.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		h.pollAll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.pollAll(ctx)
			}
		}
	}()
}

func (h *Health) pollAll(ctx context.Context) {
	h.mu.RLock()
	probes := make([]*probe, 0, len(h.live)+len(h.ready))
	probes = append(probes, h.live...)
	probes = append(probes, h.ready...)
	h.mu.RUnlock()

	for _, p := range probes {
		err := runProbe(ctx, p)

		h.mu.Lock()
		p.lastErr = err
		if err != nil {
			p.fails++
			if p.fails >= failAfter {
				p.healthy = false
			}
		} else {
			p.fails = 0
			p.healthy = true
		}
		h.mu.Unlock()
	}
}

func runProbe(ctx context.Context, p *probe) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.fn(ctx)
}

// SetReady flips the manual readiness gate. Call with true once startup
// finishes and with false at the start of a graceful drain.
func (h *Health) SetReady(ready bool) {
	h.mu.Lock()
	h.accepting = ready
	h.mu.Unlock()
}

// IsReady reports whether the service should receive traffic: the manual gate
// is open and every readiness probe passed its last poll.
func (h *Health) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.accepting {
		return false
	}
	for _, p := range h.ready {
		if !p.healthy {
			return false
		}
	}
	return true
}

// Stop cancels the poll loop. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
}

type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 {"status":"ok"} while every liveness probe
// is healthy, 503 with the failing probes otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	failures := failing(h.live)
	h.mu.RUnlock()

	writeProbeResponse(w, failures)
}

// ReadyEndpoint serves /readyz: 200 {"status":"ok"} when the manual gate is
// open and every readiness probe is healthy, 503 with details otherwise.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	failures := failing(h.ready)
	if !h.accepting {
		failures["_readiness"] = "service is not ready"
	}
	h.mu.RUnlock()

	writeProbeResponse(w, failures)
}

// failing must be called with mu held.
func failing(probes []*probe) map[string]string {
	failures := make(map[string]string)
	for _, p := range probes {
		if p.healthy {
			continue
		}
		if p.lastErr != nil {
			failures[p.name] = p.lastErr.Error()
		} else {
			failures[p.name] = "check is unhealthy"
		}
	}
	return failures
}

func writeProbeResponse(w http.ResponseWriter, failures map[string]string) {
	resp := probeResponse{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
