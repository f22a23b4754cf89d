// Package health serves liveness and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

const checkTimeout = 5 * time.Second

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Response is the body of GET /health.
type Response struct {
	Status     Status                     `json:"status"`
	Version    string                     `json:"version"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// Checker reports the health of one dependency.
type Checker interface {
	Check(ctx context.Context) ComponentHealth
	Name() string
}

// Registry holds the checkers and renders their results.
type Registry struct {
	version string

	mu       sync.RWMutex
	checkers []Checker
}

func NewRegistry(version string) *Registry {
	return &Registry{version: version}
}

func (r *Registry) Register(checkers ...Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, checkers...)
}

// Routes mounts /health, /health/live and /health/ready.
func (r *Registry) Routes(router chi.Router) {
	router.Get("/health", r.healthHandler)
	router.Get("/health/live", r.livenessHandler)
	router.Get("/health/ready", r.readinessHandler)
}

// Evaluate runs every checker and folds the results into an overall status.
func (r *Registry) Evaluate(ctx context.Context) Response {
	r.mu.RLock()
	checkers := append([]Checker(nil), r.checkers...)
	r.mu.RUnlock()

	components := make(map[string]ComponentHealth, len(checkers))
	overall := StatusHealthy
	for _, c := range checkers {
		h := c.Check(ctx)
		components[c.Name()] = h
		if h.Status == StatusUnhealthy {
			overall = StatusUnhealthy
		} else if h.Status == StatusDegraded && overall == StatusHealthy {
			overall = StatusDegraded
		}
	}
	return Response{
		Status:     overall,
		Version:    r.version,
		Timestamp:  time.Now(),
		Components: components,
	}
}

func (r *Registry) healthHandler(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), checkTimeout)
	defer cancel()

	resp := r.Evaluate(ctx)
	code := http.StatusOK
	if resp.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (r *Registry) livenessHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (r *Registry) readinessHandler(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), checkTimeout)
	defer cancel()

	if r.Evaluate(ctx).Status == StatusUnhealthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// PingChecker wraps a ping function such as (*sql.DB).PingContext.
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
	// failure is reported when ping fails.
	failure Status
}

// NewPingChecker reports unhealthy when ping fails.
func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping, failure: StatusUnhealthy}
}

// Optional downgrades a failure to degraded, for dependencies the API can run without.
func (p *PingChecker) Optional() *PingChecker {
	p.failure = StatusDegraded
	return p
}

func (p *PingChecker) Name() string { return p.name }

func (p *PingChecker) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	err := p.ping(ctx)
	latency := time.Since(start)
	if err != nil {
		return ComponentHealth{
			Status:  p.failure,
			Message: fmt.Sprintf("%s ping failed: %v", p.name, err),
			Latency: latency.String(),
		}
	}
	return ComponentHealth{Status: StatusHealthy, Latency: latency.String()}
}

// TCPChecker dials each address; one reachable address is enough.
func TCPChecker(name string, addrs []string) *PingChecker {
	return NewPingChecker(name, func(ctx context.Context) error {
		var d net.Dialer
		var lastErr error
		for _, addr := range addrs {
			conn, err := d.DialContext(ctx, "tcp", addr)
			if err == nil {
				conn.Close()
				return nil
			}
			lastErr = err
		}
		if lastErr == nil {
			return fmt.Errorf("no addresses configured")
		}
		return lastErr
	})
}
