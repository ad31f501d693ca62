package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/forecastr/pkg/logger"
)

// Checker is a dependency that can report its health
type Checker interface {
	Health(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context) error

// Health calls f
func (f CheckerFunc) Health(ctx context.Context) error {
	return f(ctx)
}

// Probes serves liveness and readiness endpoints
type Probes struct {
	mu        sync.RWMutex
	checks    map[string]Checker
	ready     bool
	startTime time.Time
}

// Status is the probe response body
type Status struct {
	Status    string            `json:"status"`
	Ready     bool              `json:"ready"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// NewProbes creates probes
func NewProbes() *Probes {
	return &Probes{checks: make(map[string]Checker), startTime: time.Now()}
}

// Add registers a named dependency check
func (p *Probes) Add(name string, c Checker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks[name] = c
}

// SetReady marks the service as ready
func (p *Probes) SetReady(ready bool) {
	p.mu.Lock()
	p.ready = ready
	p.mu.Unlock()
	logger.Info("service readiness changed", zap.Bool("ready", ready))
}

// Register mounts /health, /ready and their k8s aliases
func (p *Probes) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", p.handleHealth)
	mux.HandleFunc("GET /healthz", p.handleHealth)
	mux.HandleFunc("GET /ready", p.handleReady)
	mux.HandleFunc("GET /readyz", p.handleReady)
}

// handleHealth is the liveness probe: 200 while the process runs
func (p *Probes) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := p.status()
	if r.URL.Query().Get("verbose") == "true" {
		status.Checks, _ = p.run(r.Context())
	}
	writeJSON(w, http.StatusOK, status)
}

// handleReady is the readiness probe: 503 until ready and every dependency is healthy
func (p *Probes) handleReady(w http.ResponseWriter, r *http.Request) {
	status := p.status()
	checks, ok := p.run(r.Context())
	status.Checks = checks

	code := http.StatusOK
	if !status.Ready || !ok {
		status.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (p *Probes) status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Status{
		Status:    "healthy",
		Ready:     p.ready,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(p.startTime).Round(time.Second).String(),
	}
}

func (p *Probes) run(ctx context.Context) (map[string]string, bool) {
	p.mu.RLock()
	names := make([]string, 0, len(p.checks))
	for name := range p.checks {
		names = append(names, name)
	}
	p.mu.RUnlock()
	sort.Strings(names)

	out := make(map[string]string, len(names))
	ok := true
	for _, name := range names {
		p.mu.RLock()
		c := p.checks[name]
		p.mu.RUnlock()
		if err := c.Health(ctx); err != nil {
			out[name] = "unhealthy: " + err.Error()
			ok = false
			continue
		}
		out[name] = "healthy"
	}
	return out, ok
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write health response", zap.Error(err))
	}
}
