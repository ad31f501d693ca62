package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/forecastr/internal/featured"
	"github.com/selivandex/forecastr/internal/health"
	"github.com/selivandex/forecastr/internal/levels"
	"github.com/selivandex/forecastr/pkg/logger"
	"github.com/selivandex/forecastr/pkg/models"
)

// Engine is the scoring surface exposed over HTTP
type Engine interface {
	GetRating(ctx context.Context, symbol, category string) (*models.TickerRating, error)
	GetBatchRatings(ctx context.Context, category string, minScore float64) (*models.BatchResult, error)
	DetectTradingWindows(ctx context.Context, symbol, category string, daysAhead int) ([]models.TradingWindow, error)
	DetectConvergenceForecastedSwings(ctx context.Context, symbols []string, category string) ([]*models.ConvergenceForecast, error)
	DetectPostReversalMomentum(ctx context.Context, symbols []string, category string) ([]*models.ReversalOpportunity, error)
	GetLevels(ctx context.Context, symbol, category string) (*levels.LevelSet, error)
}

// Featured is the featured cache surface exposed over HTTP
type Featured interface {
	ShouldRefresh(ctx context.Context) (featured.Decision, error)
	Refresh(ctx context.Context, force bool) (featured.Decision, error)
	Featured(ctx context.Context, category string) ([]models.FeaturedTicker, error)
}

// Options tunes the HTTP server
type Options struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
}

// Server is the thin HTTP layer over the engine and featured manager
type Server struct {
	engine   Engine
	featured Featured
	probes   *health.Probes
	opts     Options
	server   *http.Server
	log      *zap.Logger
}

// NewServer creates API server
func NewServer(engine Engine, feat Featured, probes *health.Probes, opts Options) *Server {
	s := &Server{
		engine:   engine,
		featured: feat,
		probes:   probes,
		opts:     opts,
		log:      logger.Named("api"),
	}
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.Handler(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler builds the routed handler with middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.probes != nil {
		s.probes.Register(mux)
	}

	mux.HandleFunc("GET /api/ratings/{symbol}", s.handleRating)
	mux.HandleFunc("GET /api/ratings", s.handleBatchRatings)
	mux.HandleFunc("GET /api/levels/{symbol}", s.handleLevels)
	mux.HandleFunc("GET /api/windows/{symbol}", s.handleWindows)
	mux.HandleFunc("GET /api/convergence", s.handleConvergence)
	mux.HandleFunc("GET /api/reversals", s.handleReversals)
	mux.HandleFunc("GET /api/featured", s.handleFeatured)
	mux.HandleFunc("GET /api/featured/status", s.handleFeaturedStatus)
	mux.HandleFunc("POST /api/featured/refresh", s.handleFeaturedRefresh)

	return s.recoverer(s.timeout(s.logging(mux)))
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.log.Info("api server starting", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("stopping api server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRating(w http.ResponseWriter, r *http.Request) {
	rating, err := s.engine.GetRating(r.Context(), r.PathValue("symbol"), category(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}

func (s *Server) handleBatchRatings(w http.ResponseWriter, r *http.Request) {
	minScore, err := floatParam(r, "min_score", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.engine.GetBatchRatings(r.Context(), category(r), minScore)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	set, err := s.engine.GetLevels(r.Context(), r.PathValue("symbol"), category(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", 30)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	windows, err := s.engine.DetectTradingWindows(r.Context(), r.PathValue("symbol"), category(r), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"windows": windows})
}

func (s *Server) handleConvergence(w http.ResponseWriter, r *http.Request) {
	forecasts, err := s.engine.DetectConvergenceForecastedSwings(r.Context(), symbols(r), category(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"forecasts": forecasts})
}

func (s *Server) handleReversals(w http.ResponseWriter, r *http.Request) {
	opps, err := s.engine.DetectPostReversalMomentum(r.Context(), symbols(r), category(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"opportunities": opps})
}

func (s *Server) handleFeatured(w http.ResponseWriter, r *http.Request) {
	rows, err := s.featured.Featured(r.Context(), category(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"featured": rows})
}

func (s *Server) handleFeaturedStatus(w http.ResponseWriter, r *http.Request) {
	d, err := s.featured.ShouldRefresh(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleFeaturedRefresh(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	d, err := s.featured.Refresh(r.Context(), force)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// StatusFor maps the error taxonomy to HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, featured.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrMissingData):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	if code >= 500 {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func category(r *http.Request) string {
	return r.URL.Query().Get("category")
}

func symbols(r *http.Request) []string {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, models.ErrConfiguration)
	}
	return v, nil
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, models.ErrConfiguration)
	}
	return v, nil
}
