// Package api exposes the scheduling engine over HTTP for staff tools
// and the upstream booking platform.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"trimly/internal/availability"
	"trimly/internal/blocks"
	"trimly/internal/booking"
	"trimly/internal/events"
	"trimly/internal/model"
)

// Config holds the HTTP server settings.
type Config struct {
	Port           int
	APIKey         string
	RateLimitRPS   float64
	RateLimitBurst int
}

// HTTPServer serves the engine API.
type HTTPServer struct {
	server   *http.Server
	platform booking.Platform
	blocks   *blocks.Store
	calc     *availability.Calculator
	flow     *booking.Flow
	bus      *events.Bus
	limiter  *rate.Limiter
	apiKey   string
	now      func() time.Time
	log      zerolog.Logger
}

// NewHTTPServer wires the engine components behind the API routes.
func NewHTTPServer(cfg Config, platform booking.Platform, blockStore *blocks.Store, calc *availability.Calculator, flow *booking.Flow, bus *events.Bus, log zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		platform: platform,
		blocks:   blockStore,
		calc:     calc,
		flow:     flow,
		bus:      bus,
		apiKey:   cfg.APIKey,
		now:      time.Now,
		log:      log,
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = int(cfg.RateLimitRPS)
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/availability", s.handleAvailability)
	mux.HandleFunc("/api/conflicts", s.handleConflicts)
	mux.HandleFunc("/api/blocks", s.handleBlocks)
	mux.HandleFunc("/api/blocks/", s.handleBlockByID)
	mux.HandleFunc("/api/schedule/export", s.handleScheduleExport)
	mux.HandleFunc("/api/booking", s.handleBookingStart)
	mux.HandleFunc("/api/booking/", s.handleBookingSession)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.middleware(mux),
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *HTTPServer) Handler() http.Handler { return s.server.Handler }

// WithClock overrides the wall clock, for tests.
func (s *HTTPServer) WithClock(now func() time.Time) *HTTPServer {
	s.now = now
	return s
}

// Start serves requests until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("api server listening")
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		if s.apiKey != "" && r.Header.Get("X-API-Key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// availabilityInput assembles one date's calculator input from the
// platform and the local block store.
func (s *HTTPServer) availabilityInput(ctx context.Context, shopID int64, selector model.ResourceSelector, durationMinutes int, date time.Time) (availability.Input, error) {
	hours, err := s.platform.FetchOperatingHours(ctx, shopID)
	if err != nil {
		return availability.Input{}, err
	}
	appointments, err := s.platform.FetchAppointments(ctx, shopID, model.AnyResource(), date)
	if err != nil {
		return availability.Input{}, err
	}
	blockList, err := s.blocks.ListForShop(ctx, shopID)
	if err != nil {
		return availability.Input{}, err
	}

	byResource := make(map[int64][]model.Appointment)
	for _, a := range appointments {
		byResource[a.ResourceID] = append(byResource[a.ResourceID], a)
	}

	var resourceIDs []int64
	if selector.IsAny() {
		resources, err := s.platform.FetchResources(ctx, shopID)
		if err != nil {
			return availability.Input{}, err
		}
		for _, r := range resources {
			resourceIDs = append(resourceIDs, r.ID)
		}
	}

	return availability.Input{
		Date:            date,
		Hours:           *hours,
		DurationMinutes: durationMinutes,
		Selector:        selector,
		Resources:       resourceIDs,
		Appointments:    byResource,
		Blocks:          blockList,
	}, nil
}

func (s *HTTPServer) upstreamError(w http.ResponseWriter, err error, op string) {
	s.log.Error().Err(err).Str("op", op).Msg("platform api request failed")
	writeError(w, http.StatusBadGateway, "platform api unavailable")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
