package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/domain"
	"slotbook/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// HTTPDeps are the services behind the HTTP API. Exporter and Ready may be nil.
type HTTPDeps struct {
	Bookings domain.BookingService
	Catalog  domain.CatalogService
	Exporter domain.ScheduleExporter
	Ready    func(ctx context.Context) error
}

// HTTPServer exposes the JSON API alongside the gRPC service.
type HTTPServer struct {
	cfg        config.APIConfig
	deps       HTTPDeps
	router     *chi.Mux
	server     *http.Server
	auth       *HTTPAuth
	validate   *validator.Validate
	translator ut.Translator
	log        zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, deps HTTPDeps, logger *zerolog.Logger) (*HTTPServer, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("register validator translations: %w", err)
	}

	serverLogger := zerolog.Nop()
	if logger != nil {
		serverLogger = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{
		cfg:        cfg,
		deps:       deps,
		router:     chi.NewRouter(),
		auth:       NewHTTPAuth(cfg),
		validate:   validate,
		translator: trans,
		log:        serverLogger,
	}
	srv.registerRoutes()

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv, nil
}

func (s *HTTPServer) registerRoutes() {
	s.router.Use(s.requestLogger)
	s.router.Use(s.recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.RateLimit)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Require(permReadSlots))
			r.Get("/businesses", s.handleListBusinesses)
			r.Get("/businesses/{id}", s.handleGetBusiness)
			r.Get("/businesses/{id}/hours", s.handleResolveHours)
			r.Get("/businesses/{id}/hours/week", s.handleGetWeek)
			r.Get("/businesses/{id}/services", s.handleListServices)
			r.Get("/services/{id}", s.handleGetService)
			r.Get("/services/{id}/slots", s.handleGetSlots)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Require(permWriteBookings))
			r.Post("/bookings", s.handleCreateBooking)
			r.Get("/bookings/{id}", s.handleGetBooking)
			r.Post("/bookings/{id}/status", s.handleChangeStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Require(permAdminCatalog))
			r.Post("/businesses", s.handleCreateBusiness)
			r.Put("/businesses/{id}/hours/{weekday}", s.handleSetHours)
			r.Delete("/businesses/{id}/hours/{weekday}", s.handleCloseWeekday)
			r.Post("/businesses/{id}/services", s.handleCreateService)
			r.Put("/services/{id}", s.handleUpdateService)
			r.Get("/businesses/{id}/schedule.xlsx", s.handleExportDay)
		})
	})
}

// Handler returns the routed handler with all middleware.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg     config.APIConfig
	keys    *keyring
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{
		cfg:     cfg,
		keys:    newKeyring(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

// Require authenticates the caller and checks one permission.
func (a *HTTPAuth) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.cfg.Auth.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			client, err := a.keys.authenticate(
				strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader)),
				strings.TrimSpace(r.Header.Get(a.keys.extraHeader)),
			)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			if err := authorize(client, permission); err != nil {
				writeError(w, http.StatusForbidden, "forbidden", err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *HTTPAuth) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiter.Allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", errRateLimitExceeded.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.IncHTTP(route)

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *HTTPServer) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("http handler panic")
				writeError(w, http.StatusInternalServerError, "internal", "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorResponse{Error: code, Message: message})
}
