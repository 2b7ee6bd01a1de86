// Package api provides the HTTP API server and handlers for labelsync.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/labelsync/internal/auth"
	"github.com/listenupapp/labelsync/internal/config"
	"github.com/listenupapp/labelsync/internal/http/response"
	"github.com/listenupapp/labelsync/internal/ratelimit"
	"github.com/listenupapp/labelsync/internal/reconcile"
	"github.com/listenupapp/labelsync/internal/sse"
	"github.com/listenupapp/labelsync/internal/store"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// defaultReadyTimeout bounds how long a read waits for the caller's reconciler
// to load before answering from partial state.
const defaultReadyTimeout = 5 * time.Second

// Server holds dependencies for HTTP handlers.
type Server struct {
	store        *store.Store
	services     *Services
	tokens       *auth.TokenService
	pool         *reconcile.Pool
	sseManager   *sse.Manager
	shareLimiter *ratelimit.KeyedRateLimiter
	router       *chi.Mux
	api          huma.API
	logger       *slog.Logger

	maxRecipients int
	readyTimeout  time.Duration
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	st *store.Store,
	services *Services,
	tokens *auth.TokenService,
	pool *reconcile.Pool,
	sseManager *sse.Manager,
	cfg *config.Config,
	logger *slog.Logger,
) *Server {
	s := &Server{
		store:         st,
		services:      services,
		tokens:        tokens,
		pool:          pool,
		sseManager:    sseManager,
		shareLimiter:  ratelimit.New(cfg.Sharing.RatePerMinute, cfg.Sharing.Burst),
		router:        chi.NewRouter(),
		logger:        logger,
		maxRecipients: cfg.Sharing.MaxRecipients,
		readyTimeout:  defaultReadyTimeout,
	}

	s.setupMiddleware(cfg.Server.AllowedOrigins)

	humaConfig := huma.DefaultConfig("LabelSync API", Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for OpenAPI generation.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources owned by the server.
func (s *Server) Close() {
	s.shareLimiter.Stop()
}

func (s *Server) setupMiddleware(allowedOrigins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Last-Event-ID"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.NotFound(response.NotFound(s.logger))
	s.router.MethodNotAllowed(response.MethodNotAllowed(s.logger))
}

func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerUserRoutes()
	s.registerSyncRoutes()
	s.registerLabelRoutes()
	s.registerNoteRoutes()
	s.registerTemplateRoutes()
	s.registerShareRoutes()
	s.registerProfileRoutes()
	s.registerAdminRoutes()

	// The push stream is plain net/http; huma does not model streaming bodies.
	if s.sseManager != nil {
		s.router.Get("/api/v1/sync/stream", sse.NewHandler(s.sseManager, s.authenticateStream, s.logger).ServeHTTP)
	}
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				level := slog.LevelDebug
				switch {
				case status >= 500:
					level = slog.LevelError
				case status >= 400:
					level = slog.LevelWarn
				}
				logger.Log(r.Context(), level, "http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
