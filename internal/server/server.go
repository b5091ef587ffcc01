// Package server exposes the schedule store and persistence
// coordinator over an HTTP JSON API. It is the editing surface of the
// application: every store operation has an endpoint, plus status,
// export, health and metrics.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/kruplan/kruplan/internal/fault"
	"github.com/kruplan/kruplan/internal/metrics"
	"github.com/kruplan/kruplan/internal/persist"
	"github.com/kruplan/kruplan/internal/schedule"
	"github.com/kruplan/kruplan/internal/server/middleware"
)

// Server hosts the schedule editing API.
type Server struct {
	store    *schedule.Store
	coord    *persist.Coordinator
	registry *prom.Registry
	adapter  *fault.HTTPAdapter
	validate *validator.Validate
	logger   *slog.Logger

	httpServer *http.Server
}

// Options configures optional server collaborators.
type Options struct {
	// Registry enables the /metrics endpoint when set.
	Registry *prom.Registry
	Logger   *slog.Logger
}

func New(store *schedule.Store, coord *persist.Coordinator, opts Options) (*Server, error) {
	if store == nil {
		return nil, fault.ValidationError("store is required").Build()
	}
	if coord == nil {
		return nil, fault.ValidationError("coordinator is required").Build()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	return &Server{
		store:    store,
		coord:    coord,
		registry: opts.Registry,
		adapter:  fault.NewHTTPAdapter(logger),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}, nil
}

// Handler builds the full routed handler with the middleware chain
// applied. Exposed separately so tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	if s.registry != nil {
		mux.Handle("GET /metrics", metrics.HTTPHandler(s.registry))
	}

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("PUT /api/owner", s.handleSetOwner)

	mux.HandleFunc("GET /api/sheets", s.handleListSheets)
	mux.HandleFunc("POST /api/sheets", s.handleCreateSheet)
	mux.HandleFunc("GET /api/sheets/{id}", s.handleGetSheet)
	mux.HandleFunc("DELETE /api/sheets/{id}", s.handleDeleteSheet)
	mux.HandleFunc("GET /api/sheets/active", s.handleGetActiveSheet)
	mux.HandleFunc("PUT /api/sheets/active", s.handleSetActiveSheet)
	mux.HandleFunc("GET /api/sheets/{id}/export", s.handleExportSheet)

	mux.HandleFunc("PUT /api/slots", s.handleUpdateSlot)
	mux.HandleFunc("DELETE /api/slots/{day}/{period}", s.handleRemoveSlot)

	mux.HandleFunc("POST /api/subjects", s.handleAddSubject)
	mux.HandleFunc("PUT /api/subjects/{id}", s.handleUpdateSubject)
	mux.HandleFunc("DELETE /api/subjects/{id}", s.handleDeleteSubject)

	mux.HandleFunc("POST /api/teachers", s.handleAddTeacher)
	mux.HandleFunc("PUT /api/teachers/{id}", s.handleUpdateTeacher)
	mux.HandleFunc("DELETE /api/teachers/{id}", s.handleDeleteTeacher)

	mux.HandleFunc("POST /api/subteachers", s.handleAddSubTeacher)
	mux.HandleFunc("PUT /api/subteachers/{id}", s.handleUpdateSubTeacher)
	mux.HandleFunc("DELETE /api/subteachers/{id}", s.handleDeleteSubTeacher)

	mux.HandleFunc("POST /api/rooms", s.handleAddRoom)
	mux.HandleFunc("PUT /api/rooms/{id}", s.handleUpdateRoom)
	mux.HandleFunc("DELETE /api/rooms/{id}", s.handleDeleteRoom)
	mux.HandleFunc("GET /api/rooms/all", s.handleAllRooms)

	mux.HandleFunc("PUT /api/school-info", s.handleUpdateSchoolInfo)
	mux.HandleFunc("PUT /api/period-configs", s.handleSetPeriodConfigs)
	mux.HandleFunc("PATCH /api/period-configs/{id}", s.handlePatchPeriodConfig)
	mux.HandleFunc("PATCH /api/day-configs/{key}", s.handlePatchDayConfig)

	return middleware.Chain(s.logger, s.adapter)(mux)
}

// Start begins serving on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.logger.Info("Starting HTTP server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fault.InternalError("http server failed").WithCause(err).Build()
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}
