package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"frontdesk/internal/config"
	"frontdesk/internal/domain"
	"frontdesk/internal/metrics"
	"frontdesk/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the engine's read accessors and mutating operations to
// UI surfaces. Every mutating response is a {success, data?, error?}
// envelope; the optimistic result travels in data even when the remote
// write failed, since the local state keeps it until reconciliation.
type HTTPServer struct {
	cfg      config.APIConfig
	desk     *service.DeskService
	invoices *service.InvoiceService
	server   *http.Server
	limiter  *rateLimiter
	logger   *zerolog.Logger
}

// NewHTTPServer builds the server and its routes.
func NewHTTPServer(cfg config.APIConfig, desk *service.DeskService, invoices *service.InvoiceService, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		desk:     desk,
		invoices: invoices,
		limiter:  newRateLimiter(&cfg),
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/rooms", srv.handleListRooms)
	mux.HandleFunc("GET /api/v1/rooms/{id}", srv.handleGetRoom)
	mux.HandleFunc("GET /api/v1/rooms/{id}/reservation", srv.handleActiveReservation)
	mux.HandleFunc("POST /api/v1/rooms/{id}/checkin", srv.handleCheckIn)
	mux.HandleFunc("POST /api/v1/rooms/{id}/checkout", srv.handleCheckOut)
	mux.HandleFunc("POST /api/v1/rooms/{id}/status", srv.handleRoomStatus)
	mux.HandleFunc("GET /api/v1/reservations", srv.handleListReservations)
	mux.HandleFunc("POST /api/v1/reservations", srv.handleReserve)
	mux.HandleFunc("POST /api/v1/reservations/{id}/checkin", srv.handleReservationCheckIn)
	mux.HandleFunc("POST /api/v1/reservations/{id}/cancel", srv.handleCancel)
	mux.HandleFunc("PUT /api/v1/reservations/{id}", srv.handleUpdateReservation)
	mux.HandleFunc("GET /api/v1/invoices", srv.handleListInvoices)
	mux.HandleFunc("POST /api/v1/invoices", srv.handleCreateInvoice)
	mux.HandleFunc("POST /api/v1/invoices/{id}/services", srv.handleAddService)
	mux.HandleFunc("PUT /api/v1/invoices/{id}/rate", srv.handleSetRate)
	mux.HandleFunc("POST /api/v1/invoices/{id}/status", srv.handleInvoiceStatus)
	mux.HandleFunc("GET /api/v1/revenue", srv.handleGetRevenue)
	mux.HandleFunc("POST /api/v1/revenue", srv.handleUpdateRevenue)

	handler := srv.loggingMiddleware(srv.limitMiddleware(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Start blocks serving requests until Shutdown.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler returns the configured handler, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.IncHTTP(r.URL.Path)
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

func (s *HTTPServer) limitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limiter.allow(host) {
			writeEnvelope(w, http.StatusTooManyRequests, envelope{Success: false, Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// envelope is the wire shape of every response.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeEnvelope(w, http.StatusOK, envelope{Success: true, Data: data})
}

// writeErr maps the engine's error taxonomy onto HTTP statuses. A failed
// remote write still carries the optimistic data.
func writeErr(w http.ResponseWriter, err error, data interface{}) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrStaleReadConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRemoteWriteFailed):
		status = http.StatusBadGateway
	}
	writeEnvelope(w, status, envelope{Success: false, Data: data, Error: err.Error()})
}
