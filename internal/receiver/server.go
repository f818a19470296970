package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lifeline/lifeline/internal/ir"
	"github.com/lifeline/lifeline/internal/store"
)

// maxBody caps the size of a request body.
const maxBody = 64 << 10

// Server serves the SOS command-center API.
type Server struct {
	store    *store.Store
	router   *mux.Router
	now      func() time.Time
	registry *prometheus.Registry
	received *prometheus.CounterVec
}

// Option configures a Server.
type Option func(*Server)

// WithNow sets the clock used for server timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithRegistry serves metrics from reg instead of a private registry.
// Collectors registered there by other components are exported too.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// New creates a Server over an open store.
func New(st *store.Store, opts ...Option) *Server {
	s := &Server{
		store: st,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	s.received = promauto.With(s.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "lifeline",
		Subsystem: "receiver",
		Name:      "reports_total",
		Help:      "SOS uploads received by result.",
	}, []string{"result"})

	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api/sos").Subrouter()
	api.HandleFunc("/report", s.handleReport).Methods(http.MethodPost)
	api.HandleFunc("/reports", s.handleListReports).Methods(http.MethodGet)
	api.HandleFunc("/reports/pending", s.handlePendingReports).Methods(http.MethodGet)
	api.HandleFunc("/reports/{id:[0-9]+}/status", s.handleUpdateStatus).Methods(http.MethodPut)
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the registry served on /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. Returns nil after a clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	slog.Info("receiver listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("receiver stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var rep ir.Report
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(&rep); err != nil {
		s.received.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusBadRequest, "invalid report body")
		return
	}

	slog.Info("sos report received",
		"type", rep.EmergencyType,
		"offline_id", rep.OfflineID,
	)

	serverTime := s.now().UnixMilli()
	if rep.ClientTimestamp == 0 {
		rep.ClientTimestamp = serverTime
	}

	stored, inserted, err := s.store.InsertReport(r.Context(), rep, serverTime)
	if err != nil {
		slog.Error("store report failed", "offline_id", rep.OfflineID, "error", err)
		writeError(w, http.StatusInternalServerError, "report could not be stored")
		return
	}

	if !inserted {
		s.received.WithLabelValues("duplicate").Inc()
		slog.Info("duplicate sos ignored", "id", stored.ID, "offline_id", rep.OfflineID)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "already_synced",
			"id":        stored.ID,
			"offlineId": rep.OfflineID,
		})
		return
	}

	s.received.WithLabelValues("created").Inc()
	slog.Info("sos stored", "id", stored.ID, "offline_id", stored.OfflineID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"status":    "synced",
		"id":        stored.ID,
		"offlineId": rep.OfflineID,
		"message":   "SOS received by command center",
	})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.ListReports(r.Context())
	if err != nil {
		slog.Error("list reports failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reports unavailable")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handlePendingReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.ListReportsByStatus(r.Context(), ir.StatusPending)
	if err != nil {
		slog.Error("list pending reports failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reports unavailable")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid status body")
		return
	}
	status := ir.NormalizeStatus(body.Status)
	if !ir.ValidStatuses[status] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", body.Status))
		return
	}

	if err := s.store.UpdateReportStatus(r.Context(), id, status); err != nil {
		if errors.Is(err, store.ErrReportNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.Error("update report status failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "status could not be updated")
		return
	}

	slog.Info("sos status updated", "id", id, "status", status)
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "id": id})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}
