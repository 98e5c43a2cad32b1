package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"moneymanager/internal/core"
	"moneymanager/internal/export"
	"moneymanager/internal/log"
	"moneymanager/internal/shell"
)

// maxIPCBody bounds the argument array of one operation.
const maxIPCBody = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready once the store answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]string{"templates": "ok", "store": "ok"}

	if len(s.pages) == 0 {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	}
	if err := s.svc.Ping(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	}
	if s.mirror != nil {
		if st := s.mirror.Stats(); st.LastError != "" {
			checks["mirror"] = "degraded: " + st.LastError
		} else {
			checks["mirror"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes the counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	m := s.trace.GetMetrics()
	counter(w, "http_requests_total", "Total number of HTTP requests", m.TotalRequests)
	counter(w, "http_client_errors_total", "Responses with a 4xx status", m.ClientErrors)
	counter(w, "http_server_errors_total", "Responses with a 5xx status", m.ServerErrors)
	gauge(w, "http_response_time_avg_microseconds", "Average response time", m.AverageResponseTime)

	if s.mirror != nil {
		st := s.mirror.Stats()
		counter(w, "mirror_syncs_total", "Ledger mirror rewrites", st.Syncs)
		counter(w, "mirror_skipped_total", "Syncs skipped because the mirror was current", st.Skipped)
		counter(w, "mirror_failures_total", "Failed mirror syncs", st.Failures)
		var last int64
		if !st.LastSync.IsZero() {
			last = st.LastSync.Unix()
		}
		gauge(w, "mirror_last_sync_timestamp_seconds", "Time of the last successful sync", last)
	}

	gauge(w, "uptime_seconds", "Application uptime in seconds", int64(time.Since(s.started).Seconds()))
}

func counter(w io.Writer, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
}

func gauge(w io.Writer, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", name, help, name, name, v)
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Result(s.router.Operations()).Write(w)
}

// handleIPC runs one named operation. The body is the JSON array of
// positional arguments; an empty body means no arguments.
func (s *Server) handleIPC(w http.ResponseWriter, r *http.Request) {
	op := r.PathValue("op")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIPCBody))
	if err != nil {
		BadRequestError("request body too large or unreadable").Write(w)
		return
	}

	result, err := s.router.Invoke(r.Context(), op, body)
	if err != nil {
		status, msg := ipcError(err)
		logger := log.FromContext(r.Context())
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(r.Context(), "Operation failed", log.FieldOperation, op, log.FieldError, err)
		} else {
			logger.DebugContext(r.Context(), "Operation rejected", log.FieldOperation, op, log.FieldError, err, log.FieldStatusCode, status)
		}
		ErrorResponse(status, msg).Write(w)
		return
	}
	NewJSONResponse().Result(result).Write(w)
}

// ipcError maps an operation error to a status and the message returned in
// the envelope. Internal failures get a generic message.
func ipcError(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrDuplicateCategory):
		return http.StatusConflict, core.ErrDuplicateCategory.Error()
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, core.ErrNotFound), errors.Is(err, shell.ErrUnknownOperation):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, shell.ErrBadArguments),
		errors.Is(err, export.ErrUnknownTarget),
		errors.Is(err, export.ErrSheetsDisabled):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// handleExportDownload streams the whole ledger as a JSON attachment.
func (s *Server) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	txs, err := s.svc.Export(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Export download failed", log.FieldError, err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	name := export.SuggestedName(s.now())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := export.Encode(w, txs); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Export download interrupted", log.FieldError, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Ledger downloaded",
		log.FieldOperation, log.OpExport,
		log.FieldCount, len(txs))
}
