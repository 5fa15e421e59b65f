package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/lattice/internal/observability"
	"github.com/haasonsaas/lattice/internal/registry"
)

// routingResponse describes where an external request would be forwarded.
// Actual payload forwarding to workflow handlers is not implemented yet;
// callers get the routing decision back instead.
type routingResponse struct {
	Message string `json:"message"`
	APIPath string `json:"api_path"`
	Note    string `json:"note"`
}

type errorResponse struct {
	Error string `json:"error"`
}

const forwardingNote = "workflow forwarding is not implemented; this response describes the routing decision only"

func (s *Server) httpMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/", s.handleWorkflow)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleWorkflow resolves POST <api_path> against the workflow registry.
func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if r.Method != http.MethodPost {
		s.writeHTTPError(w, path, http.StatusMethodNotAllowed, "only POST is supported")
		return
	}

	addr, err := s.registry.ResolveWorkflow(path)
	switch {
	case errors.Is(err, registry.ErrNotRegistered):
		s.writeHTTPError(w, path, http.StatusNotFound, "no workflow registered for path "+path)
		return
	case err != nil:
		s.logger.Error("workflow resolution failed", "path", path, "error", err)
		s.writeHTTPError(w, path, http.StatusInternalServerError, observability.Redact(err.Error()))
		return
	}

	s.metrics.HTTPRoutedRequests.WithLabelValues(path, "200").Inc()
	s.logger.Info("routed workflow request", "path", path, "addr", addr)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(routingResponse{
		Message: "Request routed to workflow at " + addr,
		APIPath: path,
		Note:    forwardingNote,
	})
}

func (s *Server) writeHTTPError(w http.ResponseWriter, path string, code int, msg string) {
	s.metrics.HTTPRoutedRequests.WithLabelValues(path, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
