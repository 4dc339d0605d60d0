package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joeycumines/btdsl/internal/tree"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type actionStatusRequest struct {
	Action string `json:"action"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
	// Line is set for parse errors.
	Line int `json:"line,omitempty"`
}

// NewHandler serves the control plane API for m:
//
//	POST   /actions/{action}/start  query parameters become run params
//	POST   /actions/{action}/stop
//	POST   /conditions              {"<condition>": <value>, ...}
//	GET    /conditions              last known condition statuses
//	DELETE /conditions/{name}       forget a condition for trees started later
//	POST   /action-status           {"action": "<name>", "status": "success"}
//	GET    /trees
//	GET    /trees/{key}             snapshot of one tree
func NewHandler(m *Manager) http.Handler {
	h := &handler{m: m}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /actions/{action}/start", h.start)
	mux.HandleFunc("POST /actions/{action}/stop", h.stop)
	mux.HandleFunc("POST /conditions", h.conditions)
	mux.HandleFunc("GET /conditions", h.listConditions)
	mux.HandleFunc("DELETE /conditions/{name}", h.forgetCondition)
	mux.HandleFunc("POST /action-status", h.actionStatus)
	mux.HandleFunc("GET /trees", h.list)
	mux.HandleFunc("GET /trees/{key}", h.snapshot)
	return logRequests(m.logger, mux)
}

type handler struct {
	m *Manager
}

func (h *handler) start(w http.ResponseWriter, r *http.Request) {
	info, err := h.m.Start(r.Context(), r.PathValue("action"), queryParams(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *handler) stop(w http.ResponseWriter, r *http.Request) {
	key := Key(r.PathValue("action"), queryParams(r))
	if err := h.m.Stop(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) conditions(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if err := decodeBody(w, r, &values); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := h.m.UpdateConditions(r.Context(), values); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.m.Runs())
}

func (h *handler) listConditions(w http.ResponseWriter, r *http.Request) {
	statuses := h.m.Blackboard().Snapshot()
	out := make(map[string]string, len(statuses))
	for name, s := range statuses {
		out[name] = s.String()
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) forgetCondition(w http.ResponseWriter, r *http.Request) {
	h.m.Blackboard().Delete(r.PathValue("name"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) actionStatus(w http.ResponseWriter, r *http.Request) {
	var req actionStatusRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.Action == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing action"})
		return
	}
	s, err := tree.ParseStatus(req.Status)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := h.m.SetActionStatus(r.Context(), req.Action, s); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.m.Runs())
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.m.Runs())
}

func (h *handler) snapshot(w http.ResponseWriter, r *http.Request) {
	s, err := h.m.Snapshot(r.PathValue("key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// queryParams keeps the first value of each query parameter.
func queryParams(r *http.Request) map[string]string {
	q := r.URL.Query()
	if len(q) == 0 {
		return nil
	}
	params := make(map[string]string, len(q))
	for k, v := range q {
		params[k] = v[0]
	}
	return params
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func statusCode(err error) int {
	var (
		parseErr *tree.ParseError
		valueErr *UnsupportedValueError
	)
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, ErrNotRunning), errors.Is(err, ErrTreeNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidStatus), errors.As(err, &valueErr):
		return http.StatusBadRequest
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	var parseErr *tree.ParseError
	if errors.As(err, &parseErr) {
		resp.Line = parseErr.Line
	}
	writeJSON(w, statusCode(err), resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.DebugContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.code,
			"duration", time.Since(start))
	})
}
