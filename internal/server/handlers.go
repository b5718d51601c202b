package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/health"
	"github.com/felixgeelhaar/plansmith/internal/pipeline"
	"github.com/felixgeelhaar/plansmith/internal/plan"
)

// maxRequestBytes bounds the requirement document accepted per request
const maxRequestBytes = 1 << 20

const defaultListLimit = 50

// CreatePlanRequest is the body of POST /v1/plans
type CreatePlanRequest struct {
	Input  string `json:"input"`
	Name   string `json:"name,omitempty"`
	Stream bool   `json:"stream,omitempty"`
}

// ErrorBody describes an error in a response
type ErrorBody struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Stage       string   `json:"stage,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// PlanResponse is a run result as returned by the API. The plan is omitted
// when the result may not be exported.
type PlanResponse struct {
	*pipeline.Result
	Error *ErrorBody `json:"error,omitempty"`
}

// StreamLine is one NDJSON line of a streamed run. Events carry counts
// only; the final line carries the result.
type StreamLine struct {
	Type   string          `json:"type"`
	Event  *pipeline.Event `json:"event,omitempty"`
	Result *PlanResponse   `json:"result,omitempty"`
}

func newPlanResponse(res *pipeline.Result) *PlanResponse {
	out := *res
	if !res.Exportable() {
		out.Plan = nil
	}
	return &PlanResponse{Result: &out, Error: errorBody(res.Err)}
}

func errorBody(err error) *ErrorBody {
	if err == nil {
		return nil
	}
	var pe *errors.PlanError
	if stderrors.As(err, &pe) {
		return &ErrorBody{
			Code:        string(pe.Code),
			Message:     pe.Message,
			Stage:       pe.Stage,
			Suggestions: pe.Suggestions,
		}
	}
	return &ErrorBody{Code: "UNKNOWN", Message: err.Error()}
}

// resultStatus maps the terminal state to an HTTP status
func resultStatus(res *pipeline.Result) int {
	switch res.State {
	case pipeline.StateComplete, pipeline.StatePartiallyFailed:
		return http.StatusOK
	case pipeline.StateFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, struct {
		Error *ErrorBody `json:"error"`
	}{errorBody(err)})
}

// handleCreatePlan runs the pipeline for the posted requirement text.
// POST /v1/plans
//
// The run is bound to the request context, so a client that disconnects
// cancels its run.
func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	if s.IsShuttingDown() {
		writeError(w, http.StatusServiceUnavailable, errors.New(errors.ErrCodeCancelled, "server is shutting down"))
		return
	}

	var req CreatePlanRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(errors.ErrCodeValidation, "invalid request body", err).
			WithSuggestion(`Send {"input": "...", "name": "...", "stream": false}`))
		return
	}

	opts := s.options
	opts.Input = req.Input
	opts.Name = req.Name
	opts.Streaming = req.Stream
	opts.RunID = ""

	exec, err := s.planner.Start(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	logger := s.logger.With("run_id", exec.RunID)

	if !req.Stream {
		res := exec.Wait()
		s.persist(r.Context(), res)
		writeJSON(w, resultStatus(res), newPlanResponse(res))
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Run-ID", exec.RunID)
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	send := func(line StreamLine) {
		if err := enc.Encode(line); err != nil {
			logger.Debug("stream write failed", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	for ev := range exec.Events() {
		ev.Snapshot = nil
		send(StreamLine{Type: "event", Event: &ev})
	}
	res := exec.Wait()
	s.persist(r.Context(), res)
	send(StreamLine{Type: "result", Result: newPlanResponse(res)})
	if dropped := exec.Dropped(); dropped > 0 {
		logger.Warn("stream dropped events", "dropped", dropped)
	}
}

// persist stores exportable plans. A store failure is logged; the caller
// still receives the plan.
func (s *Server) persist(ctx context.Context, res *pipeline.Result) {
	if s.store == nil || !res.Exportable() {
		return
	}
	if err := s.store.Save(context.WithoutCancel(ctx), res.Plan); err != nil {
		s.logger.WithError(err).Error("save plan failed", "run_id", res.RunID)
	}
}

// handleGetPlan returns a stored plan.
// GET /v1/plans/{id}?format=json|yaml|toml
func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, errors.New(errors.ErrCodeStoreOpen, "plan store disabled"))
		return
	}

	format, err := plan.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	p, err := s.store.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.HasCode(err, errors.ErrCodeStoreNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	body, err := plan.Marshal(p, format)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", contentType(format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func contentType(f plan.Format) string {
	switch f {
	case plan.FormatYAML:
		return "application/yaml"
	case plan.FormatTOML:
		return "application/toml"
	default:
		return "application/json"
	}
}

// handleListPlans lists stored plans, newest first.
// GET /v1/plans?limit=N
func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, errors.New(errors.ErrCodeStoreOpen, "plan store disabled"))
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New(errors.ErrCodeValidation, fmt.Sprintf("invalid limit %q", v)))
			return
		}
		limit = n
	}

	plans, err := s.store.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

func (s *Server) writeProbeResponse(w http.ResponseWriter, result *health.ProbeResult, unhealthyStatus int) {
	status := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		status = unhealthyStatus
	}
	writeJSON(w, status, result)
}

// handleLiveness always answers 200 while the process runs.
// GET /health/live
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeProbeResponse(w, s.probeManager.CheckLiveness(r.Context()), http.StatusOK)
}

// handleReadiness answers 503 during shutdown or when a check is unhealthy.
// GET /health/ready and GET /healthz
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	s.writeProbeResponse(w, s.probeManager.CheckReadiness(r.Context()), http.StatusServiceUnavailable)
}

// handleStartup answers 503 until the server started listening.
// GET /health/startup
func (s *Server) handleStartup(w http.ResponseWriter, r *http.Request) {
	s.writeProbeResponse(w, s.probeManager.CheckStartup(r.Context()), http.StatusServiceUnavailable)
}
