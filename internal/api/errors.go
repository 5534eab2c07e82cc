package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/funding-intake/internal/pipeline"
	"github.com/sells-group/funding-intake/internal/resilience"
	"github.com/sells-group/funding-intake/internal/sink"
	"github.com/sells-group/funding-intake/internal/store"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error          string `json:"error"`
	Kind           string `json:"kind"`
	RunID          string `json:"run_id,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

// Kinds for request errors outside the pipeline taxonomy.
const (
	kindBadRequest    = "bad_request"
	kindNotFound      = "not_found"
	kindNotReviewable = "not_reviewable"
)

// classify maps err to an HTTP status and error kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest), errors.Is(err, sink.ErrUnknownSink):
		return http.StatusBadRequest, kindBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, kindNotFound
	case errors.Is(err, sink.ErrNotReviewable):
		return http.StatusConflict, kindNotReviewable
	}

	kind := resilience.KindOf(err)
	switch kind {
	case resilience.KindConfiguration:
		return http.StatusServiceUnavailable, string(kind)
	case resilience.KindFetch, resilience.KindProvider:
		return http.StatusBadGateway, string(kind)
	case resilience.KindTimeout:
		return http.StatusGatewayTimeout, string(kind)
	case resilience.KindParse:
		return http.StatusUnprocessableEntity, string(kind)
	}
	return http.StatusInternalServerError, string(resilience.KindUnknown)
}

func writeError(w http.ResponseWriter, err error, runID string) {
	status, kind := classify(err)
	resp := ErrorResponse{Error: err.Error(), Kind: kind, RunID: runID}
	if upstream, ok := resilience.StatusOf(err); ok {
		resp.UpstreamStatus = upstream
	}
	if status >= http.StatusInternalServerError {
		zap.L().Warn("api: request failed", zap.Int("status", status), zap.String("kind", kind), zap.Error(err))
	}
	writeJSON(w, status, resp)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Kind: kindBadRequest})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
