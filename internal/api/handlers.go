package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/funding-intake/internal/model"
	"github.com/sells-group/funding-intake/internal/store"
)

const maxBodyBytes = 1 << 20

// ExtractRequest is the body of the extraction endpoints. Each endpoint
// reads only the fields its kind uses.
type ExtractRequest struct {
	URL         string          `json:"url"`
	Model       string          `json:"model"`
	UseAI       bool            `json:"use_ai"`
	Customer    *model.Customer `json:"customer"`
	WithLenders bool            `json:"with_lenders"`
}

// ApproveRequest is the body of POST /runs/{id}/approve.
type ApproveRequest struct {
	Sink string `json:"sink"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.approver != nil {
		resp["sinks"] = s.approver.Sinks()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLenderExtract(w http.ResponseWriter, r *http.Request) {
	s.extract(w, r, func(b ExtractRequest) model.ExtractionRequest {
		return model.ExtractionRequest{Kind: model.KindLender, URL: b.URL, Tier: model.Tier(b.Model)}
	})
}

func (s *Server) handleVendorScan(w http.ResponseWriter, r *http.Request) {
	s.extract(w, r, func(b ExtractRequest) model.ExtractionRequest {
		return model.ExtractionRequest{Kind: model.KindVendor, URL: b.URL, Tier: model.Tier(b.Model), UseAI: b.UseAI}
	})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	s.extract(w, r, func(b ExtractRequest) model.ExtractionRequest {
		return model.ExtractionRequest{
			Kind:        model.KindRecommendation,
			Tier:        model.Tier(b.Model),
			Customer:    b.Customer,
			WithLenders: b.WithLenders,
		}
	})
}

// extract decodes the body, waits for a concurrency slot and runs the
// pipeline under the request timeout.
func (s *Server) extract(w http.ResponseWriter, r *http.Request, build func(ExtractRequest) model.ExtractionRequest) {
	var body ExtractRequest
	if err := decodeBody(w, r, &body); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "too many concurrent extractions", Kind: "busy"})
		return
	}
	defer s.sem.Release(1)

	run, err := s.pipeline.Run(ctx, build(body))
	if err != nil {
		runID := ""
		if run != nil {
			runID = run.ID
		}
		writeError(w, err, runID)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{Status: model.RunStatus(q.Get("status"))}

	if k := q.Get("kind"); k != "" {
		kind, err := model.ParseKind(k)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		filter.Kind = kind
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		badRequest(w, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		badRequest(w, "invalid offset")
		return
	}
	if h := q.Get("hours"); h != "" {
		hours, err := intParam(h)
		if err != nil {
			badRequest(w, "invalid hours")
			return
		}
		filter.CreatedAfter = time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, err, "")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.approver == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "no sinks configured", Kind: "configuration", RunID: id})
		return
	}

	var body ApproveRequest
	if err := decodeBody(w, r, &body); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if body.Sink == "" {
		body.Sink = "store"
	}

	push, err := s.approver.Approve(r.Context(), id, body.Sink)
	if err != nil {
		writeError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, push)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if h := r.URL.Query().Get("hours"); h != "" {
		n, err := intParam(h)
		if err != nil || n <= 0 {
			badRequest(w, "invalid hours")
			return
		}
		hours = n
	}

	snap, err := s.collector.Collect(r.Context(), hours)
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// decodeBody decodes a JSON body. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("not a non-negative integer")
	}
	return n, nil
}
