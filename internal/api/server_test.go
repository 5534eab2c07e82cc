package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funding-intake/internal/aiextract"
	"github.com/sells-group/funding-intake/internal/metrics"
	"github.com/sells-group/funding-intake/internal/model"
	"github.com/sells-group/funding-intake/internal/monitoring"
	"github.com/sells-group/funding-intake/internal/normalize"
	"github.com/sells-group/funding-intake/internal/pipeline"
	"github.com/sells-group/funding-intake/internal/resilience"
	"github.com/sells-group/funding-intake/internal/sink"
	"github.com/sells-group/funding-intake/internal/store"
	"github.com/sells-group/funding-intake/pkg/gemini"
)

type fakeFetcher struct {
	text string
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, u string) (*model.RawContent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.RawContent{Text: f.text, SourceURL: u, Source: "proxy:direct", Pages: 1}, nil
}

type fakeGenerator struct {
	text string
	err  error
}

func (g *fakeGenerator) Generate(context.Context, string, model.Tier) (*aiextract.Generation, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &aiextract.Generation{Text: g.text, Provider: "fake", Model: "fake-1"}, nil
}

const lenderJSON = `{"lender_name":"FundCo","website":"https://fundco.example","products_offered":["Merchant Cash Advance"]}`

type fixture struct {
	store   store.Store
	fetcher *fakeFetcher
	gen     *fakeGenerator
	srv     *httptest.Server
}

func newFixture(t *testing.T, opts ...pipeline.Option) *fixture {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	f := &fixture{store: st, fetcher: &fakeFetcher{text: "FundCo offers merchant cash advances."}, gen: &fakeGenerator{text: lenderJSON}}
	m := metrics.New()
	all := append([]pipeline.Option{
		pipeline.WithExtractor(aiextract.New(f.gen)),
		pipeline.WithStore(st),
		pipeline.WithMetrics(m),
	}, opts...)
	p := pipeline.New(f.fetcher, normalize.New(normalize.DefaultVocabulary()), all...)

	s := New(p, st, sink.NewApprover(st, sink.NewStoreSink(st)), m, Config{MaxConcurrent: 2, RequestTimeout: 5 * time.Second})
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeErr(t *testing.T, data []byte) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, data := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","sinks":["store"]}`, string(data))
}

func TestLenderExtract_Success(t *testing.T) {
	f := newFixture(t)

	resp, data := f.do(t, http.MethodPost, "/api/v1/lenders/extract", ExtractRequest{URL: "fundco.example"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var run model.Run
	require.NoError(t, json.Unmarshal(data, &run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusPendingReview, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, "FundCo", run.Result.Lender.LenderName)
	assert.Contains(t, run.Result.Tags, "MCA")
}

func TestExtract_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		fetchErr   error
		genText    string
		genErr     error
		body       ExtractRequest
		wantStatus int
		wantKind   string
	}{
		{name: "missing url", body: ExtractRequest{}, wantStatus: http.StatusBadRequest, wantKind: "bad_request"},
		{name: "bad tier", body: ExtractRequest{URL: "x.example", Model: "turbo"}, wantStatus: http.StatusBadRequest, wantKind: "bad_request"},
		{name: "fetch", fetchErr: resilience.New(resilience.KindFetch, "scrape", errors.New("nothing worked")),
			body: ExtractRequest{URL: "x.example"}, wantStatus: http.StatusBadGateway, wantKind: "fetch"},
		{name: "provider", genErr: &gemini.APIError{StatusCode: 429, Body: "quota"},
			body: ExtractRequest{URL: "x.example"}, wantStatus: http.StatusBadGateway, wantKind: "provider"},
		{name: "timeout", genErr: context.DeadlineExceeded,
			body: ExtractRequest{URL: "x.example"}, wantStatus: http.StatusGatewayTimeout, wantKind: "timeout"},
		{name: "parse", genText: "no idea",
			body: ExtractRequest{URL: "x.example"}, wantStatus: http.StatusUnprocessableEntity, wantKind: "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.fetcher.err = tt.fetchErr
			f.gen.err = tt.genErr
			if tt.genText != "" {
				f.gen.text = tt.genText
			}

			resp, data := f.do(t, http.MethodPost, "/api/v1/lenders/extract", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(data))
			e := decodeErr(t, data)
			assert.Equal(t, tt.wantKind, e.Kind)
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestExtract_ProviderStatusReported(t *testing.T) {
	f := newFixture(t)
	f.gen.err = &gemini.APIError{StatusCode: 500, Body: "boom"}

	_, data := f.do(t, http.MethodPost, "/api/v1/lenders/extract", ExtractRequest{URL: "x.example"})
	e := decodeErr(t, data)
	assert.Equal(t, 500, e.UpstreamStatus)
	assert.NotEmpty(t, e.RunID)
}

func TestExtract_ConfigurationError(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "cfg.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	p := pipeline.New(&fakeFetcher{}, normalize.New(normalize.DefaultVocabulary()),
		pipeline.WithStore(st),
		pipeline.WithoutExtractor(resilience.Configf("aiextract", "gemini.key is not set")))
	srv := httptest.NewServer(New(p, st, nil, nil, Config{}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/lenders/extract", "application/json", bytes.NewReader([]byte(`{"url":"x.example"}`)))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var e ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, "configuration", e.Kind)
	assert.Contains(t, e.Error, "gemini.key")
}

func TestExtract_InvalidBody(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Post(f.srv.URL+"/api/v1/vendors/scan", "application/json", bytes.NewReader([]byte(`{"url":`)))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2, data := f.do(t, http.MethodPost, "/api/v1/vendors/scan", map[string]any{"url": "x.example", "colour": "red"})
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode, string(data))
}

func TestVendorScan_Heuristic(t *testing.T) {
	f := newFixture(t)
	f.fetcher.text = "# Acme Lead Co\nEmail sales@acmeleads.com for exclusive MCA leads."

	resp, data := f.do(t, http.MethodPost, "/api/v1/vendors/scan", ExtractRequest{URL: "acmeleads.example"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var run model.Run
	require.NoError(t, json.Unmarshal(data, &run))
	assert.Equal(t, model.MethodHeuristic, run.Result.Method)
	assert.Equal(t, "sales@acmeleads.com", run.Result.Vendor.Email)
}

func TestRecommend(t *testing.T) {
	f := newFixture(t)
	f.gen.text = `{"summary":"Good fit","priority":"medium"}`

	resp, data := f.do(t, http.MethodPost, "/api/v1/customers/recommend", ExtractRequest{
		Customer: &model.Customer{BusinessName: "Joe's Diner"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var run model.Run
	require.NoError(t, json.Unmarshal(data, &run))
	assert.Equal(t, "Good fit", run.Result.Recommendation.Summary)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/customers/recommend", ExtractRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunsAndApprove(t *testing.T) {
	f := newFixture(t)

	_, data := f.do(t, http.MethodPost, "/api/v1/lenders/extract", ExtractRequest{URL: "fundco.example"})
	var run model.Run
	require.NoError(t, json.Unmarshal(data, &run))

	resp, data := f.do(t, http.MethodGet, "/api/v1/runs?kind=lender&status=pending_review", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(data, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/runs/"+run.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data = f.do(t, http.MethodPost, "/api/v1/runs/"+run.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var push model.Push
	require.NoError(t, json.Unmarshal(data, &push))
	assert.Equal(t, "store", push.Sink)
	assert.Equal(t, "lenders", push.Table)

	stored, err := f.store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusApproved, stored.Status)

	recs, err := f.store.ListRecords(context.Background(), "lenders", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "FundCo", recs[0].Name)
}

func TestApprove_Errors(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = resilience.New(resilience.KindFetch, "scrape", errors.New("down"))

	_, data := f.do(t, http.MethodPost, "/api/v1/lenders/extract", ExtractRequest{URL: "fundco.example"})
	failed := decodeErr(t, data)
	require.NotEmpty(t, failed.RunID)

	resp, data := f.do(t, http.MethodPost, "/api/v1/runs/"+failed.RunID+"/approve", ApproveRequest{Sink: "store"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(data))

	resp, _ = f.do(t, http.MethodPost, "/api/v1/runs/"+failed.RunID+"/approve", ApproveRequest{Sink: "hubspot"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = f.do(t, http.MethodPost, "/api/v1/runs/missing/approve", ApproveRequest{Sink: "store"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeErr(t, data).Kind)
}

func TestGetRun_NotFound(t *testing.T) {
	f := newFixture(t)
	resp, data := f.do(t, http.MethodGet, "/api/v1/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeErr(t, data).Kind)
}

func TestListRuns_BadParams(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{"kind=broker", "limit=x", "offset=-1", "hours=abc"} {
		resp, _ := f.do(t, http.MethodGet, "/api/v1/runs?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/v1/lenders/extract", ExtractRequest{URL: "fundco.example"})

	resp, data := f.do(t, http.MethodGet, "/api/v1/stats?hours=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap monitoring.MetricsSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, 1, snap.RunsTotal)
	assert.Equal(t, 1, snap.PendingReview)
	assert.Equal(t, 1, snap.LookbackHours)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/stats?hours=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/v1/lenders/extract", ExtractRequest{URL: "fundco.example"})

	resp, data := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `intake_extractions_total{kind="lender",outcome="success"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest(http.MethodOptions, f.srv.URL+"/api/v1/lenders/extract", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://crm.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestClassify(t *testing.T) {
	status, kind := classify(errors.New("mystery"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "unknown", kind)

	status, _ = classify(sink.ErrNotReviewable)
	assert.Equal(t, http.StatusConflict, status)
}
