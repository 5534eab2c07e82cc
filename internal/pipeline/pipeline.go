// Package pipeline runs one extraction end to end: fetch, extract,
// normalize, and record the run for review.
package pipeline

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-intake/internal/aiextract"
	"github.com/sells-group/funding-intake/internal/heuristic"
	"github.com/sells-group/funding-intake/internal/metrics"
	"github.com/sells-group/funding-intake/internal/model"
	"github.com/sells-group/funding-intake/internal/normalize"
	"github.com/sells-group/funding-intake/internal/resilience"
	"github.com/sells-group/funding-intake/internal/store"
	"github.com/sells-group/funding-intake/pkg/firecrawl"
)

// ErrInvalidRequest marks a request rejected before any work started.
var ErrInvalidRequest = errors.New("invalid request")

// Fetcher retrieves page text for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string) (*model.RawContent, error)
}

// Pipeline wires the fetcher, extractors and normalizer.
type Pipeline struct {
	fetcher    Fetcher
	normalizer *normalize.Normalizer
	heuristic  *heuristic.Parser
	extractor  *aiextract.Extractor
	aiErr      error
	agent      firecrawl.Client
	agentPoll  []firecrawl.PollOption
	store      store.Store
	metrics    *metrics.Metrics
	lenderCtx  int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithExtractor enables AI extraction.
func WithExtractor(ex *aiextract.Extractor) Option {
	return func(p *Pipeline) { p.extractor = ex }
}

// WithoutExtractor records why AI extraction is unavailable. AI
// operations return err instead of running.
func WithoutExtractor(err error) Option {
	return func(p *Pipeline) { p.aiErr = err }
}

// WithHeuristic overrides the default heuristic parser.
func WithHeuristic(h *heuristic.Parser) Option {
	return func(p *Pipeline) { p.heuristic = h }
}

// WithAgent enables agent extraction for vendor scans.
func WithAgent(client firecrawl.Client, poll ...firecrawl.PollOption) Option {
	return func(p *Pipeline) {
		p.agent = client
		p.agentPoll = poll
	}
}

// WithStore records every run in st.
func WithStore(st store.Store) Option {
	return func(p *Pipeline) { p.store = st }
}

// WithMetrics counts extractions in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLenderContext sets how many approved lenders a recommendation may
// include.
func WithLenderContext(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.lenderCtx = n
		}
	}
}

// New creates a Pipeline.
func New(fetcher Fetcher, normalizer *normalize.Normalizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:    fetcher,
		normalizer: normalizer,
		heuristic:  heuristic.New(),
		lenderCtx:  25,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Store returns the run store, or nil.
func (p *Pipeline) Store() store.Store {
	return p.store
}

// Run executes req, recording a run when a store is configured. The
// returned run carries the result or the classified failure.
func (p *Pipeline) Run(ctx context.Context, req model.ExtractionRequest) (*model.Run, error) {
	if err := p.prepare(&req); err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("kind", string(req.Kind)), zap.String("url", req.URL))
	run := &model.Run{Kind: req.Kind, Request: req, Status: model.RunStatusRunning, CreatedAt: time.Now().UTC()}
	if p.store != nil {
		created, err := p.store.CreateRun(ctx, req)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		run = created
		log = log.With(zap.String("run_id", run.ID))
	}

	start := time.Now()
	res, err := p.execute(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		kind := resilience.KindOf(err)
		p.metrics.ObserveExtraction(string(req.Kind), metrics.OutcomeFailure, elapsed)
		log.Error("pipeline: extraction failed",
			zap.String("error_kind", string(kind)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		run.Status = model.RunStatusFailed
		run.ErrorKind = string(kind)
		run.Error = err.Error()
		if p.store != nil {
			// The caller's context may be what failed.
			if ferr := p.store.FailRun(context.WithoutCancel(ctx), run.ID, string(kind), err.Error()); ferr != nil {
				log.Warn("pipeline: failed to record failure", zap.Error(ferr))
			}
		}
		return run, err
	}

	p.metrics.ObserveExtraction(string(req.Kind), metrics.OutcomeSuccess, elapsed)
	p.metrics.FieldsDropped(string(req.Kind), len(res.Dropped))
	log.Info("pipeline: extraction complete",
		zap.String("method", res.Method),
		zap.String("source", res.Source),
		zap.Int("dropped", len(res.Dropped)),
		zap.Duration("elapsed", elapsed),
	)

	run.Status = model.RunStatusPendingReview
	run.Result = res
	if p.store != nil {
		if err := p.store.CompleteRun(ctx, run.ID, res); err != nil {
			return run, eris.Wrap(err, "pipeline: complete run")
		}
	}
	return run, nil
}

func (p *Pipeline) execute(ctx context.Context, req model.ExtractionRequest) (*model.NormalizedResult, error) {
	switch req.Kind {
	case model.KindLender:
		return p.ExtractLender(ctx, req.URL, req.Tier)
	case model.KindVendor:
		return p.ScanVendor(ctx, req.URL, req.UseAI, req.Tier)
	case model.KindRecommendation:
		return p.Recommend(ctx, req.Customer, req.WithLenders, req.Tier)
	}
	return nil, eris.Wrapf(ErrInvalidRequest, "unknown kind %q", req.Kind)
}

// prepare validates req and normalizes its URL and tier in place.
func (p *Pipeline) prepare(req *model.ExtractionRequest) error {
	kind, err := model.ParseKind(string(req.Kind))
	if err != nil {
		return eris.Wrap(ErrInvalidRequest, err.Error())
	}
	req.Kind = kind

	tier, err := model.ParseTier(string(req.Tier))
	if err != nil {
		return eris.Wrap(ErrInvalidRequest, err.Error())
	}
	req.Tier = tier

	if kind == model.KindRecommendation {
		if req.Customer == nil || strings.TrimSpace(req.Customer.BusinessName) == "" {
			return eris.Wrap(ErrInvalidRequest, "customer.business_name is required")
		}
		return nil
	}

	u, err := NormalizeURL(req.URL)
	if err != nil {
		return err
	}
	req.URL = u
	return nil
}

// NormalizeURL trims raw and adds an https scheme when none is given.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", eris.Wrap(ErrInvalidRequest, "url is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", eris.Wrapf(ErrInvalidRequest, "invalid url %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", eris.Wrapf(ErrInvalidRequest, "unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

func (p *Pipeline) ai() (*aiextract.Extractor, error) {
	if p.extractor != nil {
		return p.extractor, nil
	}
	if p.aiErr != nil {
		return nil, p.aiErr
	}
	return nil, resilience.Configf("pipeline", "no AI provider configured")
}
