package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-intake/internal/aiextract"
	"github.com/sells-group/funding-intake/internal/config"
	"github.com/sells-group/funding-intake/internal/heuristic"
	"github.com/sells-group/funding-intake/internal/metrics"
	"github.com/sells-group/funding-intake/internal/normalize"
	"github.com/sells-group/funding-intake/internal/pipeline"
	"github.com/sells-group/funding-intake/internal/resilience"
	"github.com/sells-group/funding-intake/internal/scrape"
	"github.com/sells-group/funding-intake/internal/store"
	"github.com/sells-group/funding-intake/pkg/firecrawl"
	"github.com/sells-group/funding-intake/pkg/jina"
)

// pipelineEnv holds all initialized dependencies for running extractions.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Metrics  *metrics.Metrics
}

// Close releases the store.
func (e *pipelineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initPipeline validates the configuration for mode, opens and migrates the
// run store and wires the pipeline.
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	m := metrics.New()
	p, err := buildPipeline(cfg, st, m)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &pipelineEnv{Store: st, Pipeline: p, Metrics: m}, nil
}

// buildPipeline assembles the fetch chain, extractors and normalizer from c.
func buildPipeline(c *config.Config, st store.Store, m *metrics.Metrics) (*pipeline.Pipeline, error) {
	vocab := normalize.DefaultVocabulary()
	if c.Extract.VocabularyFile != "" {
		v, err := normalize.LoadVocabulary(c.Extract.VocabularyFile)
		if err != nil {
			return nil, eris.Wrap(err, "load vocabulary")
		}
		vocab = v
	}
	normalizer := normalize.New(vocab, normalize.WithRawChars(c.Extract.RawNotesChars))

	opts := []pipeline.Option{
		pipeline.WithStore(st),
		pipeline.WithMetrics(m),
		pipeline.WithHeuristic(heuristic.New(heuristic.WithNotesChars(c.Extract.NotesChars))),
		pipeline.WithLenderContext(c.Extract.LenderContext),
	}

	gen, err := buildGenerator(c)
	if err != nil {
		zap.L().Info("ai extraction disabled", zap.Error(err))
		opts = append(opts, pipeline.WithoutExtractor(err))
	} else {
		opts = append(opts, pipeline.WithExtractor(aiextract.New(gen)))
	}

	fc := firecrawlClient(c)
	if fc != nil && c.Firecrawl.AgentEnabled {
		opts = append(opts, pipeline.WithAgent(fc,
			firecrawl.WithPollInterval(c.Firecrawl.AgentPollInterval()),
			firecrawl.WithMaxAttempts(c.Firecrawl.AgentPollAttempts),
		))
	}

	chain := scrape.NewChain(buildSources(c, fc),
		scrape.WithMinChars(c.Proxy.MinContentChars),
		scrape.WithMaxChars(c.Fetch.MaxContentChars),
		scrape.WithMetrics(m),
	)

	return pipeline.New(chain, normalizer, opts...), nil
}

// buildGenerator creates the text-generation client for the configured
// provider.
func buildGenerator(c *config.Config) (aiextract.Generator, error) {
	pc := c.Provider()
	return aiextract.NewGenerator(aiextract.ProviderSettings{
		Provider: c.AI.Provider,
		Key:      pc.Key,
		BaseURL:  pc.BaseURL,
		Models:   aiextract.Models{Fast: pc.FastModel, Quality: pc.QualityModel},
		Sampling: aiextract.Sampling{
			Temperature:     c.AI.Temperature,
			TopK:            c.AI.TopK,
			TopP:            c.AI.TopP,
			MaxOutputTokens: c.AI.MaxOutputTokens,
		},
	})
}

// firecrawlClient returns nil when no Firecrawl key is configured.
func firecrawlClient(c *config.Config) firecrawl.Client {
	if c.Firecrawl.Key == "" {
		return nil
	}
	var opts []firecrawl.Option
	if c.Firecrawl.BaseURL != "" {
		opts = append(opts, firecrawl.WithBaseURL(c.Firecrawl.BaseURL))
	}
	return firecrawl.NewClient(c.Firecrawl.Key, opts...)
}

// buildSources returns the fetch order: Firecrawl when keyed, then the Jina
// reader when enabled, then each proxy endpoint. fc is nil when Firecrawl is
// not configured.
func buildSources(c *config.Config, fc firecrawl.Client) []scrape.Source {
	breakers := resilience.NewBreakers(resilience.BreakerConfig{
		Threshold: c.Fetch.BreakerThreshold,
		Cooldown:  time.Duration(c.Fetch.BreakerCooldownSecs) * time.Second,
	})

	var sources []scrape.Source
	if fc != nil {
		sources = append(sources, scrape.NewFirecrawlSource(fc, c.Firecrawl.MaxPages,
			firecrawl.WithPollInterval(c.Firecrawl.PollInterval()),
			firecrawl.WithMaxAttempts(c.Firecrawl.PollAttempts),
		))
	}

	if c.Jina.Enabled {
		var opts []jina.Option
		if c.Jina.BaseURL != "" {
			opts = append(opts, jina.WithBaseURL(c.Jina.BaseURL))
		}
		sources = append(sources, scrape.NewJinaSource(jina.NewClient(c.Jina.Key, opts...), breakers.Get("jina")))
	}

	timeout := time.Duration(c.Proxy.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	sources = append(sources, scrape.NewProxySources(c.Proxy.Endpoints,
		scrape.WithProxyHTTPClient(&http.Client{Timeout: timeout}),
		scrape.WithProxyBreakers(breakers),
		scrape.WithMainContentOnly(c.Proxy.MainContentOnly),
		scrape.WithProxyMinChars(c.Proxy.MinContentChars),
	)...)

	return sources
}
