package scrape

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-intake/internal/metrics"
	"github.com/sells-group/funding-intake/internal/model"
	"github.com/sells-group/funding-intake/internal/resilience"
)

const (
	DefaultMinChars = 100
	DefaultMaxChars = 15000
)

// FetchError is returned when every source failed for a URL.
type FetchError struct {
	URL      string
	Attempts []string
}

func (e *FetchError) Error() string {
	tried := "no sources configured"
	if len(e.Attempts) > 0 {
		tried = "tried " + strings.Join(e.Attempts, ", ")
	}
	return fmt.Sprintf("could not fetch content for %s (%s); set firecrawl.key for more reliable retrieval", e.URL, tried)
}

// ErrorKind classifies the error for resilience.KindOf.
func (e *FetchError) ErrorKind() resilience.Kind { return resilience.KindFetch }

// Chain tries sources in order and returns the first page with enough text.
type Chain struct {
	sources  []Source
	minChars int
	maxChars int
	metrics  *metrics.Metrics
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithMinChars sets the minimum trimmed text length a source must return.
func WithMinChars(n int) ChainOption {
	return func(c *Chain) {
		if n > 0 {
			c.minChars = n
		}
	}
}

// WithMaxChars sets the length the result text is truncated to.
func WithMaxChars(n int) ChainOption {
	return func(c *Chain) {
		if n > 0 {
			c.maxChars = n
		}
	}
}

// WithMetrics counts successful sources.
func WithMetrics(m *metrics.Metrics) ChainOption {
	return func(c *Chain) { c.metrics = m }
}

// NewChain creates a chain over sources in priority order.
func NewChain(sources []Source, opts ...ChainOption) *Chain {
	c := &Chain{sources: sources, minChars: DefaultMinChars, maxChars: DefaultMaxChars}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sources returns the source names in order.
func (c *Chain) Sources() []string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return names
}

// Fetch returns content for targetURL from the first source that succeeds.
// Individual failures are logged, and only the aggregate FetchError is
// returned. A cancelled context stops the chain at once.
func (c *Chain) Fetch(ctx context.Context, targetURL string) (*model.RawContent, error) {
	ferr := &FetchError{URL: targetURL}
	for _, src := range c.sources {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "scrape: fetch cancelled")
		}
		ferr.Attempts = append(ferr.Attempts, src.Name())
		log := zap.L().With(zap.String("source", src.Name()), zap.String("url", targetURL))

		page, err := src.Fetch(ctx, targetURL)
		if err != nil {
			log.Warn("scrape: source failed", zap.Error(err))
			continue
		}
		text := strings.TrimSpace(page.Text)
		if n := utf8.RuneCountInString(text); n < c.minChars {
			log.Warn("scrape: source returned too little text", zap.Int("chars", n), zap.Int("min_chars", c.minChars))
			continue
		}

		content := &model.RawContent{
			SourceURL: targetURL,
			Source:    src.Name(),
			Title:     page.Title,
			Pages:     page.Pages,
		}
		content.Text, content.Truncated = truncateRunes(text, c.maxChars)
		c.metrics.FetchSource(src.Name())
		log.Info("scrape: fetched content", zap.Int("chars", len(content.Text)), zap.Bool("truncated", content.Truncated))
		return content, nil
	}
	return nil, ferr
}

func truncateRunes(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	return string([]rune(s)[:n]), true
}
