package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-intake/internal/resilience"
	"github.com/sells-group/funding-intake/pkg/jina"
)

// challengeSignatures mark reader output that is an anti-bot page rather
// than site content.
var challengeSignatures = []string{
	"checking your browser",
	"just a moment...",
	"verify you are human",
	"enable javascript and cookies",
	"attention required! | cloudflare",
}

// JinaSource reads pages through the Jina reader proxy behind a circuit
// breaker.
type JinaSource struct {
	client  jina.Client
	breaker *resilience.Breaker
}

// NewJinaSource creates a Jina source.
func NewJinaSource(client jina.Client, breaker *resilience.Breaker) *JinaSource {
	if breaker == nil {
		breaker = resilience.NewBreaker("jina", resilience.DefaultBreakerConfig())
	}
	return &JinaSource{client: client, breaker: breaker}
}

// Name implements Source.
func (s *JinaSource) Name() string { return "jina" }

// Fetch implements Source.
func (s *JinaSource) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	resp, err := resilience.Do(ctx, s.breaker, func(ctx context.Context) (*jina.ReadResponse, error) {
		return s.client.Read(ctx, targetURL)
	})
	if err != nil {
		return nil, err
	}

	if sig, blocked := challenged(resp.Data.Content); blocked {
		return nil, eris.Errorf("jina: challenge page (%s)", sig)
	}

	u := resp.Data.URL
	if u == "" {
		u = targetURL
	}
	return &Page{
		URL:   u,
		Title: resp.Data.Title,
		Text:  strings.TrimSpace(resp.Data.Content),
		Pages: 1,
	}, nil
}

// challenged reports the first challenge signature found in short reader
// output.
func challenged(content string) (string, bool) {
	if len(content) > smallBody {
		return "", false
	}
	lower := strings.ToLower(content)
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) {
			return sig, true
		}
	}
	return "", false
}
