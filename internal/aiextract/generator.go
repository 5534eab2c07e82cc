// Package aiextract builds extraction prompts, sends them to a hosted
// text-generation provider and lifts the JSON reply into typed records.
package aiextract

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-intake/internal/model"
	"github.com/sells-group/funding-intake/internal/resilience"
	"github.com/sells-group/funding-intake/pkg/anthropic"
	"github.com/sells-group/funding-intake/pkg/gemini"
	"github.com/sells-group/funding-intake/pkg/perplexity"
)

// Generation is one provider reply.
type Generation struct {
	Text         string
	Provider     string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Generator sends a prompt to a text-generation provider.
type Generator interface {
	Generate(ctx context.Context, prompt string, tier model.Tier) (*Generation, error)
}

// Models names the fast and quality model of a provider.
type Models struct {
	Fast    string
	Quality string
}

// For returns the model for tier. An empty quality model falls back to
// the fast one.
func (m Models) For(tier model.Tier) string {
	if tier == model.TierQuality && m.Quality != "" {
		return m.Quality
	}
	return m.Fast
}

// Sampling holds the generation parameters shared by every provider.
type Sampling struct {
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
}

// GeminiGenerator calls the Gemini generateContent endpoint.
type GeminiGenerator struct {
	client   gemini.Client
	models   Models
	sampling Sampling
}

// NewGemini wraps a gemini client.
func NewGemini(client gemini.Client, models Models, s Sampling) *GeminiGenerator {
	return &GeminiGenerator{client: client, models: models, sampling: s}
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, tier model.Tier) (*Generation, error) {
	name := g.models.For(tier)
	req := gemini.NewTextRequest(prompt, &gemini.GenerationConfig{
		Temperature:     g.sampling.Temperature,
		TopK:            g.sampling.TopK,
		TopP:            g.sampling.TopP,
		MaxOutputTokens: g.sampling.MaxOutputTokens,
	})

	resp, err := g.client.GenerateContent(ctx, name, req)
	if err != nil {
		return nil, eris.Wrapf(err, "aiextract: gemini %s", name)
	}

	gen := &Generation{Text: resp.Text(), Provider: "gemini", Model: name}
	if u := resp.UsageMetadata; u != nil {
		gen.InputTokens = int64(u.PromptTokenCount)
		gen.OutputTokens = int64(u.CandidatesTokenCount)
	}
	return gen, nil
}

// AnthropicGenerator calls the Anthropic messages API.
type AnthropicGenerator struct {
	client   anthropic.Client
	models   Models
	sampling Sampling
}

// NewAnthropic wraps an anthropic client.
func NewAnthropic(client anthropic.Client, models Models, s Sampling) *AnthropicGenerator {
	return &AnthropicGenerator{client: client, models: models, sampling: s}
}

// Generate implements Generator.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string, tier model.Tier) (*Generation, error) {
	name := g.models.For(tier)
	maxTokens := int64(g.sampling.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	temp := g.sampling.Temperature

	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       name,
		MaxTokens:   maxTokens,
		System:      "You extract structured data and answer with a single JSON object.",
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "aiextract: anthropic %s", name)
	}
	resp.Usage.LogCost(name, "extract")

	return &Generation{
		Text:         resp.Text(),
		Provider:     "anthropic",
		Model:        name,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// PerplexityGenerator calls the Perplexity chat completions API.
type PerplexityGenerator struct {
	client   perplexity.Client
	models   Models
	sampling Sampling
}

// NewPerplexity wraps a perplexity client.
func NewPerplexity(client perplexity.Client, models Models, s Sampling) *PerplexityGenerator {
	return &PerplexityGenerator{client: client, models: models, sampling: s}
}

// Generate implements Generator.
func (g *PerplexityGenerator) Generate(ctx context.Context, prompt string, tier model.Tier) (*Generation, error) {
	name := g.models.For(tier)
	temp := g.sampling.Temperature
	req := perplexity.ChatCompletionRequest{
		Model:       name,
		Messages:    []perplexity.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	}
	if g.sampling.MaxOutputTokens > 0 {
		n := g.sampling.MaxOutputTokens
		req.MaxTokens = &n
	}

	resp, err := g.client.ChatCompletion(ctx, req)
	if err != nil {
		return nil, eris.Wrapf(err, "aiextract: perplexity %s", name)
	}
	return &Generation{
		Text:         resp.Text(),
		Provider:     "perplexity",
		Model:        resp.Model,
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	}, nil
}

// ProviderSettings selects and configures one provider.
type ProviderSettings struct {
	Provider string
	Key      string
	BaseURL  string
	Models   Models
	Sampling Sampling
}

// NewGenerator builds the generator for s.Provider. A missing key is a
// configuration error; no client is created and no request is sent.
func NewGenerator(s ProviderSettings) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(s.Provider))
	if provider == "" {
		provider = "gemini"
	}
	if s.Key == "" {
		return nil, resilience.Configf("aiextract", "%s.key is not set; configure an API key for the %s provider", provider, provider)
	}
	if s.Models.Fast == "" {
		return nil, resilience.Configf("aiextract", "%s.fast_model is not set", provider)
	}

	zap.L().Debug("aiextract: generator configured",
		zap.String("provider", provider),
		zap.String("fast_model", s.Models.Fast),
		zap.String("quality_model", s.Models.Quality),
	)

	switch provider {
	case "gemini":
		var opts []gemini.Option
		if s.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(s.BaseURL))
		}
		return NewGemini(gemini.NewClient(s.Key, opts...), s.Models, s.Sampling), nil
	case "anthropic":
		var opts []option.RequestOption
		if s.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(s.BaseURL))
		}
		return NewAnthropic(anthropic.NewClient(s.Key, opts...), s.Models, s.Sampling), nil
	case "perplexity":
		var opts []perplexity.Option
		if s.BaseURL != "" {
			opts = append(opts, perplexity.WithBaseURL(s.BaseURL))
		}
		return NewPerplexity(perplexity.NewClient(s.Key, opts...), s.Models, s.Sampling), nil
	}
	return nil, resilience.Configf("aiextract", "unknown ai.provider %q (want gemini, anthropic or perplexity)", s.Provider)
}
