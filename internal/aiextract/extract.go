package aiextract

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-intake/internal/model"
	"github.com/sells-group/funding-intake/internal/schema"
)

// Meta describes how a record was produced.
type Meta struct {
	Provider     string
	Model        string
	Prompt       string
	RawText      string
	Dropped      []string
	InputTokens  int64
	OutputTokens int64
	Duration     time.Duration
}

// Extractor runs prompted extractions against a Generator.
type Extractor struct {
	gen Generator
}

// New creates an Extractor.
func New(gen Generator) *Extractor {
	return &Extractor{gen: gen}
}

// ExtractLender extracts a lender profile from page content.
func (e *Extractor) ExtractLender(ctx context.Context, content *model.RawContent, tier model.Tier) (*model.LenderProfile, *Meta, error) {
	var out model.LenderProfile
	meta, err := e.run(ctx, model.KindLender, LenderPrompt(content), tier, &out)
	if err != nil {
		return nil, meta, err
	}
	return &out, meta, nil
}

// ExtractVendor extracts a lead vendor profile from page content.
func (e *Extractor) ExtractVendor(ctx context.Context, content *model.RawContent, tier model.Tier) (*model.VendorProfile, *Meta, error) {
	var out model.VendorProfile
	meta, err := e.run(ctx, model.KindVendor, VendorPrompt(content), tier, &out)
	if err != nil {
		return nil, meta, err
	}
	return &out, meta, nil
}

// Recommend produces a sales recommendation for a customer, optionally
// matched against known lenders.
func (e *Extractor) Recommend(ctx context.Context, c *model.Customer, lenders []model.LenderProfile, tier model.Tier) (*model.Recommendation, *Meta, error) {
	if c == nil {
		return nil, nil, eris.New("aiextract: customer is required")
	}
	var out model.Recommendation
	meta, err := e.run(ctx, model.KindRecommendation, RecommendPrompt(c, lenders), tier, &out)
	if err != nil {
		return nil, meta, err
	}
	return &out, meta, nil
}

func (e *Extractor) run(ctx context.Context, kind model.Kind, prompt string, tier model.Tier, target any) (*Meta, error) {
	meta := &Meta{Prompt: prompt}
	start := time.Now()

	gen, err := e.gen.Generate(ctx, prompt, tier)
	meta.Duration = time.Since(start)
	if err != nil {
		return meta, err
	}
	meta.Provider = gen.Provider
	meta.Model = gen.Model
	meta.RawText = gen.Text
	meta.InputTokens = gen.InputTokens
	meta.OutputTokens = gen.OutputTokens

	obj, err := ParseJSONObject(gen.Text)
	if err != nil {
		zap.L().Warn("aiextract: unparseable response",
			zap.String("kind", string(kind)),
			zap.String("provider", gen.Provider),
			zap.String("model", gen.Model),
			zap.Error(err),
		)
		return meta, err
	}

	dropped, err := schema.Lift(kind, obj, target)
	if err != nil {
		return meta, eris.Wrap(err, "aiextract: lift response")
	}
	meta.Dropped = dropped

	zap.L().Info("aiextract: extraction complete",
		zap.String("kind", string(kind)),
		zap.String("provider", gen.Provider),
		zap.String("model", gen.Model),
		zap.Int("fields", len(obj)-len(dropped)),
		zap.Int("dropped", len(dropped)),
		zap.Duration("duration", meta.Duration),
	)
	return meta, nil
}
