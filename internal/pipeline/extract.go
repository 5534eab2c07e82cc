package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-intake/internal/model"
	"github.com/sells-group/funding-intake/internal/normalize"
)

// ExtractLender fetches targetURL and runs the AI lender extraction.
func (p *Pipeline) ExtractLender(ctx context.Context, targetURL string, tier model.Tier) (*model.NormalizedResult, error) {
	ex, err := p.ai()
	if err != nil {
		return nil, err
	}

	content, err := p.fetcher.Fetch(ctx, targetURL)
	if err != nil {
		return nil, err
	}

	lender, meta, err := ex.ExtractLender(ctx, content, tier)
	if err != nil {
		return nil, err
	}

	res := p.normalizer.Normalize(normalize.Candidate{
		Kind:      model.KindLender,
		SourceURL: content.SourceURL,
		Source:    content.Source,
		Method:    model.MethodAI,
		Model:     meta.Model,
		Lender:    lender,
		RawText:   meta.RawText,
		Dropped:   meta.Dropped,
	})
	return &res, nil
}

// Recommend produces a sales recommendation for c. With withLenders set,
// the lenders approved into the store are offered to the model.
func (p *Pipeline) Recommend(ctx context.Context, c *model.Customer, withLenders bool, tier model.Tier) (*model.NormalizedResult, error) {
	if c == nil {
		return nil, eris.Wrap(ErrInvalidRequest, "customer is required")
	}
	ex, err := p.ai()
	if err != nil {
		return nil, err
	}

	var lenders []model.LenderProfile
	if withLenders {
		lenders, err = p.knownLenders(ctx)
		if err != nil {
			return nil, err
		}
	}

	rec, meta, err := ex.Recommend(ctx, c, lenders, tier)
	if err != nil {
		return nil, err
	}

	res := p.normalizer.Normalize(normalize.Candidate{
		Kind:           model.KindRecommendation,
		Subject:        c.BusinessName,
		Method:         model.MethodAI,
		Model:          meta.Model,
		Recommendation: rec,
		RawText:        meta.RawText,
		Dropped:        meta.Dropped,
	})
	return &res, nil
}

func (p *Pipeline) knownLenders(ctx context.Context) ([]model.LenderProfile, error) {
	if p.store == nil {
		return nil, nil
	}
	recs, err := p.store.ListRecords(ctx, model.KindLender.Table(), p.lenderCtx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list lenders")
	}
	lenders := make([]model.LenderProfile, 0, len(recs))
	for _, r := range recs {
		if r.Result != nil && r.Result.Lender != nil {
			lenders = append(lenders, *r.Result.Lender)
		}
	}
	zap.L().Debug("pipeline: lender context", zap.Int("lenders", len(lenders)))
	return lenders, nil
}
