package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-intake/internal/aiextract"
	"github.com/sells-group/funding-intake/internal/model"
	"github.com/sells-group/funding-intake/internal/normalize"
	"github.com/sells-group/funding-intake/internal/resilience"
	"github.com/sells-group/funding-intake/internal/schema"
	"github.com/sells-group/funding-intake/pkg/firecrawl"
)

const agentSource = "firecrawl-agent"

// ScanVendor extracts a lead vendor profile. With useAI set the page is
// fetched and sent to the AI extractor. Otherwise the crawl agent is used
// when configured, and fetched text goes to the heuristic parser.
func (p *Pipeline) ScanVendor(ctx context.Context, targetURL string, useAI bool, tier model.Tier) (*model.NormalizedResult, error) {
	if useAI {
		ex, err := p.ai()
		if err != nil {
			return nil, err
		}
		content, err := p.fetcher.Fetch(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		vendor, meta, err := ex.ExtractVendor(ctx, content, tier)
		if err != nil {
			return nil, err
		}
		return p.normalizeVendor(normalize.Candidate{
			SourceURL: content.SourceURL,
			Source:    content.Source,
			Method:    model.MethodAI,
			Model:     meta.Model,
			Vendor:    vendor,
			RawText:   meta.RawText,
			Dropped:   meta.Dropped,
		}), nil
	}

	if p.agent != nil {
		cand, err := p.agentScan(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		if cand != nil {
			return p.normalizeVendor(*cand), nil
		}
	}

	content, err := p.fetcher.Fetch(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	vendor := p.heuristic.Parse(content.Text)
	return p.normalizeVendor(normalize.Candidate{
		SourceURL: content.SourceURL,
		Source:    content.Source,
		Method:    model.MethodHeuristic,
		Vendor:    &vendor,
		RawText:   content.Text,
	}), nil
}

func (p *Pipeline) normalizeVendor(c normalize.Candidate) *model.NormalizedResult {
	c.Kind = model.KindVendor
	res := p.normalizer.Normalize(c)
	return &res
}

// agentScan runs the crawl agent with the vendor schema. A nil candidate
// with a nil error means the agent could not be started or completed
// without a payload, and the caller should fetch the page instead. A job
// that fails or times out once started is an error.
func (p *Pipeline) agentScan(ctx context.Context, targetURL string) (*normalize.Candidate, error) {
	doc, err := json.Marshal(schema.Document(model.KindVendor))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: marshal vendor schema")
	}

	started, err := p.agent.StartAgent(ctx, firecrawl.AgentRequest{
		URLs:   []string{targetURL},
		Prompt: aiextract.AgentPrompt(),
		Schema: doc,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(err, "pipeline: start agent")
		}
		zap.L().Warn("pipeline: agent start failed, fetching page",
			zap.String("url", targetURL),
			zap.String("error_kind", string(resilience.KindOf(err))),
			zap.Error(err),
		)
		return nil, nil
	}
	if started.ID == "" {
		zap.L().Warn("pipeline: agent returned no job id, fetching page", zap.String("url", targetURL))
		return nil, nil
	}

	status, err := firecrawl.PollAgent(ctx, p.agent, started.ID, p.agentPoll...)
	if err != nil {
		return nil, err
	}

	payload := status.Payload()
	if payload == nil {
		zap.L().Warn("pipeline: agent returned no payload, fetching page", zap.String("url", targetURL))
		return nil, nil
	}
	return p.agentCandidate(targetURL, payload)
}

// agentCandidate turns an agent payload into a vendor candidate. Objects
// are schema-lifted; strings are free text for the heuristic parser.
func (p *Pipeline) agentCandidate(targetURL string, payload json.RawMessage) (*normalize.Candidate, error) {
	cand := &normalize.Candidate{SourceURL: targetURL, Source: agentSource}

	trimmed := strings.TrimSpace(string(payload))
	switch {
	case strings.HasPrefix(trimmed, "{"):
		var obj map[string]any
		if err := json.Unmarshal(payload, &obj); err != nil {
			return nil, &aiextract.ParseError{Reason: "agent object payload", Snippet: snippet(trimmed), Err: err}
		}
		var vendor model.VendorProfile
		dropped, err := schema.Lift(model.KindVendor, obj, &vendor)
		if err != nil {
			return nil, err
		}
		cand.Method = model.MethodAgent
		cand.Vendor = &vendor
		cand.RawText = trimmed
		cand.Dropped = dropped
		return cand, nil

	case strings.HasPrefix(trimmed, `"`):
		var text string
		if err := json.Unmarshal(payload, &text); err != nil {
			return nil, &aiextract.ParseError{Reason: "agent text payload", Snippet: snippet(trimmed), Err: err}
		}
		vendor := p.heuristic.Parse(text)
		cand.Method = model.MethodHeuristic
		cand.Vendor = &vendor
		cand.RawText = text
		return cand, nil
	}

	return nil, &aiextract.ParseError{Reason: "agent payload is neither an object nor text", Snippet: snippet(trimmed)}
}

func snippet(s string) string {
	const n = 200
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
