package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-intake/pkg/firecrawl"
)

// FirecrawlSource scrapes a single page, or crawls a site and joins the
// markdown of every page it returns.
type FirecrawlSource struct {
	client   firecrawl.Client
	maxPages int
	poll     []firecrawl.PollOption
}

// NewFirecrawlSource creates a Firecrawl source. maxPages <= 1 uses the
// synchronous scrape endpoint.
func NewFirecrawlSource(client firecrawl.Client, maxPages int, poll ...firecrawl.PollOption) *FirecrawlSource {
	return &FirecrawlSource{client: client, maxPages: maxPages, poll: poll}
}

// Name implements Source.
func (s *FirecrawlSource) Name() string { return "firecrawl" }

// Fetch implements Source.
func (s *FirecrawlSource) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	if s.maxPages <= 1 {
		resp, err := s.client.Scrape(ctx, firecrawl.ScrapeRequest{
			URL:             targetURL,
			Formats:         []string{"markdown"},
			OnlyMainContent: true,
		})
		if err != nil {
			return nil, err
		}
		return joinPages(targetURL, []firecrawl.PageData{resp.Data}), nil
	}

	resp, err := s.client.Crawl(ctx, firecrawl.CrawlRequest{
		URL:   targetURL,
		Limit: s.maxPages,
		ScrapeOptions: &firecrawl.ScrapeOptions{
			Formats:         []string{"markdown"},
			OnlyMainContent: true,
		},
	})
	if err != nil {
		return nil, err
	}

	pages := resp.Data
	if len(pages) == 0 {
		if resp.ID == "" {
			return nil, eris.New("firecrawl: crawl returned neither data nor a job id")
		}
		status, err := firecrawl.PollCrawl(ctx, s.client, resp.ID, s.poll...)
		if err != nil {
			return nil, err
		}
		pages = status.Data
	}
	return joinPages(targetURL, pages), nil
}

// joinPages concatenates page markdown. With more than one page each block
// is headed by the page URL.
func joinPages(targetURL string, pages []firecrawl.PageData) *Page {
	out := &Page{URL: targetURL}
	var parts []string
	for _, p := range pages {
		md := strings.TrimSpace(p.Markdown)
		if md == "" {
			continue
		}
		if out.Title == "" {
			out.Title = p.PageTitle()
		}
		parts = append(parts, md)
		out.Pages++
		if src := p.Metadata.SourceURL; out.Pages > 1 && src != "" {
			parts[len(parts)-1] = "## " + src + "\n\n" + md
		}
	}
	out.Text = strings.Join(parts, "\n\n")
	return out
}
