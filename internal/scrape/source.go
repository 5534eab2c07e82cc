// Package scrape retrieves page text for a URL from a prioritized list of
// content sources: the crawling provider, the reader proxy and raw HTML
// fetched directly or through public relays.
package scrape

import "context"

// Page is the text one source produced for a URL.
type Page struct {
	URL   string
	Title string
	Text  string
	Pages int
}

// Source fetches readable text for a URL.
type Source interface {
	Name() string
	Fetch(ctx context.Context, targetURL string) (*Page, error)
}
