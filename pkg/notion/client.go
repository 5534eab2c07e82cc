// Package notion writes reviewed intake records as pages of Notion
// databases.
package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client writes reviewed records to Notion.
type Client interface {
	// UpsertRecord writes rec as a database page and returns the page ID.
	UpsertRecord(ctx context.Context, rec Record) (string, error)
}

// Record is one reviewed record bound for a Notion database.
type Record struct {
	DatabaseID string
	// PageID is the page written by an earlier push; it is updated in place.
	PageID string
	// TitleKey is the record key rendered as the page title.
	TitleKey string
	Data     map[string]any
}

// pageService is the part of notionapi.PageService the client uses.
type pageService interface {
	Create(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
	Update(ctx context.Context, id notionapi.PageID, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

// ClientOption configures the Notion client.
type ClientOption func(*notionClient)

// WithRateLimit overrides the default Notion rate limit (3 req/s). A
// non-positive rps disables throttling.
func WithRateLimit(rps float64) ClientOption {
	return func(c *notionClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type notionClient struct {
	pages   pageService
	limiter *rate.Limiter
}

// NewClient creates a Notion client with the given integration token.
// API calls are throttled to 3 req/s unless overridden.
func NewClient(token string, opts ...ClientOption) Client {
	return newClient(notionapi.NewClient(notionapi.Token(token)).Page, opts...)
}

func newClient(pages pageService, opts ...ClientOption) *notionClient {
	c := &notionClient{
		pages:   pages,
		limiter: rate.NewLimiter(3, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *notionClient) UpsertRecord(ctx context.Context, rec Record) (string, error) {
	if rec.PageID == "" && rec.DatabaseID == "" {
		return "", eris.New("notion: database ID is required")
	}
	if err := c.wait(ctx); err != nil {
		return "", eris.Wrap(err, "notion: rate limit")
	}

	props := BuildProperties(rec.Data, rec.TitleKey)
	if rec.PageID != "" {
		page, err := c.pages.Update(ctx, notionapi.PageID(rec.PageID), &notionapi.PageUpdateRequest{Properties: props})
		if err != nil {
			return "", eris.Wrapf(err, "notion: update page %s", rec.PageID)
		}
		return string(page.ID), nil
	}

	page, err := c.pages.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(rec.DatabaseID),
		},
		Properties: props,
	})
	if err != nil {
		return "", eris.Wrapf(err, "notion: create page in %s", rec.DatabaseID)
	}
	return string(page.ID), nil
}

func (c *notionClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
