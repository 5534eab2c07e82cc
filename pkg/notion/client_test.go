package notion

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// mockPages implements pageService for testing.
type mockPages struct {
	mock.Mock
}

func (m *mockPages) Create(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func (m *mockPages) Update(ctx context.Context, id notionapi.PageID, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func TestNewClient_RateLimitOption(t *testing.T) {
	c := NewClient("secret", WithRateLimit(10)).(*notionClient)
	require.NotNil(t, c.limiter)
	assert.InDelta(t, 10, float64(c.limiter.Limit()), 0.001)
	require.NotNil(t, c.pages)

	c = NewClient("secret", WithRateLimit(0)).(*notionClient)
	assert.Nil(t, c.limiter)
	assert.NoError(t, c.wait(context.Background()))
}

func TestPropertyName(t *testing.T) {
	assert.Equal(t, "Min Funding Amount", PropertyName("min_funding_amount"))
	assert.Equal(t, "Website", PropertyName("website"))
}

func TestBuildProperties(t *testing.T) {
	record := map[string]any{
		"lender_name":         "Acme Capital",
		"website":             "https://acme.example",
		"min_funding_amount":  5000.0,
		"min_credit_score":    550,
		"requires_collateral": false,
		"products_offered":    []string{"MCA", "Term Loan, Secured"},
		"description":         strings.Repeat("x", 2100),
		"contact_email":       "",
		"factor_rate_min":     nil,
		"states_excluded":     []string{},
	}

	props := BuildProperties(record, "lender_name")

	title, ok := props["Lender Name"].(notionapi.TitleProperty)
	require.True(t, ok)
	assert.Equal(t, "Acme Capital", title.Title[0].Text.Content)

	url, ok := props["Website"].(notionapi.URLProperty)
	require.True(t, ok)
	assert.Equal(t, "https://acme.example", url.URL)

	num, ok := props["Min Funding Amount"].(notionapi.NumberProperty)
	require.True(t, ok)
	assert.InDelta(t, 5000, num.Number, 0.001)

	score, ok := props["Min Credit Score"].(notionapi.NumberProperty)
	require.True(t, ok)
	assert.InDelta(t, 550, score.Number, 0.001)

	cb, ok := props["Requires Collateral"].(notionapi.CheckboxProperty)
	require.True(t, ok)
	assert.False(t, cb.Checkbox)

	ms, ok := props["Products Offered"].(notionapi.MultiSelectProperty)
	require.True(t, ok)
	require.Len(t, ms.MultiSelect, 2)
	assert.Equal(t, "Term Loan  Secured", ms.MultiSelect[1].Name)

	desc, ok := props["Description"].(notionapi.RichTextProperty)
	require.True(t, ok)
	assert.Len(t, desc.RichText[0].Text.Content, maxRichText)

	assert.NotContains(t, props, "Contact Email")
	assert.NotContains(t, props, "Factor Rate Min")
	assert.NotContains(t, props, "States Excluded")
}

func TestUpsertRecord_CreatesLenderPage(t *testing.T) {
	pages := new(mockPages)
	ctx := context.Background()

	pages.On("Create", ctx, mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		title, ok := req.Properties["Lender Name"].(notionapi.TitleProperty)
		return ok && title.Title[0].Text.Content == "Acme Capital" &&
			req.Parent.Type == notionapi.ParentTypeDatabaseID &&
			req.Parent.DatabaseID == notionapi.DatabaseID("db-lenders") &&
			req.Properties["Min Credit Score"] != nil
	})).Return(&notionapi.Page{ID: "page-1"}, nil).Once()

	c := newClient(pages, WithRateLimit(0))
	id, err := c.UpsertRecord(ctx, Record{
		DatabaseID: "db-lenders",
		TitleKey:   "lender_name",
		Data:       map[string]any{"lender_name": "Acme Capital", "min_credit_score": 550},
	})
	require.NoError(t, err)
	assert.Equal(t, "page-1", id)
	pages.AssertExpectations(t)
}

func TestUpsertRecord_UpdatesPreviousPage(t *testing.T) {
	pages := new(mockPages)
	ctx := context.Background()

	pages.On("Update", ctx, notionapi.PageID("page-1"), mock.MatchedBy(func(req *notionapi.PageUpdateRequest) bool {
		_, ok := req.Properties["Company Name"].(notionapi.TitleProperty)
		return ok
	})).Return(&notionapi.Page{ID: "page-1"}, nil).Once()

	c := newClient(pages, WithRateLimit(0))
	id, err := c.UpsertRecord(ctx, Record{
		DatabaseID: "db-vendors",
		PageID:     "page-1",
		TitleKey:   "company_name",
		Data:       map[string]any{"company_name": "Acme Leads", "lead_types": []string{"Live Transfer"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "page-1", id)
	pages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpsertRecord_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing database", func(t *testing.T) {
		_, err := newClient(new(mockPages), WithRateLimit(0)).UpsertRecord(ctx, Record{TitleKey: "name"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database ID is required")
	})

	t.Run("create fails", func(t *testing.T) {
		pages := new(mockPages)
		pages.On("Create", ctx, mock.Anything).Return(nil, assert.AnError).Once()
		_, err := newClient(pages, WithRateLimit(0)).UpsertRecord(ctx, Record{DatabaseID: "db", TitleKey: "name", Data: map[string]any{"name": "x"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "notion: create page in db")
	})

	t.Run("update fails", func(t *testing.T) {
		pages := new(mockPages)
		pages.On("Update", ctx, notionapi.PageID("p1"), mock.Anything).Return(nil, assert.AnError).Once()
		_, err := newClient(pages, WithRateLimit(0)).UpsertRecord(ctx, Record{DatabaseID: "db", PageID: "p1", Data: map[string]any{"name": "x"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "notion: update page p1")
	})

	t.Run("rate limit cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		c := newClient(new(mockPages))
		c.limiter = rate.NewLimiter(rate.Every(time.Hour), 0)
		_, err := c.UpsertRecord(cctx, Record{DatabaseID: "db", Data: map[string]any{"name": "x"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "notion: rate limit")
	})
}
