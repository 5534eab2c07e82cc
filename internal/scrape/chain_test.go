package scrape

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funding-intake/internal/metrics"
	"github.com/sells-group/funding-intake/internal/resilience"
)

type fakeSource struct {
	name  string
	page  *Page
	err   error
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(context.Context, string) (*Page, error) {
	f.calls++
	return f.page, f.err
}

func textPage(n int) *Page {
	return &Page{Title: "T", Text: strings.Repeat("x", n), Pages: 1}
}

func TestChain_FirstSuccessWins(t *testing.T) {
	first := &fakeSource{name: "firecrawl", err: errors.New("boom")}
	second := &fakeSource{name: "jina", page: textPage(150)}
	third := &fakeSource{name: "proxy:direct", page: textPage(150)}

	content, err := NewChain([]Source{first, second, third}, WithMetrics(metrics.New())).
		Fetch(context.Background(), "https://acme.example")
	require.NoError(t, err)
	assert.Equal(t, "jina", content.Source)
	assert.Equal(t, "https://acme.example", content.SourceURL)
	assert.Equal(t, "T", content.Title)
	assert.False(t, content.Truncated)
	assert.Equal(t, 0, third.calls)
}

func TestChain_ShortTextFallsThrough(t *testing.T) {
	short := &fakeSource{name: "jina", page: &Page{Text: "   " + strings.Repeat("y", 99) + "   "}}
	long := &fakeSource{name: "proxy:direct", page: textPage(100)}

	content, err := NewChain([]Source{short, long}).Fetch(context.Background(), "https://acme.example")
	require.NoError(t, err)
	assert.Equal(t, "proxy:direct", content.Source)
}

func TestChain_Truncates(t *testing.T) {
	src := &fakeSource{name: "jina", page: &Page{Text: strings.Repeat("é", 300)}}

	content, err := NewChain([]Source{src}, WithMaxChars(200)).Fetch(context.Background(), "https://acme.example")
	require.NoError(t, err)
	assert.True(t, content.Truncated)
	assert.Equal(t, strings.Repeat("é", 200), content.Text)
}

func TestChain_AllFail(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "jina", err: errors.New("502")},
		&fakeSource{name: "proxy:direct", page: textPage(10)},
	}

	_, err := NewChain(sources).Fetch(context.Background(), "https://acme.example")
	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, []string{"jina", "proxy:direct"}, ferr.Attempts)
	assert.Contains(t, err.Error(), "firecrawl.key")
	assert.Equal(t, resilience.KindFetch, resilience.KindOf(err))
}

func TestChain_NoSources(t *testing.T) {
	_, err := NewChain(nil).Fetch(context.Background(), "https://acme.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sources configured")
}

func TestChain_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{name: "jina", page: textPage(200)}

	_, err := NewChain([]Source{src}).Fetch(ctx, "https://acme.example")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, src.calls)
}

func TestChain_Sources(t *testing.T) {
	c := NewChain([]Source{&fakeSource{name: "a"}, &fakeSource{name: "b"}})
	assert.Equal(t, []string{"a", "b"}, c.Sources())
}
