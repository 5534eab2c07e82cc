package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funding-intake/internal/resilience"
	"github.com/sells-group/funding-intake/pkg/jina"
)

func TestJinaSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"data":{"title":"Acme","content":"  Merchant cash advance up to $250,000  "}}`))
	}))
	defer srv.Close()

	src := NewJinaSource(jina.NewClient("", jina.WithBaseURL(srv.URL)), nil)
	page, err := src.Fetch(context.Background(), "https://acme.example")
	require.NoError(t, err)
	assert.Equal(t, "jina", src.Name())
	assert.Equal(t, "https://acme.example", page.URL)
	assert.Equal(t, "Acme", page.Title)
	assert.Equal(t, "Merchant cash advance up to $250,000", page.Text)
}

func TestJinaSource_ChallengePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"data":{"title":"Just a moment...","content":"Just a moment... Checking your browser"}}`))
	}))
	defer srv.Close()

	src := NewJinaSource(jina.NewClient("", jina.WithBaseURL(srv.URL)), nil)
	_, err := src.Fetch(context.Background(), "https://acme.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "challenge page")
}

func TestJinaSource_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker("jina", resilience.BreakerConfig{Threshold: 2, Cooldown: time.Hour})
	src := NewJinaSource(jina.NewClient("", jina.WithBaseURL(srv.URL)), breaker)

	for range 3 {
		_, err := src.Fetch(context.Background(), "https://acme.example")
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, resilience.Open, breaker.State())
}
