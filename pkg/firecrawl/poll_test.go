package firecrawl

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient implements Client for testing poll functions.
type mockClient struct {
	crawlStatusFunc func(ctx context.Context, id string) (*CrawlStatusResponse, error)
	agentStatusFunc func(ctx context.Context, id string) (*AgentStatusResponse, error)
}

func (m *mockClient) Crawl(context.Context, CrawlRequest) (*CrawlResponse, error) {
	return nil, nil
}

func (m *mockClient) GetCrawlStatus(ctx context.Context, id string) (*CrawlStatusResponse, error) {
	return m.crawlStatusFunc(ctx, id)
}

func (m *mockClient) Scrape(context.Context, ScrapeRequest) (*ScrapeResponse, error) {
	return nil, nil
}

func (m *mockClient) StartAgent(context.Context, AgentRequest) (*AgentResponse, error) {
	return nil, nil
}

func (m *mockClient) GetAgentStatus(ctx context.Context, id string) (*AgentStatusResponse, error) {
	return m.agentStatusFunc(ctx, id)
}

func TestPollCrawl_CompletesAfterExactlyNPolls(t *testing.T) {
	const n = 4
	var calls atomic.Int32
	mock := &mockClient{
		crawlStatusFunc: func(ctx context.Context, id string) (*CrawlStatusResponse, error) {
			assert.Equal(t, "crawl-456", id)
			if calls.Add(1) < n {
				return &CrawlStatusResponse{Status: "scraping"}, nil
			}
			return &CrawlStatusResponse{
				Status: StatusCompleted,
				Data:   []PageData{{Markdown: "# Home"}, {Markdown: "# About"}},
			}, nil
		},
	}

	resp, err := PollCrawl(context.Background(), mock, "crawl-456",
		WithPollInterval(time.Millisecond),
		WithMaxAttempts(10),
	)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, resp.Status)
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, int32(n), calls.Load())
}

func TestPollCrawl_NeverCompletes(t *testing.T) {
	var calls atomic.Int32
	mock := &mockClient{
		crawlStatusFunc: func(ctx context.Context, id string) (*CrawlStatusResponse, error) {
			calls.Add(1)
			return &CrawlStatusResponse{Status: "scraping"}, nil
		},
	}

	_, err := PollCrawl(context.Background(), mock, "crawl-789",
		WithPollInterval(time.Millisecond),
		WithMaxAttempts(5),
	)
	require.Error(t, err)

	var timeoutErr *PollTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.True(t, timeoutErr.Timeout())
	assert.Equal(t, "crawl", timeoutErr.Kind)
	assert.Equal(t, "crawl-789", timeoutErr.ID)
	assert.Equal(t, 5, timeoutErr.Attempts)
	assert.Equal(t, int32(5), calls.Load())
}

func TestPollCrawl_FailedStopsImmediately(t *testing.T) {
	for _, status := range []string{StatusFailed, StatusError} {
		t.Run(status, func(t *testing.T) {
			var calls atomic.Int32
			mock := &mockClient{
				crawlStatusFunc: func(ctx context.Context, id string) (*CrawlStatusResponse, error) {
					if calls.Add(1) < 2 {
						return &CrawlStatusResponse{Status: "scraping"}, nil
					}
					return &CrawlStatusResponse{Status: status, Error: "blocked by robots"}, nil
				},
			}

			_, err := PollCrawl(context.Background(), mock, "crawl-fail",
				WithPollInterval(time.Millisecond),
				WithMaxAttempts(30),
			)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrJobFailed)
			assert.Contains(t, err.Error(), "blocked by robots")
			assert.Equal(t, int32(2), calls.Load())

			var timeoutErr *PollTimeoutError
			assert.False(t, errors.As(err, &timeoutErr))
		})
	}
}

func TestPollCrawl_StatusErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	mock := &mockClient{
		crawlStatusFunc: func(ctx context.Context, id string) (*CrawlStatusResponse, error) {
			calls.Add(1)
			return nil, &APIError{StatusCode: 500, Body: "boom"}
		},
	}

	_, err := PollCrawl(context.Background(), mock, "crawl-err",
		WithPollInterval(time.Millisecond),
		WithMaxAttempts(10),
	)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPollCrawl_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	mock := &mockClient{
		crawlStatusFunc: func(ctx context.Context, id string) (*CrawlStatusResponse, error) {
			if calls.Add(1) == 2 {
				cancel()
			}
			return &CrawlStatusResponse{Status: "scraping"}, nil
		},
	}

	_, err := PollCrawl(ctx, mock, "crawl-cancel",
		WithPollInterval(10*time.Millisecond),
		WithMaxAttempts(100),
	)
	require.Error(t, err)
	assert.Less(t, calls.Load(), int32(100))
}

func TestPollAgent_Completes(t *testing.T) {
	var calls atomic.Int32
	mock := &mockClient{
		agentStatusFunc: func(ctx context.Context, id string) (*AgentStatusResponse, error) {
			if calls.Add(1) < 3 {
				return &AgentStatusResponse{Status: "processing"}, nil
			}
			return &AgentStatusResponse{Status: StatusCompleted, Output: []byte(`{"company_name":"Acme Leads"}`)}, nil
		},
	}

	resp, err := PollAgent(context.Background(), mock, "agent-1",
		WithPollInterval(time.Millisecond),
	)
	require.NoError(t, err)
	assert.JSONEq(t, `{"company_name":"Acme Leads"}`, string(resp.Payload()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestPollAgent_Timeout(t *testing.T) {
	mock := &mockClient{
		agentStatusFunc: func(ctx context.Context, id string) (*AgentStatusResponse, error) {
			return &AgentStatusResponse{Status: "processing"}, nil
		},
	}

	_, err := PollAgent(context.Background(), mock, "agent-2",
		WithPollInterval(time.Millisecond),
		WithMaxAttempts(3),
	)
	var timeoutErr *PollTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "agent", timeoutErr.Kind)
	assert.Contains(t, err.Error(), "did not complete after 3 polls")
}

func TestPollOptions_IgnoreNonPositive(t *testing.T) {
	cfg := pollConfig{interval: DefaultCrawlInterval, attempts: DefaultCrawlAttempts}
	WithPollInterval(0)(&cfg)
	WithMaxAttempts(-1)(&cfg)
	assert.Equal(t, DefaultCrawlInterval, cfg.interval)
	assert.Equal(t, DefaultCrawlAttempts, cfg.attempts)
}
