package firecrawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	// DefaultCrawlInterval and DefaultCrawlAttempts bound a crawl poll to about a minute.
	DefaultCrawlInterval = 2 * time.Second
	DefaultCrawlAttempts = 30

	// DefaultAgentInterval and DefaultAgentAttempts bound an agent poll to about 105 seconds.
	DefaultAgentInterval = 1500 * time.Millisecond
	DefaultAgentAttempts = 70
)

// Job status values reported by the status endpoints.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusError     = "error"
)

// ErrJobFailed is returned when a job reports a failed or error status.
var ErrJobFailed = errors.New("firecrawl: job failed")

var errPending = errors.New("firecrawl: job pending")

// PollTimeoutError is returned when a job does not reach a terminal state
// within the attempt budget.
type PollTimeoutError struct {
	Kind     string
	ID       string
	Attempts int
	Interval time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("firecrawl: %s %s did not complete after %d polls (%s interval)", e.Kind, e.ID, e.Attempts, e.Interval)
}

// Timeout reports true so callers can tell exhaustion apart from provider failure.
func (e *PollTimeoutError) Timeout() bool { return true }

// PollOption configures polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	interval time.Duration
	attempts int
}

// WithPollInterval overrides the fixed delay between status checks.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithMaxAttempts overrides the number of status checks.
func WithMaxAttempts(n int) PollOption {
	return func(c *pollConfig) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// PollCrawl polls GetCrawlStatus at a fixed interval until the crawl
// completes, fails, or the attempt budget runs out.
func PollCrawl(ctx context.Context, client Client, id string, opts ...PollOption) (*CrawlStatusResponse, error) {
	cfg := pollConfig{interval: DefaultCrawlInterval, attempts: DefaultCrawlAttempts}
	for _, opt := range opts {
		opt(&cfg)
	}

	return poll(ctx, "crawl", id, cfg, func(ctx context.Context) (*CrawlStatusResponse, string, string, error) {
		status, err := client.GetCrawlStatus(ctx, id)
		if err != nil {
			return nil, "", "", err
		}
		return status, status.Status, status.Error, nil
	})
}

// PollAgent polls GetAgentStatus at a fixed interval until the agent job
// completes, fails, or the attempt budget runs out.
func PollAgent(ctx context.Context, client Client, id string, opts ...PollOption) (*AgentStatusResponse, error) {
	cfg := pollConfig{interval: DefaultAgentInterval, attempts: DefaultAgentAttempts}
	for _, opt := range opts {
		opt(&cfg)
	}

	return poll(ctx, "agent", id, cfg, func(ctx context.Context) (*AgentStatusResponse, string, string, error) {
		status, err := client.GetAgentStatus(ctx, id)
		if err != nil {
			return nil, "", "", err
		}
		return status, status.Status, status.Error, nil
	})
}

// poll runs check until it reports a terminal status. A status call error or
// a failed job stops the loop at once; only a non-terminal status is retried.
func poll[T any](ctx context.Context, kind, id string, cfg pollConfig, check func(context.Context) (T, string, string, error)) (T, error) {
	log := zap.L().With(zap.String("kind", kind), zap.String("job_id", id))

	result, err := retry.DoWithData(
		func() (T, error) {
			var zero T
			res, status, msg, err := check(ctx)
			if err != nil {
				return zero, retry.Unrecoverable(eris.Wrapf(err, "firecrawl: poll %s %s", kind, id))
			}
			switch status {
			case StatusCompleted:
				return res, nil
			case StatusFailed, StatusError:
				if msg == "" {
					msg = status
				}
				return zero, retry.Unrecoverable(eris.Wrapf(ErrJobFailed, "%s %s: %s", kind, id, msg))
			default:
				return zero, errPending
			}
		},
		retry.Context(ctx),
		retry.Attempts(uint(cfg.attempts)),
		retry.Delay(cfg.interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, _ error) {
			log.Debug("firecrawl: job still running", zap.Uint("attempt", n+1))
		}),
	)
	if err != nil {
		var zero T
		if errors.Is(err, errPending) {
			return zero, &PollTimeoutError{Kind: kind, ID: id, Attempts: cfg.attempts, Interval: cfg.interval}
		}
		return zero, err
	}
	return result, nil
}
