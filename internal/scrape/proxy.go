package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-intake/internal/resilience"
)

// DefaultProxyEndpoints are a direct fetch followed by two public relays.
var DefaultProxyEndpoints = []string{
	"{raw}",
	"https://api.allorigins.win/raw?url={url}",
	"https://corsproxy.io/?url={url}",
}

const (
	userAgent    = "Mozilla/5.0 (compatible; funding-intake/1.0)"
	maxBodyBytes = 5 << 20
)

// ExpandTemplate fills an endpoint template. {url} is replaced with the
// query-escaped target and {raw} with the target as-is.
func ExpandTemplate(tmpl, targetURL string) string {
	r := strings.NewReplacer("{url}", url.QueryEscape(targetURL), "{raw}", targetURL)
	return r.Replace(tmpl)
}

// endpointName labels a template for logs and breaker names.
func endpointName(tmpl string) string {
	if strings.HasPrefix(tmpl, "{raw}") {
		return "direct"
	}
	if u, err := url.Parse(tmpl); err == nil && u.Host != "" {
		return u.Host
	}
	return tmpl
}

// ProxySource fetches raw HTML directly or through a relay and extracts
// its text.
type ProxySource struct {
	template    string
	name        string
	mainContent bool
	minChars    int
	http        *http.Client
	breaker     *resilience.Breaker
}

// ProxyOption configures a ProxySource.
type ProxyOption func(*ProxySource)

// WithMainContentOnly extracts the main article instead of all visible text.
func WithMainContentOnly(on bool) ProxyOption {
	return func(s *ProxySource) { s.mainContent = on }
}

// WithProxyMinChars sets the visible text length below which shell markers
// such as a noscript banner mark the page as blocked.
func WithProxyMinChars(n int) ProxyOption {
	return func(s *ProxySource) {
		if n > 0 {
			s.minChars = n
		}
	}
}

// WithProxyHTTPClient overrides the default http.Client.
func WithProxyHTTPClient(hc *http.Client) ProxyOption {
	return func(s *ProxySource) { s.http = hc }
}

// WithProxyBreakers takes the source's breaker from a shared registry.
func WithProxyBreakers(b *resilience.Breakers) ProxyOption {
	return func(s *ProxySource) { s.breaker = b.Get("proxy:" + s.name) }
}

// NewProxySource creates a source for one endpoint template.
func NewProxySource(template string, opts ...ProxyOption) *ProxySource {
	s := &ProxySource{
		template: template,
		name:     endpointName(template),
		minChars: DefaultMinChars,
		http:     &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = resilience.NewBreaker("proxy:"+s.name, resilience.DefaultBreakerConfig())
	}
	return s
}

// NewProxySources creates one source per template.
func NewProxySources(templates []string, opts ...ProxyOption) []Source {
	out := make([]Source, 0, len(templates))
	for _, t := range templates {
		out = append(out, NewProxySource(t, opts...))
	}
	return out
}

// Name implements Source.
func (s *ProxySource) Name() string { return "proxy:" + s.name }

// Fetch implements Source.
func (s *ProxySource) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	return resilience.Do(ctx, s.breaker, func(ctx context.Context) (*Page, error) {
		body, err := s.get(ctx, ExpandTemplate(s.template, targetURL))
		if err != nil {
			return nil, err
		}

		extract := VisibleText
		if s.mainContent {
			extract = func(b []byte) (string, string, error) { return MainText(b, targetURL) }
		}
		title, text, err := extract(body)
		if err != nil {
			return nil, err
		}
		if blocked, kind := DetectBlock(body, text, s.minChars); blocked {
			return nil, &BlockedError{Type: kind, StatusCode: http.StatusOK}
		}
		return &Page{URL: targetURL, Title: title, Text: text, Pages: 1}, nil
	})
}

func (s *ProxySource) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "proxy: create request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "proxy: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if blocked, kind := DetectHeaderBlock(resp); blocked {
		return nil, &BlockedError{Type: kind, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, eris.Errorf("proxy: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "proxy: read body")
	}
	return body, nil
}

// BlockedError reports an anti-bot interstitial.
type BlockedError struct {
	Type       BlockType
	StatusCode int
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("proxy: blocked by %s (status %d)", e.Type, e.StatusCode)
}
