package scrape

import (
	"net/http"
	"strings"
	"unicode/utf8"
)

// BlockType names the anti-bot protection a response carries.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
	BlockAccess     BlockType = "access_denied"
)

// blockSignature is a lowercase body marker and the block it indicates.
type blockSignature struct {
	marker string
	kind   BlockType
}

// challengeSignatures only appear on challenge interstitials.
var challengeSignatures = []blockSignature{
	{"checking your browser", BlockCloudflare},
	{"cf-browser-verification", BlockCloudflare},
	{"cf-chl-", BlockCloudflare},
	{"please verify you are a human", BlockCaptcha},
}

// shellSignatures also turn up on real pages (noscript banners, contact
// form captchas), so they only count when the page has no content of its own.
var shellSignatures = []blockSignature{
	{"g-recaptcha", BlockCaptcha},
	{"h-captcha", BlockCaptcha},
	{"hcaptcha.com", BlockCaptcha},
	{"access denied", BlockAccess},
	{"403 forbidden", BlockAccess},
	{"just a moment", BlockCloudflare},
	{"enable javascript", BlockJSShell},
	{`http-equiv="refresh"`, BlockJSShell},
}

// DetectHeaderBlock reports a Cloudflare block from the response status and
// headers alone.
func DetectHeaderBlock(resp *http.Response) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		h := resp.Header
		if h.Get("cf-ray") != "" || h.Get("cf-mitigated") != "" || strings.EqualFold(h.Get("server"), "cloudflare") {
			return true, BlockCloudflare
		}
	}
	return false, BlockNone
}

// DetectBlock reports whether a fetched page is an anti-bot interstitial
// rather than the site's content. text is the page's extracted visible text;
// shell markers are ignored once it reaches minChars.
func DetectBlock(body []byte, text string, minChars int) (bool, BlockType) {
	lower := strings.ToLower(string(body))
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig.marker) {
			return true, sig.kind
		}
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) >= minChars {
		return false, BlockNone
	}
	for _, sig := range shellSignatures {
		if strings.Contains(lower, sig.marker) {
			return true, sig.kind
		}
	}
	return false, BlockNone
}
