package scrape

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/rotisserie/eris"
)

const (
	dropSelector  = "script, style, iframe, noscript, svg, template"
	blockSelector = "p, div, br, li, tr, h1, h2, h3, h4, h5, h6, section, article, header, footer, nav, aside, table, ul, ol, dd, dt, blockquote, pre, form"
)

// VisibleText returns the page title and visible text of an HTML document.
// Non-content elements are removed, block elements end a line and runs of
// whitespace are collapsed.
func VisibleText(body []byte) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", eris.Wrap(err, "scrape: parse html")
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find(dropSelector).Remove()
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	root.Find(blockSelector).AfterHtml("\n")

	return title, CollapseWhitespace(root.Text()), nil
}

// MainText extracts the main article text with readability, falling back
// to VisibleText when no article is found.
func MainText(body []byte, pageURL string) (title, text string, err error) {
	u, _ := url.Parse(pageURL)
	article, rerr := readability.FromReader(bytes.NewReader(body), u)
	if rerr == nil {
		if t := CollapseWhitespace(article.TextContent); t != "" {
			return strings.TrimSpace(article.Title), t, nil
		}
	}
	return VisibleText(body)
}

// CollapseWhitespace trims every line, collapses inner runs of spaces and
// drops blank lines.
func CollapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
