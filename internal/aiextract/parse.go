package aiextract

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/funding-intake/internal/resilience"
)

// ParseError reports a model reply that is not a JSON object. There is no
// heuristic fallback for AI replies.
type ParseError struct {
	Reason  string
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	msg := "aiextract: unparseable model response: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// ErrorKind classifies ParseError for resilience.KindOf.
func (e *ParseError) ErrorKind() resilience.Kind { return resilience.KindParse }

var fenceRe = regexp.MustCompile("(?s)```([a-zA-Z]*)[ \\t]*\\r?\\n?(.*?)```")

const snippetChars = 200

// ParseJSONObject extracts the JSON object from a model reply. When the reply
// has fenced blocks only they are considered: blocks tagged json first, then
// the rest in order, and the first one holding an object wins. Otherwise the
// whole trimmed reply is tried, then its outermost {...} span.
func ParseJSONObject(text string) (map[string]any, error) {
	bodies := fencedBodies(text)
	if len(bodies) == 0 {
		bodies = []string{strings.TrimSpace(text)}
	}

	var first error
	for _, body := range bodies {
		obj, err := parseObject(body)
		if err == nil {
			return obj, nil
		}
		if first == nil {
			first = err
		}
	}
	return nil, first
}

// fencedBodies returns the trimmed contents of every fenced block, json
// tagged blocks first.
func fencedBodies(text string) []string {
	var tagged, other []string
	for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
		body := strings.TrimSpace(m[2])
		if strings.EqualFold(m[1], "json") {
			tagged = append(tagged, body)
		} else {
			other = append(other, body)
		}
	}
	return append(tagged, other...)
}

func parseObject(body string) (map[string]any, error) {
	if body == "" {
		return nil, &ParseError{Reason: "empty response"}
	}

	var v any
	err := json.Unmarshal([]byte(body), &v)
	if err != nil {
		start := strings.Index(body, "{")
		end := strings.LastIndex(body, "}")
		if start < 0 || end <= start {
			return nil, &ParseError{Reason: "no JSON object found", Snippet: snippet(body), Err: err}
		}
		if err2 := json.Unmarshal([]byte(body[start:end+1]), &v); err2 != nil {
			return nil, &ParseError{Reason: "invalid JSON", Snippet: snippet(body), Err: err2}
		}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ParseError{Reason: "response is not a JSON object", Snippet: snippet(body)}
	}
	return obj, nil
}

func snippet(s string) string {
	if utf8.RuneCountInString(s) <= snippetChars {
		return s
	}
	return string([]rune(s)[:snippetChars]) + "..."
}
