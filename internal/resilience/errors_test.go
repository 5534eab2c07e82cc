package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

type statusErr struct{ code int }

func (e *statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e *statusErr) HTTPStatus() int { return e.code }

type timeoutErr struct{}

func (timeoutErr) Error() string { return "poll timeout" }
func (timeoutErr) Timeout() bool { return true }

type parseErr struct{}

func (parseErr) Error() string   { return "bad json" }
func (parseErr) ErrorKind() Kind { return KindParse }

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"explicit", New(KindFetch, "scrape", errors.New("all sources failed")), KindFetch},
		{"config", Configf("gemini", "gemini.key is not set"), KindConfiguration},
		{"wrapped explicit", eris.Wrap(New(KindParse, "ai", errors.New("x")), "extract"), KindParse},
		{"classified", fmt.Errorf("lift: %w", parseErr{}), KindParse},
		{"provider", eris.Wrap(&statusErr{code: 429}, "generate"), KindProvider},
		{"timeout", fmt.Errorf("poll: %w", timeoutErr{}), KindTimeout},
		{"deadline", eris.Wrap(context.DeadlineExceeded, "fetch"), KindTimeout},
		{"circuit", fmt.Errorf("jina: %w", ErrCircuitOpen), KindFetch},
		{"plain", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestStatusOf(t *testing.T) {
	t.Parallel()

	code, ok := StatusOf(eris.Wrap(&statusErr{code: 503}, "call"))
	assert.True(t, ok)
	assert.Equal(t, 503, code)

	_, ok = StatusOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	err := New(KindFetch, "scrape", errors.New("no source"))
	assert.Equal(t, "scrape: no source", err.Error())
	assert.Equal(t, "no source", New(KindFetch, "", errors.New("no source")).Error())
	assert.ErrorContains(t, Configf("gemini", "missing %s", "gemini.key"), "gemini: missing gemini.key")
}
