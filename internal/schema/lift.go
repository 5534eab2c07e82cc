package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/funding-intake/internal/model"
)

// Lifter validates untyped objects field by field against the schema of
// each kind. It is safe for concurrent use.
type Lifter struct {
	mu       sync.Mutex
	compiled map[model.Kind]map[string]*jsonschema.Schema
}

// NewLifter returns a Lifter that compiles field schemas on first use.
func NewLifter() *Lifter {
	return &Lifter{compiled: make(map[model.Kind]map[string]*jsonschema.Schema)}
}

var defaultLifter = NewLifter()

// Lift decodes the fields of obj that validate into target, a pointer to
// the typed record of kind. Unknown keys and values of the wrong type are
// skipped and reported; null values are skipped silently.
func Lift(kind model.Kind, obj map[string]any, target any) ([]string, error) {
	return defaultLifter.Lift(kind, obj, target)
}

// Lift is the method form of the package-level Lift.
func (l *Lifter) Lift(kind model.Kind, obj map[string]any, target any) ([]string, error) {
	validators, err := l.validators(kind)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clean := make(map[string]any, len(obj))
	var dropped []string
	for _, k := range keys {
		v := obj[k]
		if v == nil {
			continue
		}
		s, ok := validators[k]
		if !ok {
			dropped = append(dropped, fmt.Sprintf("%s (unknown field)", k))
			continue
		}
		if err := s.Validate(v); err != nil {
			dropped = append(dropped, fmt.Sprintf("%s (%s)", k, typeOf(kind, k)))
			continue
		}
		clean[k] = v
	}

	b, err := json.Marshal(clean)
	if err != nil {
		return dropped, eris.Wrap(err, "schema: marshal lifted fields")
	}
	if err := json.Unmarshal(b, target); err != nil {
		return dropped, eris.Wrap(err, "schema: decode lifted fields")
	}
	return dropped, nil
}

func typeOf(kind model.Kind, name string) string {
	for _, f := range Fields(kind) {
		if f.Name == name {
			return "expected " + f.TypeLabel()
		}
	}
	return "invalid"
}

func (l *Lifter) validators(kind model.Kind) (map[string]*jsonschema.Schema, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.compiled[kind]; ok {
		return m, nil
	}

	fields := Fields(kind)
	if len(fields) == 0 {
		return nil, eris.Errorf("schema: unknown kind %q", kind)
	}

	m := make(map[string]*jsonschema.Schema, len(fields))
	for _, f := range fields {
		raw, err := json.Marshal(f.JSON())
		if err != nil {
			return nil, eris.Wrapf(err, "schema: marshal %s.%s", kind, f.Name)
		}
		url := fmt.Sprintf("%s/%s.json", kind, f.Name)
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
			return nil, eris.Wrapf(err, "schema: load %s", url)
		}
		s, err := compiler.Compile(url)
		if err != nil {
			return nil, eris.Wrapf(err, "schema: compile %s", url)
		}
		m[f.Name] = s
	}
	l.compiled[kind] = m
	return m, nil
}
