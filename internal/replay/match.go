package replay

import (
	"fmt"
	"reflect"

	"github.com/drpact/pactgen/internal/contract"
)

// matcher walks the expected body against the actual one, honoring the
// matching rules attached at each path. Without a rule, leaves compare by
// literal equality; with {"match":"type"} only the JSON type must agree;
// a "min" on an array enforces the minimum length.
type matcher struct {
	rules    map[string]contract.RuleSet
	failures []failure
}

type failure struct {
	path         string
	reason       string
	missingField string
}

func (m *matcher) fail(path, reason string) {
	m.failures = append(m.failures, failure{path: path, reason: reason})
}

func (m *matcher) failMissing(path, field string) {
	m.failures = append(m.failures, failure{
		path:         path,
		reason:       fmt.Sprintf("missing field %q", field),
		missingField: field,
	})
}

func (m *matcher) ruleAt(path string) (contract.Rule, bool) {
	rs, ok := m.rules[path]
	if !ok || len(rs.Matchers) == 0 {
		return contract.Rule{}, false
	}
	return rs.Matchers[0], true
}

func (m *matcher) match(path string, expected, actual any) {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			m.fail(path, fmt.Sprintf("expected object, got %s", jsonType(actual)))
			return
		}
		for key, expVal := range exp {
			childPath := path + "." + key
			actVal, present := act[key]
			if !present {
				m.failMissing(path, key)
				continue
			}
			m.match(childPath, expVal, actVal)
		}

	case []any:
		act, ok := actual.([]any)
		if !ok {
			m.fail(path, fmt.Sprintf("expected array, got %s", jsonType(actual)))
			return
		}
		if rule, has := m.ruleAt(path); has && rule.Min > 0 && len(act) < rule.Min {
			m.fail(path, fmt.Sprintf("array has %d elements, contract requires at least %d", len(act), rule.Min))
			return
		}
		// Each actual element must satisfy the first expected element,
		// which serves as the array's template.
		if len(exp) > 0 {
			for i, actVal := range act {
				m.match(fmt.Sprintf("%s[%d]", path, i), exp[0], actVal)
			}
		}

	default:
		m.matchLeaf(path, expected, actual)
	}
}

func (m *matcher) matchLeaf(path string, expected, actual any) {
	if rule, has := m.ruleAt(path); has && rule.Match == "type" {
		if jsonType(expected) != jsonType(actual) {
			m.fail(path, fmt.Sprintf("expected %s, got %s", jsonType(expected), jsonType(actual)))
		}
		return
	}
	// Array templates make element paths like $.warnings[0]; a rule
	// registered at $.warnings[*] covers them.
	if rule, has := m.ruleAt(wildcardPath(path)); has && rule.Match == "type" {
		if jsonType(expected) != jsonType(actual) {
			m.fail(path, fmt.Sprintf("expected %s, got %s", jsonType(expected), jsonType(actual)))
		}
		return
	}

	if !reflect.DeepEqual(expected, actual) {
		m.fail(path, fmt.Sprintf("expected %v, got %v", expected, actual))
	}
}

// wildcardPath rewrites a concrete element path ($.a[3].b) to its wildcard
// form ($.a[*].b).
func wildcardPath(path string) string {
	out := make([]byte, 0, len(path))
	for i := 0; i < len(path); i++ {
		if path[i] == '[' {
			out = append(out, '[', '*')
			for i++; i < len(path) && path[i] != ']'; i++ {
			}
			if i < len(path) {
				out = append(out, ']')
			}
			continue
		}
		out = append(out, path[i])
	}
	return string(out)
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
