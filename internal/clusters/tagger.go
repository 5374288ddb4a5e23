// Package clusters assigns spend messages to cost-center labels.
//
// A message is tagged with the first label, in priority order, whose name or
// any of its keywords occurs case-insensitively as a substring of the text.
// The label set is closed: untaggable messages are filtered, never stored
// under a fallback label.
package clusters

import (
	"fmt"
	"strings"
)

// Label is one cost-center cluster: a canonical name plus optional alias
// keywords that also match it.
type Label struct {
	Name     string
	Keywords []string
}

// DefaultLabels is the built-in label set, in priority order.
var DefaultLabels = []Label{
	{Name: "TEXAS"},
	{Name: "SKY"},
	{Name: "ALX"},
}

type matcher struct {
	name     string
	patterns []string // uppercased name + keywords
}

// Tagger matches text against a fixed, ordered label set.
type Tagger struct {
	matchers []matcher
}

// NewTagger builds a Tagger from labels, preserving their priority order.
func NewTagger(labels []Label) (*Tagger, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("cluster set cannot be empty")
	}
	seen := make(map[string]bool, len(labels))
	matchers := make([]matcher, 0, len(labels))
	for _, l := range labels {
		name := strings.ToUpper(strings.TrimSpace(l.Name))
		if name == "" {
			return nil, fmt.Errorf("cluster with empty name")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate cluster %q", name)
		}
		seen[name] = true

		patterns := []string{name}
		for _, kw := range l.Keywords {
			kw = strings.ToUpper(strings.TrimSpace(kw))
			if kw != "" {
				patterns = append(patterns, kw)
			}
		}
		matchers = append(matchers, matcher{name: name, patterns: patterns})
	}
	return &Tagger{matchers: matchers}, nil
}

// Default returns a Tagger over the built-in label set.
func Default() *Tagger {
	t, err := NewTagger(DefaultLabels)
	if err != nil {
		panic(err) // built-in set is static and valid
	}
	return t
}

// Tag returns the first matching cluster name and whether any label matched.
func (t *Tagger) Tag(text string) (string, bool) {
	upper := strings.ToUpper(text)
	for _, m := range t.matchers {
		for _, p := range m.patterns {
			if strings.Contains(upper, p) {
				return m.name, true
			}
		}
	}
	return "", false
}

// Names returns the cluster names in priority order.
func (t *Tagger) Names() []string {
	names := make([]string, len(t.matchers))
	for i, m := range t.matchers {
		names[i] = m.name
	}
	return names
}
