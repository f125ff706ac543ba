// Package classify maps a free-text QA finding to a controlled set of tracker
// labels, driven by the issue category and an ordered table of keyword rules.
package classify

import (
	"strings"

	"github.com/danielolaszy/lqasync/internal/logging"
)

// Engine classifies findings against one rule table. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	table *RuleTable
}

// NewEngine creates an engine over table. A nil table selects DefaultRules.
func NewEngine(table *RuleTable) *Engine {
	if table == nil {
		table = DefaultRules()
	}
	return &Engine{table: table}
}

// Table returns the engine's rule table.
func (e *Engine) Table() *RuleTable {
	return e.table
}

// Normalize resolves a raw category (any case, surrounding whitespace,
// plural or abbreviated variants) to its canonical name.
func (e *Engine) Normalize(rawCategory string) (string, bool) {
	name, ok := e.table.aliases[normalizeKey(rawCategory)]
	return name, ok
}

// Classify returns the labels for a finding. Unknown categories yield the
// fallback labels; known categories yield every label whose rule matched, in
// rule order, or the category defaults when nothing matched. The result is
// never empty.
func (e *Engine) Classify(rawCategory, title, description string) []string {
	name, ok := e.Normalize(rawCategory)
	if !ok {
		logging.Warn("unknown issue category, using fallback labels",
			"category", rawCategory,
			"labels", e.table.fallback)
		return e.table.Fallback()
	}

	category := e.table.categories[name]
	text := strings.ToLower(title + " " + description)

	var labels []string
	seen := make(map[string]bool)
	for _, rule := range category.Rules {
		if seen[rule.Label] || !rule.Pattern.MatchString(text) {
			continue
		}
		seen[rule.Label] = true
		labels = append(labels, rule.Label)
	}

	if len(labels) == 0 {
		labels = append([]string(nil), category.Defaults...)
	}

	logging.Debug("classified finding",
		"category", name,
		"labels", labels)

	return labels
}
