package classify

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// Rule maps a case-insensitive pattern to one label.
type Rule struct {
	Pattern *regexp.Regexp
	Label   string
}

// NewRule compiles pattern case-insensitively.
func NewRule(pattern, label string) (Rule, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("failed to compile pattern %q: %w", pattern, err)
	}
	return Rule{Pattern: re, Label: label}, nil
}

// Category is one issue type with its ordered rules and default labels.
type Category struct {
	Name     string
	Aliases  []string
	Rules    []Rule
	Defaults []string
}

// RuleTable is an immutable set of categories. Build one with NewRuleTable,
// LoadRules or DefaultRules.
type RuleTable struct {
	categories map[string]Category
	order      []string
	aliases    map[string]string
	fallback   []string
}

// NewRuleTable validates the categories and indexes their aliases. Every
// category needs at least one rule and one default label.
func NewRuleTable(fallback []string, categories ...Category) (*RuleTable, error) {
	if len(fallback) == 0 {
		return nil, fmt.Errorf("fallback labels are empty")
	}

	t := &RuleTable{
		categories: make(map[string]Category, len(categories)),
		aliases:    make(map[string]string),
		fallback:   append([]string(nil), fallback...),
	}

	for _, c := range categories {
		if c.Name == "" {
			return nil, fmt.Errorf("category without a name")
		}
		if _, dup := t.categories[c.Name]; dup {
			return nil, fmt.Errorf("duplicate category %q", c.Name)
		}
		if len(c.Rules) == 0 {
			return nil, fmt.Errorf("category %q has no rules", c.Name)
		}
		if len(c.Defaults) == 0 {
			return nil, fmt.Errorf("category %q has no default labels", c.Name)
		}

		t.categories[c.Name] = Category{
			Name:     c.Name,
			Aliases:  append([]string(nil), c.Aliases...),
			Rules:    append([]Rule(nil), c.Rules...),
			Defaults: append([]string(nil), c.Defaults...),
		}
		t.order = append(t.order, c.Name)

		t.aliases[normalizeKey(c.Name)] = c.Name
		for _, alias := range c.Aliases {
			t.aliases[normalizeKey(alias)] = c.Name
		}
	}

	return t, nil
}

// Categories returns the canonical category names in table order.
func (t *RuleTable) Categories() []string {
	return append([]string(nil), t.order...)
}

// Fallback returns the labels used for unknown categories.
func (t *RuleTable) Fallback() []string {
	return append([]string(nil), t.fallback...)
}

// Defaults returns the default labels of a category.
func (t *RuleTable) Defaults(name string) []string {
	return append([]string(nil), t.categories[name].Defaults...)
}

type ruleFile struct {
	Fallback   []string `yaml:"fallback"`
	Categories []struct {
		Name    string   `yaml:"name"`
		Aliases []string `yaml:"aliases"`
		Rules   []struct {
			Pattern string `yaml:"pattern"`
			Label   string `yaml:"label"`
		} `yaml:"rules"`
		Defaults []string `yaml:"defaults"`
	} `yaml:"categories"`
}

// LoadRules parses a YAML rule table.
func LoadRules(r io.Reader) (*RuleTable, error) {
	var file ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode label rules: %w", err)
	}

	categories := make([]Category, 0, len(file.Categories))
	for _, fc := range file.Categories {
		c := Category{
			Name:     fc.Name,
			Aliases:  fc.Aliases,
			Defaults: fc.Defaults,
		}
		for _, fr := range fc.Rules {
			if fr.Label == "" {
				return nil, fmt.Errorf("category %q: rule %q has no label", fc.Name, fr.Pattern)
			}
			rule, err := NewRule(fr.Pattern, fr.Label)
			if err != nil {
				return nil, fmt.Errorf("category %q: %w", fc.Name, err)
			}
			c.Rules = append(c.Rules, rule)
		}
		categories = append(categories, c)
	}

	return NewRuleTable(file.Fallback, categories...)
}

// LoadRulesFile reads a YAML rule table from disk.
func LoadRulesFile(path string) (*RuleTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open label rules: %w", err)
	}
	defer f.Close()
	return LoadRules(f)
}

var defaultRules = sync.OnceValue(func() *RuleTable {
	t, err := LoadRules(bytes.NewReader(defaultRulesYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded label rules: %v", err))
	}
	return t
})

// DefaultRules returns the built-in localization QA rule table.
func DefaultRules() *RuleTable {
	return defaultRules()
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
