// Package config defines the analysis configuration: question prefixes and
// naming patterns, type overrides, missing codes, and category rule
// definitions. Configs are loaded from YAML, validated up front, and rule
// bodies are parsed once into predicate expressions.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"surveyd/internal/problems"
	"surveyd/internal/rules"
)

// Rule kinds. "single" bodies are predicates; "column" and "unique" bodies
// name a source column; "total" has no body and marks every respondent.
const (
	KindSingle = "single"
	KindColumn = "column"
	KindUnique = "unique"
	KindTotal  = "total"
)

// Overlap policies for grouped single rules.
const (
	OverlapError    = "error"
	OverlapPriority = "priority"
)

// RuleDef is one category rule as written in the config file.
type RuleDef struct {
	Name  string `yaml:"name" validate:"required"`
	Kind  string `yaml:"kind" validate:"required,oneof=single column unique total"`
	Body  string `yaml:"body"`
	Group string `yaml:"group"`
}

// Config is the validated analysis configuration.
type Config struct {
	WeightColumn string `yaml:"weight_column"`
	MinimumCount int    `yaml:"minimum_count" validate:"gte=0"`

	QuestionPrefixes []string `yaml:"question_prefixes" validate:"min=1,dive,required"`

	MultiResponsePattern string `yaml:"multi_response_pattern"`
	RankingPattern       string `yaml:"ranking_pattern"`
	GridPattern          string `yaml:"grid_pattern"`
	BaseGridPattern      string `yaml:"base_grid_pattern"`
	SingleChoicePattern  string `yaml:"single_choice_pattern"`

	MissingCodes []float64 `yaml:"missing_codes"`

	IDColumns []string `yaml:"id_columns"`
	IDPattern string   `yaml:"id_pattern"`

	// TypeOverrides maps a column or base-question name to a question type;
	// an override always wins over inference.
	TypeOverrides map[string]string `yaml:"type_overrides"`

	// QuestionGroups maps an explicit question name to its member columns,
	// bypassing prefix grouping for those columns.
	QuestionGroups map[string][]string `yaml:"question_groups"`

	Categories    []RuleDef `yaml:"categories" validate:"dive"`
	OverlapPolicy string    `yaml:"overlap_policy" validate:"omitempty,oneof=error priority"`

	compiled *Compiled
}

// Compiled holds the derived, ready-to-use form of a Config: compiled
// regexes and parsed rule predicates.
type Compiled struct {
	MultiResponse *regexp.Regexp
	Ranking       *regexp.Regexp
	Grid          *regexp.Regexp
	BaseGrid      *regexp.Regexp
	SingleChoice  *regexp.Regexp
	ID            *regexp.Regexp

	// Predicates holds the parsed body of every syntactically valid
	// "single" rule, keyed by rule name.
	Predicates map[string]rules.Expr
}

// Default returns the configuration used when no file is supplied,
// mirroring the conventional survey column naming scheme.
func Default() *Config {
	return &Config{
		WeightColumn:         "weight",
		MinimumCount:         5,
		QuestionPrefixes:     []string{"Q"},
		MultiResponsePattern: `C\d+$`,
		RankingPattern:       `M\d+$`,
		GridPattern:          `_A?\d+$`,
		MissingCodes:         []float64{999},
		IDPattern:            `(?i)^(respondent_?id|resp_?id|token|id)$`,
		OverlapPolicy:        OverlapError,
	}
}

// Load reads, validates, and compiles a YAML config file. Validation
// collects every problem rather than stopping at the first.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse builds a Config from YAML bytes. Missing fields fall back to the
// defaults.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Finalize validates the config and compiles patterns and rule bodies.
// Call it after building a Config in code; Load and Parse call it for you.
func (c *Config) Finalize() error {
	var list problems.List

	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, ve := range verrs {
				list.Addf(ve.Namespace(), "failed %q validation", ve.Tag())
			}
		} else {
			return err
		}
	}

	if c.OverlapPolicy == "" {
		c.OverlapPolicy = OverlapError
	}

	c.checkPrefixes(&list)
	c.checkOverrides(&list)
	c.checkGroups(&list)

	compiled := &Compiled{Predicates: make(map[string]rules.Expr)}
	compiled.MultiResponse = compilePattern(c.MultiResponsePattern, "multi_response_pattern", &list)
	compiled.Ranking = compilePattern(c.RankingPattern, "ranking_pattern", &list)
	compiled.Grid = compilePattern(c.GridPattern, "grid_pattern", &list)
	compiled.BaseGrid = compilePattern(c.BaseGridPattern, "base_grid_pattern", &list)
	compiled.ID = compilePattern(c.IDPattern, "id_pattern", &list)

	// Single-choice defaults to "<prefix><number><optional letter>" built
	// from the configured prefixes.
	scPattern := c.SingleChoicePattern
	if scPattern == "" {
		scPattern = `^(` + strings.Join(quoteAll(c.QuestionPrefixes), "|") + `)\d+[a-zA-Z]?$`
	}
	compiled.SingleChoice = compilePattern(scPattern, "single_choice_pattern", &list)

	c.checkRules(compiled, &list)

	c.compiled = compiled
	return list.Err()
}

// Compiled returns the derived form. Finalize must have succeeded.
func (c *Config) Compiled() *Compiled {
	return c.compiled
}

// GlobalMissing returns the configured missing codes as a lookup set.
func (c *Config) GlobalMissing() map[float64]bool {
	set := make(map[float64]bool, len(c.MissingCodes))
	for _, v := range c.MissingCodes {
		set[v] = true
	}
	return set
}

func (c *Config) checkPrefixes(list *problems.List) {
	seen := make(map[string]bool, len(c.QuestionPrefixes))
	for _, p := range c.QuestionPrefixes {
		if p == "" {
			list.Addf("question_prefixes", "empty prefix")
			continue
		}
		if seen[p] {
			list.Addf(p, "duplicate question prefix")
		}
		seen[p] = true
	}
}

func (c *Config) checkOverrides(list *problems.List) {
	for name, typ := range c.TypeOverrides {
		if !knownQuestionType(typ) {
			list.Addf(name, "unknown question type %q in override", typ)
		}
	}
}

// checkGroups rejects a column claimed by two explicit question groups:
// grouping must cover every column exactly once, so an overlap is a
// configuration error, not a tiebreak.
func (c *Config) checkGroups(list *problems.List) {
	owner := make(map[string]string)
	for name, cols := range c.QuestionGroups {
		for _, col := range cols {
			if prev, taken := owner[col]; taken && prev != name {
				first, second := prev, name
				if second < first {
					first, second = second, first
				}
				list.Addf(col, "column claimed by question groups %q and %q", first, second)
				continue
			}
			owner[col] = name
		}
	}
}

func (c *Config) checkRules(compiled *Compiled, list *problems.List) {
	seen := make(map[string]bool, len(c.Categories))
	for _, r := range c.Categories {
		if seen[r.Name] {
			list.Addf(r.Name, "duplicate category rule name")
			continue
		}
		seen[r.Name] = true

		switch r.Kind {
		case KindSingle:
			expr, err := rules.Parse(r.Body)
			if err != nil {
				list.Addf(r.Name, "rule body %q: %v", r.Body, err)
				continue
			}
			compiled.Predicates[r.Name] = expr
		case KindColumn, KindUnique:
			if strings.TrimSpace(r.Body) == "" {
				list.Addf(r.Name, "%s rule needs a source column in body", r.Kind)
			}
		case KindTotal:
			// No body.
		}
	}
}

func compilePattern(pattern, field string, list *problems.List) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		list.Addf(field, "bad pattern %q: %v", pattern, err)
		return nil
	}
	return re
}

func quoteAll(prefixes []string) []string {
	out := make([]string, len(prefixes))
	for i, p := range prefixes {
		out[i] = regexp.QuoteMeta(p)
	}
	return out
}

func knownQuestionType(t string) bool {
	switch t {
	case "single_choice", "multi_response", "ranking", "grid", "open_text",
		"unique_id", "passthrough":
		return true
	}
	return false
}
