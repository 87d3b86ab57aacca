package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Finalize())

	assert.Equal(t, []string{"Q"}, cfg.QuestionPrefixes)
	assert.Equal(t, 5, cfg.MinimumCount)
	assert.Equal(t, "weight", cfg.WeightColumn)
	assert.Equal(t, OverlapError, cfg.OverlapPolicy)
	assert.True(t, cfg.GlobalMissing()[999])

	c := cfg.Compiled()
	assert.True(t, c.MultiResponse.MatchString("Q1C2"))
	assert.True(t, c.Ranking.MatchString("Q3M1"))
	assert.True(t, c.Grid.MatchString("Q2_1"))
	assert.True(t, c.Grid.MatchString("Q2_A1"))
	assert.True(t, c.SingleChoice.MatchString("Q1"))
	assert.True(t, c.SingleChoice.MatchString("Q10a"))
	assert.False(t, c.SingleChoice.MatchString("Q1C2"))
	assert.True(t, c.ID.MatchString("RespondentID"))
	assert.True(t, c.ID.MatchString("resp_id"))
	assert.False(t, c.ID.MatchString("Q1"))
}

func TestParseYAML(t *testing.T) {
	raw := []byte(`
question_prefixes: [Q, F]
minimum_count: 10
missing_codes: [998, 999]
overlap_policy: priority
type_overrides:
  Q7: open_text
question_groups:
  Brands: [BrandA, BrandB]
categories:
  - name: north
    kind: single
    body: Region == 1
  - name: region
    kind: column
    body: Region
  - name: all
    kind: total
`)
	cfg, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"Q", "F"}, cfg.QuestionPrefixes)
	assert.Equal(t, 10, cfg.MinimumCount)
	assert.Equal(t, OverlapPriority, cfg.OverlapPolicy)
	assert.True(t, cfg.GlobalMissing()[998])
	assert.Equal(t, "open_text", cfg.TypeOverrides["Q7"])
	assert.Contains(t, cfg.Compiled().Predicates, "north")
	// Unset fields keep their defaults.
	assert.Equal(t, "weight", cfg.WeightColumn)
}

func TestParseCollectsAllProblems(t *testing.T) {
	raw := []byte(`
question_prefixes: [Q, Q]
type_overrides:
  Q1: not_a_type
categories:
  - name: broken
    kind: single
    body: "Age >"
  - name: empty
    kind: column
    body: ""
`)
	_, err := Parse(raw)
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "duplicate question prefix")
	assert.Contains(t, msg, "not_a_type")
	assert.Contains(t, msg, "broken")
	assert.Contains(t, msg, "empty")
}

func TestBadRuleKindRejected(t *testing.T) {
	cfg := Default()
	cfg.Categories = []RuleDef{{Name: "x", Kind: "percentile", Body: "Age > 1"}}
	err := cfg.Finalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oneof")
}

func TestOverlappingGroupsRejected(t *testing.T) {
	cfg := Default()
	cfg.QuestionGroups = map[string][]string{
		"A": {"Col1", "Col2"},
		"B": {"Col2"},
	}
	err := cfg.Finalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Col2")
	assert.Contains(t, err.Error(), `"A"`)
	assert.Contains(t, err.Error(), `"B"`)
}

func TestDuplicateRuleNameRejected(t *testing.T) {
	cfg := Default()
	cfg.Categories = []RuleDef{
		{Name: "north", Kind: KindSingle, Body: "Region == 1"},
		{Name: "north", Kind: KindSingle, Body: "Region == 2"},
	}
	err := cfg.Finalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate category rule name")
}

func TestBadPatternRejected(t *testing.T) {
	cfg := Default()
	cfg.GridPattern = `_[A\d+$`
	err := cfg.Finalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grid_pattern")
}

func TestCustomSingleChoicePattern(t *testing.T) {
	cfg := Default()
	cfg.QuestionPrefixes = []string{"Q", "F"}
	require.NoError(t, cfg.Finalize())

	// Default single-choice pattern is built from the prefixes.
	sc := cfg.Compiled().SingleChoice
	assert.True(t, sc.MatchString("F12"))
	assert.False(t, sc.MatchString("X12"))

	cfg2 := Default()
	cfg2.SingleChoicePattern = `^S\d+$`
	require.NoError(t, cfg2.Finalize())
	assert.True(t, cfg2.Compiled().SingleChoice.MatchString("S3"))
	assert.False(t, cfg2.Compiled().SingleChoice.MatchString("Q3"))
}
