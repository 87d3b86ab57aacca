package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapRow backs the Row interface with a plain map for tests. Absent keys are
// unknown.
type mapRow map[string]Value

func (m mapRow) Value(column string) (Value, bool) {
	v, ok := m[column]
	return v, ok
}

func num(v float64) Value { return Value{Num: v} }
func str(s string) Value  { return Value{Str: s, IsStr: true} }

func TestTriKleene(t *testing.T) {
	assert.Equal(t, False, True.And(False))
	assert.Equal(t, False, Unknown.And(False))
	assert.Equal(t, Unknown, True.And(Unknown))
	assert.Equal(t, True, Unknown.Or(True))
	assert.Equal(t, Unknown, False.Or(Unknown))
	assert.Equal(t, Unknown, Unknown.Not())
	assert.Equal(t, False, True.Not())
}

func TestParseAndEval(t *testing.T) {
	tests := []struct {
		name string
		body string
		row  mapRow
		want Tri
	}{
		{"eq true", "Age == 30", mapRow{"Age": num(30)}, True},
		{"eq false", "Age == 30", mapRow{"Age": num(31)}, False},
		{"single equals accepted", "Age = 30", mapRow{"Age": num(30)}, True},
		{"lt", "Age < 18", mapRow{"Age": num(12)}, True},
		{"gte", "Age >= 65", mapRow{"Age": num(64)}, False},
		{"in set", "Area in (1, 2, 3)", mapRow{"Area": num(2)}, True},
		{"not in set", "Area in (1, 2, 3)", mapRow{"Area": num(9)}, False},
		{"between inclusive", "Age between 18 and 29", mapRow{"Age": num(29)}, True},
		{"between below", "Age between 18 and 29", mapRow{"Age": num(17)}, False},
		{"string eq", "Gender == 'Woman'", mapRow{"Gender": str("Woman")}, True},
		{"and", "Age >= 18 and Age < 30", mapRow{"Age": num(25)}, True},
		{"or", "Area == 1 or Area == 2", mapRow{"Area": num(2)}, True},
		{"not", "not Area == 1", mapRow{"Area": num(2)}, True},
		{"parens", "(Area == 1 or Area == 2) and Age < 30", mapRow{"Area": num(2), "Age": num(25)}, True},
		{"missing input is unknown", "Age < 18", mapRow{}, Unknown},
		{"unknown and false is false", "Age < 18 and Area == 9", mapRow{"Area": num(1)}, False},
		{"unknown or true is true", "Age < 18 or Area == 1", mapRow{"Area": num(1)}, True},
		{"unknown propagates through not", "not Age < 18", mapRow{}, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Parse(tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr.Eval(tt.row))
		})
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"",
		"Age <",
		"Age in ()",
		"Age in (1,",
		"Age between 5 and",
		"Age between 9 and 5",
		"(Age == 1",
		"Age == 1 extra",
		"Age ~ 1",
		"Age < 'young'", // relational op on a string literal
		"'literal' == 1",
	}
	for _, body := range bad {
		t.Run(body, func(t *testing.T) {
			_, err := Parse(body)
			assert.Error(t, err)
		})
	}
}

func TestColumns(t *testing.T) {
	expr, err := Parse("Area in (1,2) and (Age < 30 or not Gender == 'Man')")
	require.NoError(t, err)

	set := make(map[string]bool)
	expr.Columns(set)
	assert.Equal(t, map[string]bool{"Area": true, "Age": true, "Gender": true}, set)
}

func TestValidate(t *testing.T) {
	kinds := ColumnKinds{"Age": true, "Gender": false}

	expr, err := Parse("Age < 30 and Gender == 'Man'")
	require.NoError(t, err)
	assert.Empty(t, Validate(expr, kinds))

	expr, err = Parse("Deprtment == 1")
	require.NoError(t, err)
	errs := Validate(expr, kinds)
	require.Len(t, errs, 1)
	col, ok := UnknownColumn(errs[0])
	assert.True(t, ok)
	assert.Equal(t, "Deprtment", col)

	// Kind mismatches are config errors, not unknown columns.
	expr, err = Parse("Gender == 1")
	require.NoError(t, err)
	errs = Validate(expr, kinds)
	require.Len(t, errs, 1)
	_, ok = UnknownColumn(errs[0])
	assert.False(t, ok)

	expr, err = Parse("Gender between 1 and 3")
	require.NoError(t, err)
	assert.Len(t, Validate(expr, kinds), 1)
}
