package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveyd/internal/config"
	"surveyd/internal/dataset"
	"surveyd/internal/problems"
)

func buildDataset(t *testing.T, cols ...*dataset.Column) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New("test", cols)
	require.NoError(t, err)
	return ds
}

func numCol(name string, labels map[float64]string, vals ...float64) *dataset.Column {
	return &dataset.Column{
		Desc: dataset.Descriptor{
			Name:        name,
			Kind:        dataset.KindNumeric,
			ValueLabels: labels,
		},
		Nums:    vals,
		Missing: make([]bool, len(vals)),
	}
}

func strCol(name string, vals ...string) *dataset.Column {
	return &dataset.Column{
		Desc: dataset.Descriptor{
			Name: name,
			Kind: dataset.KindString,
		},
		Strs:    vals,
		Missing: make([]bool, len(vals)),
	}
}

func buildConfig(t *testing.T, overlap string, defs ...config.RuleDef) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Categories = defs
	if overlap != "" {
		cfg.OverlapPolicy = overlap
	}
	require.NoError(t, cfg.Finalize())
	return cfg
}

func TestSingleRuleThreeValued(t *testing.T) {
	// Rows: both areas, only Area_1, neither, Area_2 missing (999).
	ds := buildDataset(t,
		numCol("Area_1", nil, 1, 1, 0, 1),
		numCol("Area_2", nil, 1, 0, 0, 999),
	)
	cfg := buildConfig(t, "",
		config.RuleDef{Name: "Both areas", Kind: config.KindSingle, Body: "Area_1 == 1 and Area_2 == 1"},
	)

	res := Build(ds, cfg)
	require.Empty(t, res.Problems)
	require.Len(t, res.Categories, 1)

	cat := res.Categories[0]
	assert.Equal(t, []bool{true, false, false, false}, cat.Member)
	// Row 3's Area_2 is the 999 sentinel, so membership is unknown there,
	// not false.
	assert.Equal(t, []bool{true, true, true, false}, cat.Known)
}

func TestMembershipRulesWithMissingSentinel(t *testing.T) {
	ds := buildDataset(t, numCol("Area", nil, 1, 4, 999))
	cfg := buildConfig(t, "",
		config.RuleDef{Name: "Area_1", Kind: config.KindSingle, Body: "Area in (1, 2, 3)"},
		config.RuleDef{Name: "Area_2", Kind: config.KindSingle, Body: "Area in (4, 5, 6)"},
	)

	res := Build(ds, cfg)
	require.Empty(t, res.Problems)
	require.Len(t, res.Categories, 2)

	a1, a2 := res.Categories[0], res.Categories[1]
	assert.Equal(t, []bool{true, false, false}, a1.Member)
	assert.Equal(t, []bool{true, true, false}, a1.Known)
	assert.Equal(t, []bool{false, true, false}, a2.Member)
	assert.Equal(t, []bool{true, true, false}, a2.Known)
}

func TestUnknownShortCircuits(t *testing.T) {
	ds := buildDataset(t,
		numCol("A", nil, 0, 999),
		numCol("B", nil, 999, 1),
	)
	cfg := buildConfig(t, "",
		// A == 1 is decidedly false on row 0, so the missing B cannot make
		// the conjunction unknown there.
		config.RuleDef{Name: "and-false", Kind: config.KindSingle, Body: "A == 1 and B == 1"},
		config.RuleDef{Name: "or-true", Kind: config.KindSingle, Body: "A == 1 or B == 1"},
	)

	res := Build(ds, cfg)
	require.Empty(t, res.Problems)
	require.Len(t, res.Categories, 2)

	andCat, orCat := res.Categories[0], res.Categories[1]
	assert.Equal(t, []bool{false, false}, andCat.Member)
	assert.Equal(t, []bool{true, false}, andCat.Known) // row 1: A missing, B true -> unknown

	assert.Equal(t, []bool{false, true}, orCat.Member)
	assert.Equal(t, []bool{false, true}, orCat.Known) // row 0: A false, B missing -> unknown
}

func TestMissingColumnReportedWithoutAborting(t *testing.T) {
	ds := buildDataset(t, numCol("Age", nil, 34, 61))
	cfg := buildConfig(t, "",
		config.RuleDef{Name: "typo", Kind: config.KindSingle, Body: "Deprtment == 'Sales'"},
		config.RuleDef{Name: "older", Kind: config.KindSingle, Body: "Age >= 50"},
	)

	res := Build(ds, cfg)

	require.Len(t, res.Problems, 1)
	var missing *problems.MissingColumnError
	require.ErrorAs(t, res.Problems[0], &missing)
	assert.Equal(t, "Deprtment", missing.Column)
	assert.Equal(t, "typo", missing.Owner)

	// The healthy sibling rule still produced its category.
	require.Len(t, res.Categories, 1)
	assert.Equal(t, "older", res.Categories[0].Name)
	assert.Equal(t, []bool{false, true}, res.Categories[0].Member)
}

func TestOverlapPolicyError(t *testing.T) {
	ds := buildDataset(t, numCol("Age", nil, 25, 45, 70))
	cfg := buildConfig(t, config.OverlapError,
		config.RuleDef{Name: "young", Kind: config.KindSingle, Body: "Age < 50", Group: "ages"},
		config.RuleDef{Name: "adult", Kind: config.KindSingle, Body: "Age >= 30", Group: "ages"},
	)

	res := Build(ds, cfg)

	// Row 1 (Age 45) matches both grouped rules.
	require.Len(t, res.Problems, 1)
	var dce *problems.DataConsistencyError
	require.ErrorAs(t, res.Problems[0], &dce)
	assert.Equal(t, 1, dce.Row)
	assert.Equal(t, "ages", dce.Group)
	assert.Equal(t, []string{"young", "adult"}, dce.Rules)
}

func TestOverlapPolicyPriority(t *testing.T) {
	ds := buildDataset(t, numCol("Age", nil, 25, 45, 70))
	cfg := buildConfig(t, config.OverlapPriority,
		config.RuleDef{Name: "young", Kind: config.KindSingle, Body: "Age < 50", Group: "ages"},
		config.RuleDef{Name: "adult", Kind: config.KindSingle, Body: "Age >= 30", Group: "ages"},
	)

	res := Build(ds, cfg)
	require.Empty(t, res.Problems)
	require.Len(t, res.Categories, 2)

	// Declaration order wins: row 1 stays inside "young" only.
	assert.Equal(t, []bool{true, true, false}, res.Categories[0].Member)
	assert.Equal(t, []bool{false, false, true}, res.Categories[1].Member)
}

func TestColumnKindUsesValueLabels(t *testing.T) {
	regions := map[float64]string{1: "North", 2: "South"}
	ds := buildDataset(t, numCol("Region", regions, 1, 2, 999, 1))
	cfg := buildConfig(t, "",
		config.RuleDef{Name: "region", Kind: config.KindColumn, Body: "Region"},
	)

	res := Build(ds, cfg)
	require.Empty(t, res.Problems)
	require.Len(t, res.Categories, 1)

	cat := res.Categories[0]
	assert.Equal(t, []string{"North", "South"}, cat.Levels)
	assert.Equal(t, []string{"North", "South", "", "North"}, cat.Values)
	assert.Equal(t, []bool{true, true, false, true}, cat.Known)
}

func TestUniqueKindUsesRawValues(t *testing.T) {
	ds := buildDataset(t, strCol("Office", "Lund", "Malmo", "Lund", ""))
	cfg := buildConfig(t, "",
		config.RuleDef{Name: "office", Kind: config.KindUnique, Body: "Office"},
	)

	res := Build(ds, cfg)
	require.Empty(t, res.Problems)
	require.Len(t, res.Categories, 1)

	cat := res.Categories[0]
	assert.Equal(t, []string{"Lund", "Malmo"}, cat.Levels)
	// Empty string cells are unknown, not a level.
	assert.Equal(t, []bool{true, true, true, false}, cat.Known)
}

func TestTotalMarksEveryone(t *testing.T) {
	ds := buildDataset(t, numCol("Age", nil, 999, 42))
	cfg := buildConfig(t, "",
		config.RuleDef{Name: "all", Kind: config.KindTotal},
	)

	res := Build(ds, cfg)
	require.Empty(t, res.Problems)
	require.Len(t, res.Categories, 1)
	assert.Equal(t, []bool{true, true}, res.Categories[0].Member)
	assert.Equal(t, []bool{true, true}, res.Categories[0].Known)
}

func TestDeclarationOrderPreserved(t *testing.T) {
	ds := buildDataset(t, numCol("Age", nil, 30))
	cfg := buildConfig(t, "",
		config.RuleDef{Name: "c", Kind: config.KindTotal},
		config.RuleDef{Name: "a", Kind: config.KindSingle, Body: "Age > 20"},
		config.RuleDef{Name: "b", Kind: config.KindColumn, Body: "Age"},
	)

	for i := 0; i < 3; i++ {
		res := Build(ds, cfg)
		require.Empty(t, res.Problems)
		names := make([]string, len(res.Categories))
		for i, cat := range res.Categories {
			names[i] = cat.Name
		}
		assert.Equal(t, []string{"c", "a", "b"}, names)
	}
}

func TestIdempotence(t *testing.T) {
	ds := buildDataset(t,
		numCol("Area_1", nil, 1, 0, 999),
		numCol("Area_2", nil, 0, 1, 1),
	)
	cfg := buildConfig(t, "",
		config.RuleDef{Name: "a1", Kind: config.KindSingle, Body: "Area_1 == 1", Group: "areas"},
		config.RuleDef{Name: "a2", Kind: config.KindSingle, Body: "Area_2 == 1", Group: "areas"},
	)

	first := Build(ds, cfg)
	second := Build(ds, cfg)
	assert.Equal(t, first.Categories, second.Categories)
	assert.Equal(t, len(first.Problems), len(second.Problems))
}
