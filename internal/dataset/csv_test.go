package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSV(t *testing.T) {
	raw := `RespondentID,Q1,Comment,Joined
1,3,fine,2024-01-15
2,2,,2024-02-20
3,,meh,2024-03-01
`
	ds, err := LoadCSV(strings.NewReader(raw), "wave1")
	require.NoError(t, err)

	assert.Equal(t, "wave1", ds.Name)
	assert.Equal(t, 3, ds.Rows())
	assert.Equal(t, []string{"RespondentID", "Q1", "Comment", "Joined"}, ds.ColumnNames())

	id, ok := ds.Column("RespondentID")
	require.True(t, ok)
	assert.Equal(t, KindNumeric, id.Desc.Kind)
	assert.Equal(t, []float64{1, 2, 3}, id.Nums)

	q1, ok := ds.Column("Q1")
	require.True(t, ok)
	assert.Equal(t, KindNumeric, q1.Desc.Kind)
	assert.True(t, q1.Missing[2])
	assert.False(t, q1.Known(2, nil))
	assert.True(t, q1.Known(0, nil))

	comment, ok := ds.Column("Comment")
	require.True(t, ok)
	assert.Equal(t, KindString, comment.Desc.Kind)
	assert.Equal(t, []string{"fine", "", "meh"}, comment.Strs)
	assert.True(t, comment.Missing[1])

	joined, ok := ds.Column("Joined")
	require.True(t, ok)
	assert.Equal(t, KindDate, joined.Desc.Kind)
	assert.Equal(t, "2024-01-15", joined.Strs[0])
}

func TestLoadCSVNullMarkers(t *testing.T) {
	raw := `Q1,Q2
1,x
null,N/A
3,na
`
	ds, err := LoadCSV(strings.NewReader(raw), "t")
	require.NoError(t, err)

	q1, _ := ds.Column("Q1")
	assert.Equal(t, KindNumeric, q1.Desc.Kind)
	assert.True(t, q1.Missing[1])

	q2, _ := ds.Column("Q2")
	assert.Equal(t, KindString, q2.Desc.Kind)
	assert.True(t, q2.Missing[1])
	assert.True(t, q2.Missing[2])
}

func TestLoadCSVMostlyNumericColumn(t *testing.T) {
	// One stray non-numeric cell in ten keeps the column numeric; the
	// stray cell is recorded as missing.
	var b strings.Builder
	b.WriteString("Q1\n")
	for i := 0; i < 9; i++ {
		b.WriteString("1\n")
	}
	b.WriteString("oops\n")

	ds, err := LoadCSV(strings.NewReader(b.String()), "t")
	require.NoError(t, err)

	q1, _ := ds.Column("Q1")
	assert.Equal(t, KindNumeric, q1.Desc.Kind)
	assert.True(t, q1.Missing[9])
}

func TestLoadCSVRaggedRows(t *testing.T) {
	raw := "A,B\n1,2\n3\n"
	ds, err := LoadCSV(strings.NewReader(raw), "t")
	require.NoError(t, err)

	b, _ := ds.Column("B")
	assert.True(t, b.Missing[1])
}

func TestLoadCSVEmptyInput(t *testing.T) {
	_, err := LoadCSV(strings.NewReader(""), "t")
	assert.Error(t, err)
}

func TestGlobalMissingCodes(t *testing.T) {
	raw := "Q1\n1\n999\n"
	ds, err := LoadCSV(strings.NewReader(raw), "t")
	require.NoError(t, err)

	q1, _ := ds.Column("Q1")
	assert.True(t, q1.Known(1, nil))
	assert.False(t, q1.Known(1, map[float64]bool{999: true}))
}

func TestNewRejectsDuplicatesAndRaggedColumns(t *testing.T) {
	_, err := New("t", []*Column{
		{Desc: Descriptor{Name: "A"}, Nums: []float64{1}},
		{Desc: Descriptor{Name: "A"}, Nums: []float64{2}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = New("t", []*Column{
		{Desc: Descriptor{Name: "A"}, Nums: []float64{1, 2}},
		{Desc: Descriptor{Name: "B"}, Nums: []float64{1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows")
}
