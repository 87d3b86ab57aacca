// Package calc computes response-share tables over classified questions and
// derived categories. Rows whose category membership is unknown are excluded
// from denominators; the masks produced by the category builder make that
// exclusion explicit instead of treating unknown as false.
package calc

import (
	"sort"

	"surveyd/internal/category"
	"surveyd/internal/classify"
	"surveyd/internal/config"
	"surveyd/internal/dataset"
)

// Cell is one percentage: the share of a category's respondents who gave a
// particular answer to a question column.
type Cell struct {
	Question   string  `json:"question"`
	Column     string  `json:"column"`
	Value      float64 `json:"value"`
	ValueLabel string  `json:"value_label,omitempty"`
	Category   string  `json:"category"`
	Percent    float64 `json:"percent"`
	Count      int     `json:"count"` // unweighted respondents behind the cell
	Base       float64 `json:"base"`  // (weighted) denominator
	Suppressed bool    `json:"suppressed,omitempty"`
}

// Table is the full percentage table in question, column, value, category
// order.
type Table struct {
	Weighted bool   `json:"weighted"`
	Cells    []Cell `json:"cells"`
}

// Options controls the calculation.
type Options struct {
	// Weighted applies the configured weight column when it exists in the
	// dataset; weight derivation itself happens upstream.
	Weighted bool
}

// segment is one denominator population: a boolean category, or one level of
// a categorical one.
type segment struct {
	name   string
	member []bool
	known  []bool
}

// Percentages builds the response-share table for every answerable question
// type (single-choice, multi-response, grid, ranking) against every category
// segment. Cells backed by fewer respondents than the configured minimum
// count are suppressed rather than reported.
func Percentages(ds *dataset.Dataset, cfg *config.Config, qs *classify.Result, cats *category.Result, opts Options) *Table {
	weights, weighted := resolveWeights(ds, cfg, opts)
	table := &Table{Weighted: weighted}
	segments := expandSegments(ds.Rows(), cats)
	missing := cfg.GlobalMissing()

	for _, q := range qs.Questions {
		switch q.Type {
		case classify.TypeSingleChoice, classify.TypeMultiResponse,
			classify.TypeGrid, classify.TypeRanking:
		default:
			continue
		}
		for _, qc := range q.Columns {
			col, ok := ds.Column(qc.Name)
			if !ok || col.Desc.Kind != dataset.KindNumeric {
				continue
			}
			values := answerValues(col, missing)
			for _, seg := range segments {
				table.Cells = append(table.Cells,
					segmentCells(q.Name, col, values, seg, weights, missing, cfg.MinimumCount)...)
			}
		}
	}
	return table
}

// answerValues lists the labelled answer codes of a column, or the observed
// distinct codes when no labels exist, missing codes excluded, sorted.
func answerValues(col *dataset.Column, missing map[float64]bool) []float64 {
	set := make(map[float64]bool)
	if len(col.Desc.ValueLabels) > 0 {
		for v := range col.Desc.ValueLabels {
			set[v] = true
		}
	} else {
		for i, v := range col.Nums {
			if col.Known(i, missing) {
				set[v] = true
			}
		}
	}
	values := make([]float64, 0, len(set))
	for v := range set {
		if !missing[v] && !col.Desc.MissingCodes[v] {
			values = append(values, v)
		}
	}
	sort.Float64s(values)
	return values
}

func segmentCells(question string, col *dataset.Column, values []float64, seg segment, weights []float64, missing map[float64]bool, minCount int) []Cell {
	var base float64
	respondents := 0
	for i := range col.Nums {
		if !seg.known[i] || !seg.member[i] || !col.Known(i, missing) {
			continue
		}
		base += weights[i]
		respondents++
	}

	cells := make([]Cell, 0, len(values))
	for _, v := range values {
		var num float64
		count := 0
		for i, cv := range col.Nums {
			if !seg.known[i] || !seg.member[i] || !col.Known(i, missing) {
				continue
			}
			if cv == v {
				num += weights[i]
				count++
			}
		}
		cell := Cell{
			Question:   question,
			Column:     col.Desc.Name,
			Value:      v,
			ValueLabel: col.Desc.ValueLabels[v],
			Category:   seg.name,
			Count:      count,
			Base:       base,
		}
		if respondents < minCount {
			cell.Suppressed = true
		} else if base > 0 {
			cell.Percent = num / base * 100
		}
		cells = append(cells, cell)
	}
	return cells
}

func expandSegments(rows int, cats *category.Result) []segment {
	var segs []segment
	for i := range cats.Categories {
		cat := &cats.Categories[i]
		if len(cat.Levels) == 0 {
			segs = append(segs, segment{name: cat.Name, member: cat.Member, known: cat.Known})
			continue
		}
		for _, level := range cat.Levels {
			member := make([]bool, rows)
			for r := 0; r < rows; r++ {
				member[r] = cat.Known[r] && cat.Values[r] == level
			}
			segs = append(segs, segment{name: level + " " + cat.Name, member: member, known: cat.Known})
		}
	}
	return segs
}

func resolveWeights(ds *dataset.Dataset, cfg *config.Config, opts Options) ([]float64, bool) {
	n := ds.Rows()
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}
	if !opts.Weighted || cfg.WeightColumn == "" {
		return weights, false
	}
	col, ok := ds.Column(cfg.WeightColumn)
	if !ok || col.Desc.Kind != dataset.KindNumeric {
		return weights, false
	}
	// Missing codes apply to the weight column too; a 999 sentinel must not
	// enter a denominator as a literal weight. Such rows keep weight 1.
	missing := cfg.GlobalMissing()
	for i := 0; i < n; i++ {
		if col.Known(i, missing) {
			weights[i] = col.Nums[i]
		}
	}
	return weights, true
}
