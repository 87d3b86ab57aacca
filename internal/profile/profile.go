// Package profile computes per-column data quality metrics: missing rates,
// distinct counts, and value entropy. Analysts use the report to spot broken
// exports (a wrong missing code, a column of empty strings) before trusting
// any downstream table.
package profile

import (
	"math"
	"strconv"

	"surveyd/internal/config"
	"surveyd/internal/dataset"
)

// ColumnProfile holds the quality metrics of one column.
type ColumnProfile struct {
	Name            string  `json:"name"`
	Kind            string  `json:"kind"`
	Rows            int     `json:"rows"`
	KnownRows       int     `json:"known_rows"`
	MissingRate     float64 `json:"missing_rate"`
	DistinctCount   int     `json:"distinct_count"`
	UniquenessRatio float64 `json:"uniqueness_ratio"`
	Entropy         float64 `json:"entropy"`
	LooksLikeID     bool    `json:"looks_like_id"`
	QualityScore    float64 `json:"quality_score"` // 0-1
}

// Report is the profile of every column, in declaration order.
type Report struct {
	Dataset string          `json:"dataset"`
	Columns []ColumnProfile `json:"columns"`
}

// Profile computes the quality report for a dataset. The configured global
// missing codes count as missing, so a sentinel-heavy column shows up with
// the missing rate an analyst would expect.
func Profile(ds *dataset.Dataset, cfg *config.Config) *Report {
	missing := cfg.GlobalMissing()
	rep := &Report{
		Dataset: ds.Name,
		Columns: make([]ColumnProfile, len(ds.Columns)),
	}
	for i, col := range ds.Columns {
		rep.Columns[i] = profileColumn(col, missing)
	}
	return rep
}

func profileColumn(col *dataset.Column, missing map[float64]bool) ColumnProfile {
	p := ColumnProfile{
		Name: col.Desc.Name,
		Kind: col.Desc.Kind.String(),
		Rows: col.Len(),
	}

	counts := make(map[string]int)
	for i := 0; i < p.Rows; i++ {
		if !col.Known(i, missing) {
			continue
		}
		p.KnownRows++
		counts[cellKey(col, i)]++
	}
	p.DistinctCount = len(counts)

	if p.Rows > 0 {
		p.MissingRate = float64(p.Rows-p.KnownRows) / float64(p.Rows)
	}
	if p.KnownRows > 0 {
		p.UniquenessRatio = float64(p.DistinctCount) / float64(p.KnownRows)
	}
	p.Entropy = entropy(counts, p.KnownRows)

	// Near-total uniqueness with near-total coverage reads as an
	// identifier column.
	p.LooksLikeID = p.UniquenessRatio > 0.95 && p.MissingRate < 0.05

	p.QualityScore = qualityScore(p)
	return p
}

func cellKey(col *dataset.Column, i int) string {
	if col.Desc.Kind == dataset.KindNumeric {
		return strconv.FormatFloat(col.Nums[i], 'g', -1, 64)
	}
	return col.Strs[i]
}

// entropy computes the Shannon entropy of the value distribution in bits.
func entropy(counts map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}
	e := 0.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		e -= p * math.Log2(p)
	}
	return e
}

// qualityScore folds the metrics into a single 0-1 figure. Missing data is
// the dominant penalty; extreme entropy (constant column or near-random
// noise) costs up to half the remaining score.
func qualityScore(p ColumnProfile) float64 {
	score := 1.0 - p.MissingRate

	idealEntropy := 4.0
	penalty := math.Abs(p.Entropy-idealEntropy) / 10.0
	score *= math.Max(0.5, 1.0-penalty)

	return math.Max(0, math.Min(1, score))
}
