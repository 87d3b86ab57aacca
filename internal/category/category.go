// Package category materializes analyst-defined categories as derived
// columns. "single" rules evaluate a predicate per row and yield a boolean
// membership column plus an is-known mask; "column" and "unique" rules
// expand a source column into a categorical partition; "total" marks every
// respondent. Downstream calculations must exclude unknown rows from
// denominators, which is why the mask is part of the contract instead of
// coding unknown as false.
package category

import (
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"surveyd/internal/config"
	"surveyd/internal/dataset"
	"surveyd/internal/problems"
	"surveyd/internal/rules"
)

// Category is one derived column. Boolean categories fill Member/Known;
// categorical ones additionally carry Levels and per-row Values.
type Category struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Group string `json:"group,omitempty"`

	Member []bool `json:"-"` // membership flag (single/total) or "has level" (column/unique)
	Known  []bool `json:"-"` // false where inputs were missing

	Levels []string `json:"levels,omitempty"` // categorical level labels, stable order
	Values []string `json:"-"`                // per-row level, "" where unknown
}

// Result is the full set of derived categories in declaration order, plus
// every problem found while building them.
type Result struct {
	Categories []Category
	Problems   []error
}

// Build evaluates every category rule in cfg against ds. Rules are
// independent, so evaluation fans out across workers; the output order is
// the declaration order regardless. A failing rule is reported and skipped
// without aborting its siblings.
func Build(ds *dataset.Dataset, cfg *config.Config) *Result {
	b := &builder{
		ds:      ds,
		cfg:     cfg,
		missing: cfg.GlobalMissing(),
		kinds:   columnKinds(ds),
	}
	return b.run()
}

type builder struct {
	ds      *dataset.Dataset
	cfg     *config.Config
	missing map[float64]bool
	kinds   rules.ColumnKinds
}

func (b *builder) run() *Result {
	res := &Result{}
	var list problems.List

	type slot struct {
		cat  Category
		errs []error
		ok   bool
	}
	slots := make([]slot, len(b.cfg.Categories))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, def := range b.cfg.Categories {
		i, def := i, def
		g.Go(func() error {
			cat, errs := b.buildOne(def)
			slots[i] = slot{cat: cat, errs: errs, ok: len(errs) == 0}
			return nil
		})
	}
	g.Wait()

	for _, s := range slots {
		for _, err := range s.errs {
			list.Add(err)
		}
		if s.ok {
			res.Categories = append(res.Categories, s.cat)
		}
	}

	b.checkGroups(res, &list)
	res.Problems = list.All()
	return res
}

func (b *builder) buildOne(def config.RuleDef) (Category, []error) {
	switch def.Kind {
	case config.KindSingle:
		return b.buildSingle(def)
	case config.KindTotal:
		return b.buildTotal(def), nil
	case config.KindColumn, config.KindUnique:
		return b.buildCategorical(def)
	default:
		return Category{}, []error{&problems.ConfigError{
			Subject: def.Name, Detail: fmt.Sprintf("unknown rule kind %q", def.Kind)}}
	}
}

// buildSingle evaluates a predicate rule row by row with three-valued
// semantics. Missing inputs yield unknown, never false.
func (b *builder) buildSingle(def config.RuleDef) (Category, []error) {
	expr, ok := b.cfg.Compiled().Predicates[def.Name]
	if !ok {
		// Body failed to parse; already reported by config.Finalize, but a
		// build must not silently drop the category either.
		return Category{}, []error{&problems.ConfigError{
			Subject: def.Name, Detail: fmt.Sprintf("rule body %q did not parse", def.Body)}}
	}

	var errs []error
	for _, verr := range rules.Validate(expr, b.kinds) {
		if col, isMissing := rules.UnknownColumn(verr); isMissing {
			errs = append(errs, &problems.MissingColumnError{Column: col, Owner: def.Name})
		} else {
			errs = append(errs, &problems.ConfigError{Subject: def.Name, Detail: verr.Error()})
		}
	}
	if len(errs) > 0 {
		return Category{}, errs
	}

	n := b.ds.Rows()
	cat := Category{
		Name:   def.Name,
		Kind:   def.Kind,
		Group:  def.Group,
		Member: make([]bool, n),
		Known:  make([]bool, n),
	}
	row := &rowView{ds: b.ds, missing: b.missing}
	for i := 0; i < n; i++ {
		row.idx = i
		switch expr.Eval(row) {
		case rules.True:
			cat.Member[i] = true
			cat.Known[i] = true
		case rules.False:
			cat.Known[i] = true
		case rules.Unknown:
			// Member stays false, Known stays false.
		}
	}
	return cat, nil
}

func (b *builder) buildTotal(def config.RuleDef) Category {
	n := b.ds.Rows()
	cat := Category{
		Name:   def.Name,
		Kind:   def.Kind,
		Group:  def.Group,
		Member: make([]bool, n),
		Known:  make([]bool, n),
	}
	for i := 0; i < n; i++ {
		cat.Member[i] = true
		cat.Known[i] = true
	}
	return cat
}

// buildCategorical copies a source column into a categorical partition.
// "column" rules label levels through the value-label metadata; "unique"
// rules use the raw distinct values.
func (b *builder) buildCategorical(def config.RuleDef) (Category, []error) {
	src, ok := b.ds.Column(def.Body)
	if !ok {
		return Category{}, []error{&problems.MissingColumnError{Column: def.Body, Owner: def.Name}}
	}

	n := b.ds.Rows()
	cat := Category{
		Name:   def.Name,
		Kind:   def.Kind,
		Group:  def.Group,
		Member: make([]bool, n),
		Known:  make([]bool, n),
		Values: make([]string, n),
	}

	levelSet := make(map[string]bool)
	for i := 0; i < n; i++ {
		if !src.Known(i, b.missing) {
			continue
		}
		var level string
		if src.Desc.Kind == dataset.KindNumeric {
			v := src.Nums[i]
			if def.Kind == config.KindColumn {
				if lab, ok := src.Desc.ValueLabels[v]; ok {
					level = lab
				} else {
					level = strconv.FormatFloat(v, 'g', -1, 64)
				}
			} else {
				level = strconv.FormatFloat(v, 'g', -1, 64)
			}
		} else {
			level = src.Strs[i]
		}
		cat.Known[i] = true
		cat.Member[i] = true
		cat.Values[i] = level
		levelSet[level] = true
	}

	cat.Levels = make([]string, 0, len(levelSet))
	for l := range levelSet {
		cat.Levels = append(cat.Levels, l)
	}
	sort.Strings(cat.Levels)
	return cat, nil
}

// checkGroups enforces mutual exclusivity inside each rule group of boolean
// categories. Policy "error" reports a data consistency problem per
// offending row; "priority" keeps the first rule in declaration order and
// clears the later ones.
func (b *builder) checkGroups(res *Result, list *problems.List) {
	byGroup := make(map[string][]*Category)
	var groupOrder []string
	for i := range res.Categories {
		cat := &res.Categories[i]
		if cat.Group == "" || cat.Kind != config.KindSingle {
			continue
		}
		if _, seen := byGroup[cat.Group]; !seen {
			groupOrder = append(groupOrder, cat.Group)
		}
		byGroup[cat.Group] = append(byGroup[cat.Group], cat)
	}

	for _, gname := range groupOrder {
		cats := byGroup[gname]
		if len(cats) < 2 {
			continue
		}
		n := b.ds.Rows()
		for i := 0; i < n; i++ {
			var hits []*Category
			for _, cat := range cats {
				if cat.Member[i] {
					hits = append(hits, cat)
				}
			}
			if len(hits) < 2 {
				continue
			}
			if b.cfg.OverlapPolicy == config.OverlapPriority {
				for _, cat := range hits[1:] {
					cat.Member[i] = false
				}
				continue
			}
			names := make([]string, len(hits))
			for j, cat := range hits {
				names[j] = cat.Name
			}
			list.Add(&problems.DataConsistencyError{Row: i, Group: gname, Rules: names})
		}
	}
}

// rowView adapts a dataset row to the predicate evaluator, applying the
// global missing codes so rules never observe raw missing sentinels.
type rowView struct {
	ds      *dataset.Dataset
	missing map[float64]bool
	idx     int
}

func (r *rowView) Value(column string) (rules.Value, bool) {
	col, ok := r.ds.Column(column)
	if !ok {
		return rules.Value{}, false
	}
	if !col.Known(r.idx, r.missing) {
		return rules.Value{}, false
	}
	if col.Desc.Kind == dataset.KindNumeric {
		return rules.Value{Num: col.Nums[r.idx]}, true
	}
	return rules.Value{Str: col.Strs[r.idx], IsStr: true}, true
}

func columnKinds(ds *dataset.Dataset) rules.ColumnKinds {
	kinds := make(rules.ColumnKinds, len(ds.Columns))
	for _, c := range ds.Columns {
		kinds[c.Desc.Name] = c.Desc.Kind == dataset.KindNumeric
	}
	return kinds
}
