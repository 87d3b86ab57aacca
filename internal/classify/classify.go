// Package classify maps raw survey columns onto semantic questions. Columns
// sharing a naming prefix are grouped into one question; suffix patterns and
// column metadata (value labels, kinds) decide the question type. The whole
// pass is a pure function of the dataset and config, so classifying the same
// input twice yields the same result.
package classify

import (
	"regexp"
	"sort"
	"strings"

	"surveyd/internal/config"
	"surveyd/internal/dataset"
	"surveyd/internal/problems"
)

// QuestionType tags the response shape of a question.
type QuestionType string

const (
	TypeSingleChoice  QuestionType = "single_choice"
	TypeMultiResponse QuestionType = "multi_response"
	TypeRanking       QuestionType = "ranking"
	TypeGrid          QuestionType = "grid"
	TypeOpenText      QuestionType = "open_text"
	TypeUniqueID      QuestionType = "unique_id"
	TypePassthrough   QuestionType = "passthrough"
)

// Column is one raw column inside a question.
type Column struct {
	Name      string `json:"name"`
	Label     string `json:"label,omitempty"`
	ItemLabel string `json:"item_label,omitempty"` // choice or grid item
}

// Question is one semantic survey item, possibly spanning several columns.
type Question struct {
	Name    string       `json:"name"`
	Label   string       `json:"label,omitempty"`
	Type    QuestionType `json:"type"`
	Columns []Column     `json:"columns"`
}

// Result covers every dataset column exactly once. Problems carries the
// configuration issues found while classifying; the questions that could be
// built are still present.
type Result struct {
	Questions []Question
	ByColumn  map[string]string // column name -> question name
	Problems  []error
}

// Classify assigns every column of ds to exactly one question.
func Classify(ds *dataset.Dataset, cfg *config.Config) *Result {
	c := &classifier{
		ds:       ds,
		cfg:      cfg,
		compiled: cfg.Compiled(),
		groups:   make(map[string]*group),
	}
	return c.run()
}

type group struct {
	name     string
	explicit bool
	forced   QuestionType // from pattern matching, "" if undecided
	cols     []*dataset.Column
}

type classifier struct {
	ds       *dataset.Dataset
	cfg      *config.Config
	compiled *config.Compiled

	groups map[string]*group
	order  []string // group names in first-seen column order
	list   problems.List
}

func (c *classifier) run() *Result {
	explicitOwner := c.explicitOwners()

	for _, col := range c.ds.Columns {
		name := col.Desc.Name

		// Column-level override pulls the column into its own question.
		if typ, ok := c.cfg.TypeOverrides[name]; ok {
			c.add(name, col, QuestionType(typ), false)
			continue
		}

		if qname, ok := explicitOwner[name]; ok {
			c.add(qname, col, "", true)
			continue
		}

		if c.isIDColumn(name) {
			c.add(name, col, TypeUniqueID, false)
			continue
		}

		prefix := c.longestPrefix(name)
		if prefix == "" {
			c.add(name, col, TypePassthrough, false)
			continue
		}

		patType, base := c.patternType(name)
		if base == "" {
			base = name
		}
		c.add(base, col, patType, false)
	}

	return c.assemble()
}

// explicitOwners maps column -> explicit question name and records missing
// columns as errors rather than dropping them silently.
func (c *classifier) explicitOwners() map[string]string {
	owner := make(map[string]string)
	names := make([]string, 0, len(c.cfg.QuestionGroups))
	for qname := range c.cfg.QuestionGroups {
		names = append(names, qname)
	}
	sort.Strings(names)
	for _, qname := range names {
		for _, colName := range c.cfg.QuestionGroups[qname] {
			if _, ok := c.ds.Column(colName); !ok {
				c.list.Add(&problems.MissingColumnError{Column: colName, Owner: qname})
				continue
			}
			owner[colName] = qname
		}
	}
	return owner
}

func (c *classifier) isIDColumn(name string) bool {
	for _, id := range c.cfg.IDColumns {
		if id == name {
			return true
		}
	}
	return c.compiled.ID != nil && c.compiled.ID.MatchString(name)
}

// longestPrefix returns the most specific configured prefix matching name.
func (c *classifier) longestPrefix(name string) string {
	best := ""
	for _, p := range c.cfg.QuestionPrefixes {
		if strings.HasPrefix(name, p) && len(p) > len(best) {
			best = p
		}
	}
	return best
}

// patternType classifies by column-name suffix and derives the base question
// name by stripping the matched suffix. Priority order follows the source
// conventions: multi-response, ranking, grid, single-choice.
func (c *classifier) patternType(name string) (QuestionType, string) {
	type candidate struct {
		typ QuestionType
		re  *regexp.Regexp
		sub *regexp.Regexp // pattern to strip, when different from re
	}
	candidates := []candidate{
		{TypeMultiResponse, c.compiled.MultiResponse, nil},
		{TypeRanking, c.compiled.Ranking, nil},
		{TypeGrid, c.compiled.Grid, c.compiled.BaseGrid},
		{TypeSingleChoice, c.compiled.SingleChoice, nil},
	}
	for _, cand := range candidates {
		if cand.re == nil || !cand.re.MatchString(name) {
			continue
		}
		strip := cand.re
		if cand.sub != nil {
			strip = cand.sub
		}
		base := strip.ReplaceAllString(name, "")
		return cand.typ, base
	}
	return "", ""
}

func (c *classifier) add(qname string, col *dataset.Column, typ QuestionType, explicit bool) {
	g, ok := c.groups[qname]
	if !ok {
		g = &group{name: qname, explicit: explicit}
		c.groups[qname] = g
		c.order = append(c.order, qname)
	} else if g.explicit != explicit {
		// A prefix-derived base colliding with an explicit group name would
		// split one name across two questions. Report it, then fold the
		// column into the existing group anyway: every column still lands in
		// exactly one question, even on a broken config.
		c.list.Addf(qname, "question name produced by both an explicit group and prefix grouping (column %q)", col.Desc.Name)
		if !explicit {
			g.cols = append(g.cols, col)
			return
		}
	}
	if typ != "" && g.forced == "" {
		g.forced = typ
	}
	g.cols = append(g.cols, col)
}

func (c *classifier) assemble() *Result {
	res := &Result{
		ByColumn: make(map[string]string, len(c.ds.Columns)),
	}

	for _, qname := range c.order {
		g := c.groups[qname]
		q := c.buildQuestion(g)
		res.Questions = append(res.Questions, q)
		for _, col := range q.Columns {
			res.ByColumn[col.Name] = q.Name
		}
	}

	res.Problems = c.list.All()
	return res
}

// buildQuestion decides the final type for a grouped question and splits its
// labels. Overrides by question name win over everything; otherwise metadata
// refines the name-pattern classification.
func (c *classifier) buildQuestion(g *group) Question {
	typ := c.decideType(g)

	if override, ok := c.cfg.TypeOverrides[g.name]; ok {
		typ = QuestionType(override)
	}

	q := Question{Name: g.name, Type: typ}
	for _, col := range g.cols {
		baseLabel, itemLabel := splitLabel(col.Desc.Label, typ)
		if q.Label == "" {
			q.Label = baseLabel
		}
		q.Columns = append(q.Columns, Column{
			Name:      col.Desc.Name,
			Label:     col.Desc.Label,
			ItemLabel: itemLabel,
		})
	}
	return q
}

func (c *classifier) decideType(g *group) QuestionType {
	if g.forced != "" && !g.explicit {
		// A name-pattern match stands unless metadata contradicts it below.
		if refined := c.refineByMetadata(g); refined != "" {
			return refined
		}
		return g.forced
	}
	if refined := c.refineByMetadata(g); refined != "" {
		return refined
	}
	if g.forced != "" {
		return g.forced
	}
	return TypePassthrough
}

// refineByMetadata applies the metadata rules: sibling binary columns form a
// multi-response set, a lone boolean is single-choice, an unlabelled string
// column is open text, and two-part "item - scale" labels across siblings
// mean a grid.
func (c *classifier) refineByMetadata(g *group) QuestionType {
	if len(g.cols) == 1 {
		d := g.cols[0].Desc
		if d.Kind == dataset.KindString && len(d.ValueLabels) == 0 {
			return TypeOpenText
		}
		if d.IsBinary() {
			return TypeSingleChoice
		}
		return ""
	}

	// Multi-column group: every column binary with the same label pattern
	// means multi-response.
	allBinary := true
	pattern := g.cols[0].Desc.LabelPattern()
	for _, col := range g.cols {
		d := col.Desc
		if !d.IsBinary() || d.LabelPattern() != pattern {
			allBinary = false
			break
		}
	}
	if allBinary && pattern != "" {
		return TypeMultiResponse
	}

	// Two-dimensional label structure (row item x shared scale) means grid.
	gridLabels := 0
	for _, col := range g.cols {
		if strings.Contains(col.Desc.Label, " - ") {
			gridLabels++
		}
	}
	if gridLabels == len(g.cols) && gridLabels > 0 {
		return TypeGrid
	}
	return ""
}

var (
	bracketLabelRe = regexp.MustCompile(`^(.*)(])(.*)$`)
	multiLabelRe   = regexp.MustCompile(`^(.*)( \d{1,2} = )(.*)$`)
	gridLabelRe    = regexp.MustCompile(`^(.*)( - )(.*)$`)
)

// splitLabel separates a column label into the shared base-question label
// and the per-column item label, following the label conventions of grid and
// multi-response exports.
func splitLabel(label string, typ QuestionType) (baseLabel, itemLabel string) {
	if label == "" {
		return "", ""
	}
	if strings.HasPrefix(label, "[") {
		if m := bracketLabelRe.FindStringSubmatch(label); m != nil {
			return strings.TrimSpace(m[3]), strings.TrimPrefix(m[1], "[")
		}
	}
	if typ == TypeMultiResponse || typ == TypeGrid {
		if m := multiLabelRe.FindStringSubmatch(label); m != nil {
			return strings.TrimSpace(m[1]), strings.TrimSpace(m[3])
		}
		if m := gridLabelRe.FindStringSubmatch(label); m != nil {
			return strings.TrimSpace(m[1]), strings.TrimSpace(m[3])
		}
	}
	return label, ""
}
