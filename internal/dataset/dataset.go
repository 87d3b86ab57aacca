// Package dataset holds the in-memory tabular model the rest of the service
// works against: ordered typed columns plus the per-column metadata a
// statistical-file loader supplies (labels, value labels, missing codes).
package dataset

import (
	"fmt"
	"sort"
)

// Kind is the declared data kind of a column.
type Kind int

const (
	KindNumeric Kind = iota
	KindString
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Descriptor is the metadata for a single raw column.
type Descriptor struct {
	Name         string
	Kind         Kind
	Label        string
	ValueLabels  map[float64]string
	MissingCodes map[float64]bool
}

// IsBinary reports whether the value-label mapping describes a two-valued
// (boolean-like) column, e.g. 0="No", 1="Yes".
func (d Descriptor) IsBinary() bool {
	return len(d.ValueLabels) == 2
}

// LabelPattern returns the sorted label values joined, used to compare
// sibling columns for a shared binary pattern.
func (d Descriptor) LabelPattern() string {
	keys := make([]float64, 0, len(d.ValueLabels))
	for k := range d.ValueLabels {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	pattern := ""
	for _, k := range keys {
		pattern += fmt.Sprintf("%g=%s;", k, d.ValueLabels[k])
	}
	return pattern
}

// Column is a typed value array plus its descriptor. Numeric columns use
// Nums, string and date columns use Strs. Missing marks values absent at
// load time (empty cells, file-level missing markers).
type Column struct {
	Desc    Descriptor
	Nums    []float64
	Strs    []string
	Missing []bool
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.Desc.Kind == KindNumeric {
		return len(c.Nums)
	}
	return len(c.Strs)
}

// Known reports whether row i carries a usable value: present and not a
// declared missing code. Extra codes (e.g. the configured global missing
// codes) can be supplied by the caller.
func (c *Column) Known(i int, extraCodes map[float64]bool) bool {
	if i < len(c.Missing) && c.Missing[i] {
		return false
	}
	if c.Desc.Kind != KindNumeric {
		return c.Strs[i] != ""
	}
	v := c.Nums[i]
	if c.Desc.MissingCodes[v] || extraCodes[v] {
		return false
	}
	return true
}

// Dataset is an immutable snapshot of survey responses. Column order matches
// declaration order in the source.
type Dataset struct {
	Name    string
	Columns []*Column

	byName map[string]*Column
	rows   int
}

// New assembles a Dataset and verifies all columns share one length.
func New(name string, cols []*Column) (*Dataset, error) {
	ds := &Dataset{
		Name:    name,
		Columns: cols,
		byName:  make(map[string]*Column, len(cols)),
	}
	for i, c := range cols {
		if _, dup := ds.byName[c.Desc.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Desc.Name)
		}
		ds.byName[c.Desc.Name] = c
		if i == 0 {
			ds.rows = c.Len()
		} else if c.Len() != ds.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d",
				c.Desc.Name, c.Len(), ds.rows)
		}
	}
	return ds, nil
}

// Rows returns the row count.
func (ds *Dataset) Rows() int { return ds.rows }

// Column looks a column up by name.
func (ds *Dataset) Column(name string) (*Column, bool) {
	c, ok := ds.byName[name]
	return c, ok
}

// ColumnNames returns names in declaration order.
func (ds *Dataset) ColumnNames() []string {
	names := make([]string, len(ds.Columns))
	for i, c := range ds.Columns {
		names[i] = c.Desc.Name
	}
	return names
}

// Descriptors returns the descriptors in declaration order.
func (ds *Dataset) Descriptors() []Descriptor {
	out := make([]Descriptor, len(ds.Columns))
	for i, c := range ds.Columns {
		out[i] = c.Desc
	}
	return out
}
