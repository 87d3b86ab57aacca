// Package rules implements the closed predicate language category rule
// bodies are written in: comparisons, range and set membership, and
// and/or/not, evaluated with three-valued logic so missing inputs surface as
// Unknown instead of silently becoming false.
//
// Bodies are parsed once and validated against the dataset's declared
// columns before any row is touched.
package rules

// Tri is a three-valued boolean. Unknown arises only from missing inputs.
type Tri uint8

const (
	False Tri = iota
	True
	Unknown
)

func (t Tri) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// And combines with Kleene semantics: False dominates, Unknown otherwise
// propagates.
func (t Tri) And(o Tri) Tri {
	if t == False || o == False {
		return False
	}
	if t == Unknown || o == Unknown {
		return Unknown
	}
	return True
}

// Or combines with Kleene semantics: True dominates.
func (t Tri) Or(o Tri) Tri {
	if t == True || o == True {
		return True
	}
	if t == Unknown || o == Unknown {
		return Unknown
	}
	return False
}

// Not negates; Unknown stays Unknown.
func (t Tri) Not() Tri {
	switch t {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

// Value is a cell handed to the evaluator: numeric or string.
type Value struct {
	Num   float64
	Str   string
	IsStr bool
}

// Row supplies cell values during evaluation. known=false means the value is
// missing (absent or a declared missing code) for that row.
type Row interface {
	Value(column string) (val Value, known bool)
}

// Expr is a parsed predicate.
type Expr interface {
	// Eval computes the three-valued result for one row.
	Eval(row Row) Tri
	// Columns adds every referenced column name to set.
	Columns(set map[string]bool)
}
