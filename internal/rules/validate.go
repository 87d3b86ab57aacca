package rules

import (
	"fmt"
)

// ColumnKinds tells the validator which columns the dataset declares and
// whether each one is numeric.
type ColumnKinds map[string]bool // name -> isNumeric

// Validate checks every column reference in expr against the declared
// columns and confirms literal kinds agree with the column kind. Returned
// errors carry the column name so the caller can wrap them with the owning
// rule.
func Validate(expr Expr, kinds ColumnKinds) []error {
	var errs []error
	walk(expr, func(e Expr) {
		switch c := e.(type) {
		case *compareExpr:
			errs = append(errs, checkRef(c.column, kinds, []Value{c.lit})...)
		case *inExpr:
			errs = append(errs, checkRef(c.column, kinds, c.items)...)
		case *betweenExpr:
			isNum, ok := kinds[c.column]
			if !ok {
				errs = append(errs, &unknownColumnError{Column: c.column})
			} else if !isNum {
				errs = append(errs, fmt.Errorf("range condition on non-numeric column %q", c.column))
			}
		}
	})
	return errs
}

// unknownColumnError marks a reference to an undeclared column. The category
// builder converts it into a MissingColumnError with the rule name attached.
type unknownColumnError struct {
	Column string
}

func (e *unknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q", e.Column)
}

// UnknownColumn extracts the column name if err is an unknown-column error.
func UnknownColumn(err error) (string, bool) {
	if u, ok := err.(*unknownColumnError); ok {
		return u.Column, true
	}
	return "", false
}

func checkRef(column string, kinds ColumnKinds, lits []Value) []error {
	isNum, ok := kinds[column]
	if !ok {
		return []error{&unknownColumnError{Column: column}}
	}
	var errs []error
	for _, lit := range lits {
		if lit.IsStr && isNum {
			errs = append(errs, fmt.Errorf("string literal %q compared against numeric column %q", lit.Str, column))
		}
		if !lit.IsStr && !isNum {
			errs = append(errs, fmt.Errorf("numeric literal %g compared against string column %q", lit.Num, column))
		}
	}
	return errs
}

func walk(expr Expr, visit func(Expr)) {
	visit(expr)
	switch e := expr.(type) {
	case *binaryExpr:
		walk(e.left, visit)
		walk(e.right, visit)
	case *notExpr:
		walk(e.inner, visit)
	}
}
