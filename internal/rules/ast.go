package rules

// binaryExpr is "left and right" or "left or right".
type binaryExpr struct {
	op    string // "and" | "or"
	left  Expr
	right Expr
}

func (e *binaryExpr) Eval(row Row) Tri {
	l := e.left.Eval(row)
	if e.op == "and" {
		if l == False {
			return False
		}
		return l.And(e.right.Eval(row))
	}
	if l == True {
		return True
	}
	return l.Or(e.right.Eval(row))
}

func (e *binaryExpr) Columns(set map[string]bool) {
	e.left.Columns(set)
	e.right.Columns(set)
}

type notExpr struct {
	inner Expr
}

func (e *notExpr) Eval(row Row) Tri {
	return e.inner.Eval(row).Not()
}

func (e *notExpr) Columns(set map[string]bool) {
	e.inner.Columns(set)
}

// compareExpr is "column op literal".
type compareExpr struct {
	column string
	op     string // "==", "!=", "<", "<=", ">", ">="
	lit    Value
}

func (e *compareExpr) Eval(row Row) Tri {
	v, known := row.Value(e.column)
	if !known {
		return Unknown
	}
	if v.IsStr != e.lit.IsStr {
		// Kind mismatch is caught at validation time; at runtime it can only
		// mean a mixed column, which never matches.
		if e.op == "!=" {
			return True
		}
		return False
	}
	var cmp int
	if v.IsStr {
		switch {
		case v.Str < e.lit.Str:
			cmp = -1
		case v.Str > e.lit.Str:
			cmp = 1
		}
	} else {
		switch {
		case v.Num < e.lit.Num:
			cmp = -1
		case v.Num > e.lit.Num:
			cmp = 1
		}
	}
	var ok bool
	switch e.op {
	case "==":
		ok = cmp == 0
	case "!=":
		ok = cmp != 0
	case "<":
		ok = cmp < 0
	case "<=":
		ok = cmp <= 0
	case ">":
		ok = cmp > 0
	case ">=":
		ok = cmp >= 0
	}
	if ok {
		return True
	}
	return False
}

func (e *compareExpr) Columns(set map[string]bool) {
	set[e.column] = true
}

// inExpr is "column in (a, b, c)".
type inExpr struct {
	column string
	items  []Value
}

func (e *inExpr) Eval(row Row) Tri {
	v, known := row.Value(e.column)
	if !known {
		return Unknown
	}
	for _, item := range e.items {
		if item.IsStr != v.IsStr {
			continue
		}
		if v.IsStr && v.Str == item.Str {
			return True
		}
		if !v.IsStr && v.Num == item.Num {
			return True
		}
	}
	return False
}

func (e *inExpr) Columns(set map[string]bool) {
	set[e.column] = true
}

// betweenExpr is "column between lo and hi" (inclusive, numeric only).
type betweenExpr struct {
	column string
	lo, hi float64
}

func (e *betweenExpr) Eval(row Row) Tri {
	v, known := row.Value(e.column)
	if !known {
		return Unknown
	}
	if v.IsStr {
		return False
	}
	if v.Num >= e.lo && v.Num <= e.hi {
		return True
	}
	return False
}

func (e *betweenExpr) Columns(set map[string]bool) {
	set[e.column] = true
}
