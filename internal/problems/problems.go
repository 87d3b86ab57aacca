// Package problems defines the error taxonomy shared by the classifier and
// the category builder, plus a collector so a whole ruleset can be diagnosed
// in one pass instead of failing on the first bad entry.
package problems

import (
	"fmt"
	"strings"
)

// ConfigError reports a malformed or ambiguous prefix, override, or rule
// definition. Subject identifies the offending entry (rule name, prefix,
// column).
type ConfigError struct {
	Subject string
	Detail  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error (%s): %s", e.Subject, e.Detail)
}

// MissingColumnError reports a rule or group referencing a column that is
// not present in the dataset. Never treated as "evaluates false".
type MissingColumnError struct {
	Column string
	Owner  string // rule or question that referenced the column
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %q referenced by %q", e.Column, e.Owner)
}

// DataConsistencyError reports a data-dependent contradiction found during
// evaluation, e.g. two mutually exclusive categories both true for one row.
type DataConsistencyError struct {
	Row   int
	Group string
	Rules []string
}

func (e *DataConsistencyError) Error() string {
	return fmt.Sprintf("row %d: rules %s in group %q are both true",
		e.Row, strings.Join(e.Rules, ", "), e.Group)
}

// List accumulates problems across an entire build. Callers keep going after
// each failure so the analyst sees every configuration issue at once.
type List struct {
	errs []error
}

// Add records a problem. Nil errors are ignored.
func (l *List) Add(err error) {
	if err != nil {
		l.errs = append(l.errs, err)
	}
}

// Addf records a ConfigError built from a format string.
func (l *List) Addf(subject, format string, args ...any) {
	l.errs = append(l.errs, &ConfigError{Subject: subject, Detail: fmt.Sprintf(format, args...)})
}

// Empty reports whether any problem was recorded.
func (l *List) Empty() bool {
	return len(l.errs) == 0
}

// All returns the recorded problems in insertion order.
func (l *List) All() []error {
	return l.errs
}

// Err returns nil when the list is empty, otherwise an error whose message
// enumerates every recorded problem.
func (l *List) Err() error {
	if len(l.errs) == 0 {
		return nil
	}
	msgs := make([]string, len(l.errs))
	for i, e := range l.errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%d problem(s): %s", len(l.errs), strings.Join(msgs, "; "))
}
