package exchange

// validate.go holds the column pass: per-role checks run against the raw
// table every time a mapping changes. Messages embed 1-based coordinates
// where the row number counts the header row, so data row i is reported as
// row number i+2.

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/assessx/internal/assessment"
)

// allowedValues returns the case-insensitive enumeration enforced for role,
// or nil when the role accepts free text.
func allowedValues(role Role) []string {
	switch role {
	case RoleRequired:
		return []string{"yes", "no"}
	case RoleType:
		out := make([]string, len(assessment.QuestionTypes))
		for i, qt := range assessment.QuestionTypes {
			out[i] = string(qt)
		}
		return out
	case RoleSeverity:
		out := make([]string, len(assessment.Severities))
		for i, s := range assessment.Severities {
			out[i] = string(s)
		}
		return out
	}
	return nil
}

// allowsEmpty reports whether empty cells are acceptable for role. Tags and
// knowledge bases are list columns, and an exported template with no KBs
// leaves the column blank.
func allowsEmpty(role Role) bool {
	return role == RoleTagNames || role == RoleKnowledgeBase || role == RoleSectionDescription
}

// ValidateColumn runs the column pass for one role and returns the first
// problem found, or "" when the column is acceptable.
func ValidateColumn(role Role, t *Table, m ColumnMapping) string {
	if !m.Mapped(role) {
		if role.Required() {
			return fmt.Sprintf("%s column is required.", role.Label())
		}
		return ""
	}

	var cols []int
	for _, h := range m.Headers(role) {
		i := headerPosition(t.Header, h)
		if i < 0 {
			return fmt.Sprintf("%s column %q was not found in the file.", role.Label(), h)
		}
		cols = append(cols, i)
	}

	allowed := allowedValues(role)

	for dataIdx, row := range t.Rows {
		if isEmptyRow(row) {
			continue
		}
		for _, col := range cols {
			v := cell(row, col)
			if v == "" {
				if allowsEmpty(role) {
					continue
				}
				return fmt.Sprintf("%s has an empty value at row number %d, column number %d.",
					role.Label(), dataIdx+2, col+1)
			}
			if allowed != nil && !containsFold(allowed, v) {
				return fmt.Sprintf("%s has an invalid value %q at row number %d, column number %d; allowed values: %s.",
					role.Label(), v, dataIdx+2, col+1, strings.Join(allowed, ", "))
			}
		}
	}
	return ""
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// ColumnErrors holds the column pass result for every tracked role. A role
// with an empty message is valid.
type ColumnErrors map[Role]string

// ValidateColumns runs the column pass for every role.
func ValidateColumns(t *Table, m ColumnMapping) ColumnErrors {
	errs := make(ColumnErrors, len(Roles))
	for _, r := range Roles {
		errs[r] = ValidateColumn(r, t, m)
	}
	return errs
}

// Blocking reports whether any tracked role has a message.
func (e ColumnErrors) Blocking() bool {
	for _, msg := range e {
		if msg != "" {
			return true
		}
	}
	return false
}

// Messages returns the non-empty messages in role display order.
func (e ColumnErrors) Messages() []string {
	var out []string
	for _, r := range Roles {
		if msg := e[r]; msg != "" {
			out = append(out, msg)
		}
	}
	return out
}
