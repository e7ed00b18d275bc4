// Package assessment defines the assessment template domain model:
// Template → Section → Question → Option.
//
// The model is shared by the tabular exchange engine, the import wizard and
// the catalog. It carries no behavior beyond enumeration parsing and the
// type-based default options applied when a question has none.
package assessment

import (
	"math"
	"strings"
)

// Severity is the impact level of a question.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Severities lists the valid severities in display order.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh}

// QuestionType determines how a question is answered.
type QuestionType string

const (
	TypeText         QuestionType = "text"
	TypeTextarea     QuestionType = "textarea"
	TypeNumber       QuestionType = "number"
	TypeDate         QuestionType = "date"
	TypeBoolean      QuestionType = "boolean"
	TypeSingleSelect QuestionType = "single-select"
	TypeMultiSelect  QuestionType = "multi-select"
)

// QuestionTypes is the known question type enumeration.
var QuestionTypes = []QuestionType{
	TypeText,
	TypeTextarea,
	TypeNumber,
	TypeDate,
	TypeBoolean,
	TypeSingleSelect,
	TypeMultiSelect,
}

// Defaults applied when the corresponding column is not mapped.
const (
	DefaultType     = TypeText
	DefaultSeverity = SeverityMedium
)

// Template is the top-level assessment document.
type Template struct {
	ID       string    `json:"id,omitempty"`
	Name     string    `json:"name"`
	Tags     []string  `json:"tags"`
	KBs      []string  `json:"kbs"`
	Sections []Section `json:"sections"`
}

// Section is a named, ordered group of questions.
type Section struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// Question is a single assessable item.
type Question struct {
	Name     string       `json:"name"`
	Required bool         `json:"required"`
	Type     QuestionType `json:"type"`
	Severity Severity     `json:"severity"`
	Options  []Option     `json:"options"`
	Number   int          `json:"number"`
}

// Option is one selectable answer. Both fields are pointers so that
// documents decoded from JSON can be checked for missing values.
type Option struct {
	Value *string  `json:"value"`
	Score *float64 `json:"score"`
}

// NewOption returns an option with both fields set.
func NewOption(value string, score float64) Option {
	return Option{Value: &value, Score: &score}
}

// ValueString returns the option value, or "" when it is not set.
func (o Option) ValueString() string {
	if o.Value == nil {
		return ""
	}
	return *o.Value
}

// HasNumericScore reports whether the score is set to a finite number.
func (o Option) HasNumericScore() bool {
	return o.Score != nil && !math.IsNaN(*o.Score) && !math.IsInf(*o.Score, 0)
}

// ParseSeverity matches s case-insensitively against the known severities.
func ParseSeverity(s string) (Severity, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, sev := range Severities {
		if string(sev) == s {
			return sev, true
		}
	}
	return "", false
}

// ParseQuestionType matches s case-insensitively against the known types.
func ParseQuestionType(s string) (QuestionType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, qt := range QuestionTypes {
		if string(qt) == s {
			return qt, true
		}
	}
	return "", false
}

// Valid reports whether sev is one of the known severities.
func (sev Severity) Valid() bool {
	for _, known := range Severities {
		if sev == known {
			return true
		}
	}
	return false
}

// Valid reports whether qt is one of the known question types.
func (qt QuestionType) Valid() bool {
	for _, known := range QuestionTypes {
		if qt == known {
			return true
		}
	}
	return false
}

// DefaultOptions returns the options synthesized for a question of type qt
// that has none of its own.
func DefaultOptions(qt QuestionType) []Option {
	switch qt {
	case TypeBoolean:
		return []Option{NewOption("yes", 0), NewOption("no", 0)}
	case TypeSingleSelect, TypeMultiSelect:
		return []Option{NewOption("default", 0)}
	default:
		return []Option{NewOption("", 0)}
	}
}

// QuestionCount returns the number of questions across all sections.
func (t Template) QuestionCount() int {
	n := 0
	for _, s := range t.Sections {
		n += len(s.Questions)
	}
	return n
}
