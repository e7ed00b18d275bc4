package exchange

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/assessx/internal/assessment"
)

// DocumentError is a structural problem found by ValidateTemplate.
type DocumentError struct {
	Code    string
	Message string
}

func (e *DocumentError) Error() string {
	return e.Message
}

// Is matches document errors by code so callers can compare against the
// sentinels below even when the message names an entity.
func (e *DocumentError) Is(target error) bool {
	var t *DocumentError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrTemplateNameRequired = &DocumentError{Code: "DOC001", Message: "Template name is required."}
	ErrSectionRequired      = &DocumentError{Code: "DOC002", Message: "At-least one section is required."}
	ErrInvalidTemplateData  = &DocumentError{Code: "DOC003", Message: "Template data is invalid."}
	ErrOptionValueMissing   = &DocumentError{Code: "DOC004", Message: "Option value is missing."}
	ErrOptionScoreInvalid   = &DocumentError{Code: "DOC005", Message: "Option score must be a number."}
)

// ValidateTemplate runs the document pass and returns the first violation,
// or nil when t may be imported.
func ValidateTemplate(t assessment.Template) error {
	if t.Name == "" {
		return ErrTemplateNameRequired
	}
	if len(t.Sections) == 0 {
		return ErrSectionRequired
	}

	for _, s := range t.Sections {
		if s.Name == "" || len(s.Questions) == 0 {
			return ErrInvalidTemplateData
		}
		for _, q := range s.Questions {
			if q.Name == "" || !q.Severity.Valid() || !q.Type.Valid() || len(q.Options) == 0 {
				return ErrInvalidTemplateData
			}
			for _, o := range q.Options {
				if o.Value == nil {
					return &DocumentError{
						Code:    ErrOptionValueMissing.Code,
						Message: fmt.Sprintf("Option value is missing for question %q in section %q.", q.Name, s.Name),
					}
				}
				if !o.HasNumericScore() {
					return &DocumentError{
						Code:    ErrOptionScoreInvalid.Code,
						Message: fmt.Sprintf("Option score must be a number for question %q in section %q.", q.Name, s.Name),
					}
				}
			}
		}
	}
	return nil
}
