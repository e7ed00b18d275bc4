package exchange

import (
	"errors"
	"math"
	"testing"

	"github.com/JonMunkholm/assessx/internal/assessment"
)

func validTemplate() assessment.Template {
	return assessment.Template{
		Name: "Vendor Review",
		Sections: []assessment.Section{{
			Name: "Access",
			Questions: []assessment.Question{{
				Name:     "MFA enforced?",
				Type:     assessment.TypeBoolean,
				Severity: assessment.SeverityHigh,
				Options:  assessment.DefaultOptions(assessment.TypeBoolean),
				Number:   1,
			}},
		}},
	}
}

func TestValidateTemplate(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name    string
		mutate  func(*assessment.Template)
		wantErr error
		wantMsg string
	}{
		{
			name:   "valid",
			mutate: func(*assessment.Template) {},
		},
		{
			name:    "missing name",
			mutate:  func(t *assessment.Template) { t.Name = "" },
			wantErr: ErrTemplateNameRequired,
			wantMsg: "Template name is required.",
		},
		{
			name:    "no sections",
			mutate:  func(t *assessment.Template) { t.Sections = nil },
			wantErr: ErrSectionRequired,
			wantMsg: "At-least one section is required.",
		},
		{
			name:    "section without name",
			mutate:  func(t *assessment.Template) { t.Sections[0].Name = "" },
			wantErr: ErrInvalidTemplateData,
		},
		{
			name:    "section without questions",
			mutate:  func(t *assessment.Template) { t.Sections[0].Questions = nil },
			wantErr: ErrInvalidTemplateData,
		},
		{
			name:    "unknown severity",
			mutate:  func(t *assessment.Template) { t.Sections[0].Questions[0].Severity = "critical" },
			wantErr: ErrInvalidTemplateData,
		},
		{
			name:    "unknown type",
			mutate:  func(t *assessment.Template) { t.Sections[0].Questions[0].Type = "checkbox" },
			wantErr: ErrInvalidTemplateData,
		},
		{
			name:    "no options",
			mutate:  func(t *assessment.Template) { t.Sections[0].Questions[0].Options = nil },
			wantErr: ErrInvalidTemplateData,
		},
		{
			name:    "option value missing",
			mutate:  func(t *assessment.Template) { t.Sections[0].Questions[0].Options[1].Value = nil },
			wantErr: ErrOptionValueMissing,
			wantMsg: `Option value is missing for question "MFA enforced?" in section "Access".`,
		},
		{
			name:    "option score not a number",
			mutate:  func(t *assessment.Template) { t.Sections[0].Questions[0].Options[0].Score = &nan },
			wantErr: ErrOptionScoreInvalid,
			wantMsg: `Option score must be a number for question "MFA enforced?" in section "Access".`,
		},
		{
			name: "first violation wins",
			mutate: func(t *assessment.Template) {
				t.Name = ""
				t.Sections = nil
			},
			wantErr: ErrTemplateNameRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := validTemplate()
			tt.mutate(&tmpl)

			err := ValidateTemplate(tmpl)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateTemplate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateTemplate() = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && err.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}
