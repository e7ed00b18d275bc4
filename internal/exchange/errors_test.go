package exchange

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"unmapped required column", errors.New("Section Name column is required."), "MAP001"},
		{"mapped header missing", errors.New(`Question column "Q" was not found in the file.`), "MAP002"},
		{"empty cell", errors.New("Question has an empty value at row number 4, column number 2."), "CELL001"},
		{"enum cell", errors.New(`Severity has an invalid value "x" at row number 2, column number 5`), "CELL002"},
		{"document error keeps code", ErrSectionRequired, "DOC002"},
		{"wrapped document error", fmt.Errorf("template 2: %w", ErrOptionScoreInvalid), "DOC005"},
		{"name collision", errors.New("create: template name already exists"), "NAME001"},
		{"bad csv", fmt.Errorf("invalid csv: %w", errors.New("bare quote")), "FILE002"},
		{"empty file", ErrEmptyFile, "FILE005"},
		{"unsupported", ErrUnsupportedFormat, "FILE006"},
		{"transport", errors.New("dial tcp: connection refused"), "TRN001"},
		{"case insensitive", errors.New("RATE LIMIT exceeded"), "RATE001"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestMapError_DocumentMessage(t *testing.T) {
	got := MapError(ErrTemplateNameRequired)
	if got.Message != "Template name is required." {
		t.Errorf("Message = %q, want %q", got.Message, "Template name is required.")
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrEmptyFile)
	want := "The uploaded file is empty (Code: FILE005). Please upload a file with a header row"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true, want false")
	}
	if !IsUserFacing(ErrEmptyFile) {
		t.Error("IsUserFacing(ErrEmptyFile) = false, want true")
	}
	if IsUserFacing(errors.New("boom")) {
		t.Error("IsUserFacing(boom) = true, want false")
	}
}

func TestUserError(t *testing.T) {
	if NewUserError(nil) != nil {
		t.Fatal("NewUserError(nil) should be nil")
	}
	ue := NewUserError(ErrEmptyFile)
	if !errors.Is(ue, ErrEmptyFile) {
		t.Error("UserError should unwrap to the technical error")
	}
	if ue.Error() != "The uploaded file is empty" {
		t.Errorf("Error() = %q", ue.Error())
	}
}
