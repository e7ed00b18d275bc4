package exchange

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateColumn(t *testing.T) {
	table := &Table{
		Header: []string{"Section Name", "Question", "Required", "Type", "Severity", "Knowledge Base"},
		Rows: [][]string{
			{"S", "q1", "yes", "text", "low", ""},
			{"S", "q2", "No", "BOOLEAN", "High", ""},
			{"S", "", "maybe", "checkbox", "urgent", "kb"},
			{"S", "", "", "", "", ""},
		},
	}

	tests := []struct {
		name string
		role Role
		want string
	}{
		{
			name: "first empty cell wins",
			role: RoleQuestionName,
			want: "Question has an empty value at row number 4, column number 2.",
		},
		{
			name: "required enum",
			role: RoleRequired,
			want: `Required has an invalid value "maybe" at row number 4, column number 3; allowed values: yes, no.`,
		},
		{
			name: "type enum",
			role: RoleType,
			want: `Type has an invalid value "checkbox" at row number 4, column number 4`,
		},
		{
			name: "severity enum",
			role: RoleSeverity,
			want: `Severity has an invalid value "urgent" at row number 4, column number 5; allowed values: low, medium, high.`,
		},
		{
			name: "knowledge base may be empty",
			role: RoleKnowledgeBase,
			want: "",
		},
		{
			name: "valid section column",
			role: RoleSectionName,
			want: "",
		},
	}

	m := DefaultMapping(table.Header, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateColumn(tt.role, table, m)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.True(t, strings.HasPrefix(got, tt.want), "ValidateColumn() = %q, want prefix %q", got, tt.want)
		})
	}
}

func TestValidateColumn_RowNumberCountsHeader(t *testing.T) {
	table := &Table{
		Header: []string{"Section Name", "Question"},
		Rows: [][]string{
			{"S", "q1"},
			{"S", "q2"},
			{"", "q3"},
			{"", "q4"},
		},
	}

	got := ValidateColumn(RoleSectionName, table, DefaultMapping(table.Header, nil))

	assert.Contains(t, got, "row number 4")
	assert.Contains(t, got, "column number 1")
}

func TestValidateColumn_Mapping(t *testing.T) {
	table := &Table{Header: []string{"Question"}, Rows: [][]string{{"q"}}}

	m := DefaultMapping(table.Header, nil)
	assert.Equal(t, "Section Name column is required.", ValidateColumn(RoleSectionName, table, m))
	assert.Empty(t, ValidateColumn(RoleSeverity, table, m), "optional roles may stay unmapped")

	m.Set(RoleSectionName, "Domain")
	assert.Equal(t, `Section Name column "Domain" was not found in the file.`, ValidateColumn(RoleSectionName, table, m))
}

func TestValidateColumn_ShortRowsAreEmpty(t *testing.T) {
	table := &Table{
		Header: []string{"Section Name", "Question"},
		Rows:   [][]string{{"S", "q"}, {"S"}},
	}

	got := ValidateColumn(RoleQuestionName, table, DefaultMapping(table.Header, nil))

	assert.Equal(t, "Question has an empty value at row number 3, column number 2.", got)
}

func TestValidateColumns(t *testing.T) {
	table := &Table{Header: []string{"Question"}, Rows: [][]string{{"q"}}}

	errs := ValidateColumns(table, DefaultMapping(table.Header, nil))

	assert.True(t, errs.Blocking())
	assert.Equal(t, []string{"Section Name column is required."}, errs.Messages())

	table.Header = append(table.Header, "Section")
	table.Rows[0] = append(table.Rows[0], "S")
	errs = ValidateColumns(table, DefaultMapping(table.Header, nil))
	assert.False(t, errs.Blocking())
	assert.Len(t, errs, len(Roles))
}
