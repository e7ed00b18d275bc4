package exchange

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMapping(t *testing.T) {
	header := []string{"Template Name", "SECTION NAME", "Question", "Severity", "Tags", "Tag", "Notes", "Section"}

	m := DefaultMapping(header, nil)

	assert.Equal(t, "Template Name", m.Columns[RoleTemplateName])
	assert.Equal(t, "SECTION NAME", m.Columns[RoleSectionName], "first header wins")
	assert.Equal(t, "Question", m.Columns[RoleQuestionName])
	assert.Equal(t, "Severity", m.Columns[RoleSeverity])
	assert.Equal(t, []string{"Tags", "Tag"}, m.TagNames)
	assert.False(t, m.Mapped(RoleRequired))
	assert.False(t, m.Mapped(RoleType))
	assert.Len(t, m.Columns, 4)
}

func TestColumnMapping_SetRemove(t *testing.T) {
	m := NewColumnMapping()

	m.Set(RoleSectionName, "Domain", "ignored")
	m.Set(RoleTagNames, "T1", "T2")
	assert.Equal(t, []string{"Domain"}, m.Headers(RoleSectionName))
	assert.Equal(t, []string{"T1", "T2"}, m.Headers(RoleTagNames))

	m.Remove(RoleSectionName)
	m.Remove(RoleTagNames)
	assert.False(t, m.Mapped(RoleSectionName))
	assert.False(t, m.Mapped(RoleTagNames))

	m.Set(RoleQuestionName, "Q")
	m.Set(RoleQuestionName)
	assert.False(t, m.Mapped(RoleQuestionName), "empty set removes the mapping")
}

func TestColumnMapping_Index(t *testing.T) {
	header := []string{"question", "Question", "Section"}

	tests := []struct {
		name   string
		mapped string
		want   int
		ok     bool
	}{
		{"exact match preferred", "Question", 1, true},
		{"case-insensitive fallback", "SECTION", 2, true},
		{"missing header", "Severity", -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewColumnMapping()
			m.Set(RoleQuestionName, tt.mapped)
			got, ok := m.Index(RoleQuestionName, header)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Index() = %d, %v, want %d, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestColumnMapping_CloneIsDeep(t *testing.T) {
	m := NewColumnMapping()
	m.Set(RoleSectionName, "Section")
	m.Set(RoleTagNames, "Tags")

	c := m.Clone()
	c.Set(RoleSectionName, "Other")
	c.TagNames[0] = "Changed"

	assert.Equal(t, "Section", m.Columns[RoleSectionName])
	assert.Equal(t, "Tags", m.TagNames[0])
}

func TestLoadLookup(t *testing.T) {
	doc := `
sectionName:
  - Domain
  - "  Control Area "
questionName: [Control]
`
	lookup, err := LoadLookup(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, RoleSectionName, lookup["domain"])
	assert.Equal(t, RoleSectionName, lookup["control area"])
	assert.Equal(t, RoleQuestionName, lookup["control"])
	assert.Equal(t, RoleSeverity, lookup["severity"], "defaults are kept")
	_, polluted := DefaultLookup["domain"]
	assert.False(t, polluted, "DefaultLookup must not be modified")

	m := DefaultMapping([]string{"Domain", "Control"}, lookup)
	assert.Equal(t, "Domain", m.Columns[RoleSectionName])
	assert.Equal(t, "Control", m.Columns[RoleQuestionName])
}

func TestLoadLookup_Errors(t *testing.T) {
	_, err := LoadLookup(strings.NewReader("colour: [Red]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown role "colour"`)

	_, err = LoadLookup(strings.NewReader("sectionName: {bad"))
	require.Error(t, err)

	lookup, err := LoadLookup(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, len(DefaultLookup), len(lookup))
}
