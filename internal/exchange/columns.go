package exchange

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Role is the semantic meaning of a mapped column.
type Role string

const (
	RoleTemplateName       Role = "templateName"
	RoleSectionName        Role = "sectionName"
	RoleSectionDescription Role = "sectionDescription"
	RoleQuestionName       Role = "questionName"
	RoleRequired           Role = "requiredName"
	RoleType               Role = "typeName"
	RoleSeverity           Role = "severityName"
	RoleTagNames           Role = "tagNames"
	RoleKnowledgeBase      Role = "knowledgeBase"
)

// Roles lists every mappable role in wizard display order.
var Roles = []Role{
	RoleTemplateName,
	RoleSectionName,
	RoleSectionDescription,
	RoleQuestionName,
	RoleRequired,
	RoleType,
	RoleSeverity,
	RoleTagNames,
	RoleKnowledgeBase,
}

var roleLabels = map[Role]string{
	RoleTemplateName:       "Template Name",
	RoleSectionName:        "Section Name",
	RoleSectionDescription: "Section Description",
	RoleQuestionName:       "Question",
	RoleRequired:           "Required",
	RoleType:               "Type",
	RoleSeverity:           "Severity",
	RoleTagNames:           "Tags",
	RoleKnowledgeBase:      "Knowledge Base",
}

// Label returns the human-readable column name for r.
func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return string(r)
}

// Required reports whether the role must be mapped before import.
func (r Role) Required() bool {
	return r == RoleSectionName || r == RoleQuestionName
}

// Multi reports whether the role maps to a list of columns.
func (r Role) Multi() bool {
	return r == RoleTagNames
}

// ParseRole returns the role named s.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Lookup maps lowercase header text to a role.
type Lookup map[string]Role

// DefaultLookup is the built-in header text table.
var DefaultLookup = Lookup{
	"template name":       RoleTemplateName,
	"template":            RoleTemplateName,
	"section name":        RoleSectionName,
	"section":             RoleSectionName,
	"section description": RoleSectionDescription,
	"question":            RoleQuestionName,
	"question name":       RoleQuestionName,
	"required":            RoleRequired,
	"type":                RoleType,
	"question type":       RoleType,
	"severity":            RoleSeverity,
	"tags":                RoleTagNames,
	"tag":                 RoleTagNames,
	"tag name":            RoleTagNames,
	"knowledge base":      RoleKnowledgeBase,
	"kb":                  RoleKnowledgeBase,
}

// Clone returns a copy of l.
func (l Lookup) Clone() Lookup {
	out := make(Lookup, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// LoadLookup reads header aliases from YAML and merges them over
// DefaultLookup. The document maps a role name to a list of header texts:
//
//	sectionName:
//	  - Domain
//	  - Control Area
func LoadLookup(r io.Reader) (Lookup, error) {
	var aliases map[string][]string
	if err := yaml.NewDecoder(r).Decode(&aliases); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode header aliases: %w", err)
	}

	lookup := DefaultLookup.Clone()
	for name, headers := range aliases {
		role, ok := ParseRole(name)
		if !ok {
			return nil, fmt.Errorf("header aliases: unknown role %q", name)
		}
		for _, h := range headers {
			key := strings.ToLower(CleanCell(h))
			if key == "" {
				continue
			}
			lookup[key] = role
		}
	}
	return lookup, nil
}

// ColumnMapping records which header text was chosen for each role.
// Only RoleTagNames may hold more than one header.
type ColumnMapping struct {
	Columns  map[Role]string `json:"columns"`
	TagNames []string        `json:"tagNames,omitempty"`
}

// NewColumnMapping returns an empty mapping.
func NewColumnMapping() ColumnMapping {
	return ColumnMapping{Columns: make(map[Role]string)}
}

// DefaultMapping pre-populates a mapping for every header whose lowercase
// text is in lookup. The first header wins for single-column roles.
func DefaultMapping(header []string, lookup Lookup) ColumnMapping {
	if lookup == nil {
		lookup = DefaultLookup
	}

	m := NewColumnMapping()
	for _, h := range header {
		role, ok := lookup[strings.ToLower(CleanCell(h))]
		if !ok {
			continue
		}
		if role.Multi() {
			m.TagNames = append(m.TagNames, h)
			continue
		}
		if _, taken := m.Columns[role]; !taken {
			m.Columns[role] = h
		}
	}
	return m
}

// Set maps role to headers. Single-column roles use the first header only;
// an empty headers list removes the mapping.
func (m *ColumnMapping) Set(role Role, headers ...string) {
	if m.Columns == nil {
		m.Columns = make(map[Role]string)
	}
	if role.Multi() {
		m.TagNames = append([]string(nil), headers...)
		return
	}
	if len(headers) == 0 || headers[0] == "" {
		delete(m.Columns, role)
		return
	}
	m.Columns[role] = headers[0]
}

// Remove drops the mapping for role.
func (m *ColumnMapping) Remove(role Role) {
	if role.Multi() {
		m.TagNames = nil
		return
	}
	delete(m.Columns, role)
}

// Headers returns the header texts mapped to role.
func (m ColumnMapping) Headers(role Role) []string {
	if role.Multi() {
		return m.TagNames
	}
	if h, ok := m.Columns[role]; ok && h != "" {
		return []string{h}
	}
	return nil
}

// Mapped reports whether role has at least one header.
func (m ColumnMapping) Mapped(role Role) bool {
	return len(m.Headers(role)) > 0
}

// Clone returns a deep copy of m.
func (m ColumnMapping) Clone() ColumnMapping {
	out := NewColumnMapping()
	for k, v := range m.Columns {
		out.Columns[k] = v
	}
	out.TagNames = append([]string(nil), m.TagNames...)
	return out
}

// Index resolves the first header mapped to role to a column position.
func (m ColumnMapping) Index(role Role, header []string) (int, bool) {
	idx := m.Indexes(role, header)
	if len(idx) == 0 {
		return -1, false
	}
	return idx[0], true
}

// Indexes resolves every header mapped to role to a column position.
// Headers that are not present in header are skipped.
func (m ColumnMapping) Indexes(role Role, header []string) []int {
	var out []int
	for _, h := range m.Headers(role) {
		if i := headerPosition(header, h); i >= 0 {
			out = append(out, i)
		}
	}
	return out
}

// headerPosition finds name in header, preferring an exact match over a
// case-insensitive one.
func headerPosition(header []string, name string) int {
	name = CleanCell(name)
	for i, h := range header {
		if CleanCell(h) == name {
			return i
		}
	}
	for i, h := range header {
		if strings.EqualFold(CleanCell(h), name) {
			return i
		}
	}
	return -1
}
