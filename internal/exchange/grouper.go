package exchange

import "strconv"

// SingleTemplateID is the group id used when no template name column is
// mapped and the whole file becomes one template.
const SingleTemplateID = "singleTemplate"

// RowGroup is the set of data rows that make up one template.
type RowGroup struct {
	ID   string     `json:"id"`
	Key  string     `json:"key"`
	Rows [][]string `json:"-"`
}

// GroupID returns the synthetic id of the n-th (0-based) keyed group.
func GroupID(n int) string {
	return "template-" + strconv.Itoa(n)
}

// GroupRows splits the data rows of t into one group per template name,
// in first-seen order. Rows whose template name cell is empty or missing
// are dropped. When the template name role is not mapped, all rows form a
// single group with id SingleTemplateID and an empty key.
func GroupRows(t *Table, m ColumnMapping) []RowGroup {
	col, ok := m.Index(RoleTemplateName, t.Header)
	if !m.Mapped(RoleTemplateName) {
		return []RowGroup{{ID: SingleTemplateID, Rows: t.Rows}}
	}
	if !ok {
		// Mapped to a header that is not in the file: no row has a key.
		return nil
	}

	var groups []RowGroup
	index := make(map[string]int)

	for _, row := range t.Rows {
		v, present := Cell(row, col)
		key := CleanCell(v)
		if !present || key == "" {
			continue
		}
		i, seen := index[key]
		if !seen {
			i = len(groups)
			index[key] = i
			groups = append(groups, RowGroup{ID: GroupID(i), Key: key})
		}
		groups[i].Rows = append(groups[i].Rows, row)
	}
	return groups
}

// Sequence hands out row groups one at a time. It is finite and cannot be
// restarted; use NewSequence again to iterate a second time.
type Sequence struct {
	groups []RowGroup
	next   int
}

// NewSequence returns a cursor over groups.
func NewSequence(groups []RowGroup) *Sequence {
	return &Sequence{groups: groups}
}

// Next returns the next group, or false once all groups were consumed.
func (s *Sequence) Next() (RowGroup, bool) {
	if s.next >= len(s.groups) {
		return RowGroup{}, false
	}
	g := s.groups[s.next]
	s.next++
	return g, true
}

// Len returns the total number of groups, consumed or not.
func (s *Sequence) Len() int {
	return len(s.groups)
}

// Remaining returns the number of groups not yet consumed.
func (s *Sequence) Remaining() int {
	return len(s.groups) - s.next
}
