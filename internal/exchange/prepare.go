package exchange

import "github.com/JonMunkholm/assessx/internal/assessment"

// Prepared is one built template and its document pass result.
type Prepared struct {
	GroupID  string              `json:"groupId"`
	Key      string              `json:"key"`
	Rows     int                 `json:"rows"`
	Template assessment.Template `json:"template"`
	Err      error               `json:"-"`
}

// Prepare groups, builds and validates every template in t. names overrides
// the template name per group id; groups without an entry keep their key.
func Prepare(t *Table, m ColumnMapping, names map[string]string) []Prepared {
	groups := GroupRows(t, m)
	b := NewBuilder(t.Header, m)

	seq := NewSequence(groups)
	out := make([]Prepared, 0, seq.Len())
	for {
		g, ok := seq.Next()
		if !ok {
			return out
		}
		name, ok := names[g.ID]
		if !ok {
			name = g.Key
		}
		tmpl := b.Build(g, name)
		out = append(out, Prepared{
			GroupID:  g.ID,
			Key:      g.Key,
			Rows:     len(g.Rows),
			Template: tmpl,
			Err:      ValidateTemplate(tmpl),
		})
	}
}
