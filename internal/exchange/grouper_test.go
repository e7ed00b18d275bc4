package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupRows_ByTemplateName(t *testing.T) {
	table := &Table{
		Header: []string{"Template Name", "Section Name", "Question"},
		Rows: [][]string{
			{"A", "S1", "q1"},
			{"A", "S1", "q2"},
			{"B", "S1", "q3"},
		},
	}

	groups := GroupRows(table, DefaultMapping(table.Header, nil))

	require.Len(t, groups, 2)
	assert.Equal(t, "A", groups[0].Key)
	assert.Equal(t, GroupID(0), groups[0].ID)
	assert.Len(t, groups[0].Rows, 2)
	assert.Equal(t, "B", groups[1].Key)
	assert.Equal(t, GroupID(1), groups[1].ID)
	assert.Len(t, groups[1].Rows, 1)
}

func TestGroupRows_FirstSeenOrderAndEmptyKeys(t *testing.T) {
	table := &Table{
		Header: []string{"Template Name", "Section Name", "Question"},
		Rows: [][]string{
			{"B", "S", "q1"},
			{"", "S", "dropped"},
			{"A", "S", "q2"},
			{" B ", "S", "q3"},
			{},
		},
	}

	groups := GroupRows(table, DefaultMapping(table.Header, nil))

	require.Len(t, groups, 2)
	assert.Equal(t, "B", groups[0].Key)
	assert.Len(t, groups[0].Rows, 2)
	assert.Equal(t, "A", groups[1].Key)
}

func TestGroupRows_Unmapped(t *testing.T) {
	table := &Table{
		Header: []string{"Section Name", "Question"},
		Rows:   [][]string{{"S", "q1"}, {"S", "q2"}},
	}

	groups := GroupRows(table, DefaultMapping(table.Header, nil))

	require.Len(t, groups, 1)
	assert.Equal(t, SingleTemplateID, groups[0].ID)
	assert.Empty(t, groups[0].Key)
	assert.Len(t, groups[0].Rows, 2)
}

func TestGroupRows_MappedHeaderMissing(t *testing.T) {
	table := &Table{Header: []string{"Section Name"}, Rows: [][]string{{"S"}}}
	m := NewColumnMapping()
	m.Set(RoleTemplateName, "Template")

	assert.Empty(t, GroupRows(table, m))
}

func TestSequence_ConsumeOnce(t *testing.T) {
	seq := NewSequence([]RowGroup{{ID: "a"}, {ID: "b"}})

	assert.Equal(t, 2, seq.Len())
	g, ok := seq.Next()
	require.True(t, ok)
	assert.Equal(t, "a", g.ID)
	assert.Equal(t, 1, seq.Remaining())

	g, ok = seq.Next()
	require.True(t, ok)
	assert.Equal(t, "b", g.ID)

	_, ok = seq.Next()
	assert.False(t, ok)
	_, ok = seq.Next()
	assert.False(t, ok, "an exhausted sequence stays exhausted")
	assert.Equal(t, 2, seq.Len())
}
