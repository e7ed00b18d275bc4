package wizard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/JonMunkholm/assessx/internal/assessment"
	"github.com/JonMunkholm/assessx/internal/catalog"
	"github.com/JonMunkholm/assessx/internal/exchange"
	"github.com/JonMunkholm/assessx/internal/importer"
	"github.com/JonMunkholm/assessx/internal/requests"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const twoTemplates = `Template Name,Section Name,Question,Required,Type,Severity,Value,Score
Vendor Risk,Security,Do you encrypt data at rest?,yes,boolean,high,,
Vendor Risk,Security,Do you have an incident plan?,no,text,medium,,
Privacy,Data,Do you sell personal data?,yes,boolean,low,,
`

const singleTemplate = `Section Name,Question
General,What is your company name?
`

// gatedCatalog wraps a MemoryCatalog and holds every search until the test
// releases it.
type gatedCatalog struct {
	*catalog.MemoryCatalog

	mu       sync.Mutex
	searches []string
	release  chan struct{}
	fail     error
}

func newGatedCatalog() *gatedCatalog {
	return &gatedCatalog{
		MemoryCatalog: catalog.NewMemoryCatalog(),
		release:       make(chan struct{}),
	}
}

func (c *gatedCatalog) SearchByName(ctx context.Context, partial string) ([]catalog.Record, error) {
	c.mu.Lock()
	c.searches = append(c.searches, partial)
	fail := c.fail
	c.mu.Unlock()

	select {
	case <-c.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if fail != nil {
		return nil, fail
	}
	return c.MemoryCatalog.SearchByName(ctx, partial)
}

func (c *gatedCatalog) Searches() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.searches...)
}

func newTestManager(t *testing.T, cat catalog.Catalog, debounce time.Duration) *Manager {
	t.Helper()
	checks := requests.NewStore[[]catalog.Record](nil)
	creates := requests.NewStore[catalog.Record](nil)
	imp := importer.New(cat, creates, time.Millisecond, nil)
	m := NewManager(cat, checks, imp, Options{Debounce: debounce}, nil)

	t.Cleanup(func() {
		m.Shutdown()
		checks.Close()
		creates.Close()
	})
	return m
}

func openCSV(t *testing.T, m *Manager, data string) *Session {
	t.Helper()
	s, err := m.Open("upload.csv", strings.NewReader(data))
	require.NoError(t, err)
	return s
}

// settle polls s until no name check is in flight.
func settle(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.Poll(time.Now())
		for _, st := range s.Snapshot().Names {
			if st.Validate || st.Validating {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
}

func nameByID(s *Session, id string) NameState {
	for _, st := range s.Snapshot().Names {
		if st.ID == id {
			return st
		}
	}
	return NameState{}
}

func TestSession_OpenGroupsTemplates(t *testing.T) {
	m := newTestManager(t, catalog.NewMemoryCatalog(), 0)
	s := openCSV(t, m, twoTemplates)

	snap := s.Snapshot()
	require.Len(t, snap.Groups, 2)
	assert.Equal(t, "Vendor Risk", snap.Groups[0].Key)
	assert.Equal(t, 2, snap.Groups[0].Rows)
	assert.Equal(t, "Privacy", snap.Groups[1].Key)
	assert.Empty(t, snap.ColumnErrors)

	require.Len(t, snap.Names, 2)
	assert.Equal(t, exchange.GroupID(0), snap.Names[0].ID)
	assert.Equal(t, "Vendor Risk", snap.Names[0].InitialName)
	assert.True(t, snap.Names[0].Validate)
	assert.False(t, snap.CanProceed, "names are unchecked")
}

func TestSession_NameChecks(t *testing.T) {
	cat := catalog.NewMemoryCatalog()
	_, err := cat.Create(context.Background(), assessment.Template{Name: "privacy"})
	require.NoError(t, err)

	m := newTestManager(t, cat, 0)
	s := openCSV(t, m, twoTemplates)
	settle(t, s)

	assert.True(t, nameByID(s, exchange.GroupID(0)).Valid)
	taken := nameByID(s, exchange.GroupID(1))
	assert.False(t, taken.Valid)
	assert.Equal(t, "invalid", taken.Status())
	assert.Contains(t, s.Blockers(), `Template name "Privacy" already exists.`)

	_, err = s.EditName(exchange.GroupID(1), "Privacy 2", time.Now())
	require.NoError(t, err)
	assert.Contains(t, s.Blockers(), `Template name "Privacy 2" has not been checked yet.`)

	settle(t, s)
	assert.True(t, nameByID(s, exchange.GroupID(1)).Valid)
	assert.Empty(t, s.Blockers())
	assert.True(t, s.CanProceed())
}

func TestSession_Debounce(t *testing.T) {
	cat := newGatedCatalog()
	close(cat.release)

	m := newTestManager(t, cat, 300*time.Millisecond)
	s := openCSV(t, m, twoTemplates)
	settle(t, s)
	before := len(cat.Searches())

	edited := time.Now()
	_, err := s.EditName(exchange.GroupID(0), "Vendor Risk v2", edited)
	require.NoError(t, err)

	s.Poll(edited.Add(100 * time.Millisecond))
	st := nameByID(s, exchange.GroupID(0))
	assert.True(t, st.Validate)
	assert.False(t, st.Validating, "check issued inside the debounce window")

	s.Poll(edited.Add(400 * time.Millisecond))
	assert.True(t, nameByID(s, exchange.GroupID(0)).Validating)

	settle(t, s)
	searches := cat.Searches()
	require.Len(t, searches, before+1)
	assert.Equal(t, "Vendor Risk v2", searches[len(searches)-1])
}

func TestSession_EditSupersedesCheck(t *testing.T) {
	cat := newGatedCatalog()
	m := newTestManager(t, cat, 0)
	s := openCSV(t, m, singleTemplate)

	_, err := s.EditName(exchange.SingleTemplateID, "First", time.Now())
	require.NoError(t, err)
	s.Poll(time.Now())
	require.True(t, nameByID(s, exchange.SingleTemplateID).Validating)

	// A template named First appears, then the user renames before the
	// check for First returns.
	_, err = cat.Create(context.Background(), assessment.Template{Name: "First"})
	require.NoError(t, err)
	st, err := s.EditName(exchange.SingleTemplateID, "Second", time.Now())
	require.NoError(t, err)
	assert.False(t, st.Validating)
	assert.Equal(t, uint64(2), st.Generation)

	close(cat.release)
	settle(t, s)

	got := nameByID(s, exchange.SingleTemplateID)
	assert.Equal(t, "Second", got.CurrentName)
	assert.True(t, got.Valid, "the result for the superseded name must not land")
}

func TestSession_CheckFailure(t *testing.T) {
	cat := newGatedCatalog()
	cat.fail = errors.New("connection refused")
	close(cat.release)

	m := newTestManager(t, cat, 0)
	s := openCSV(t, m, twoTemplates)
	settle(t, s)

	st := nameByID(s, exchange.GroupID(0))
	assert.False(t, st.Valid)
	assert.Equal(t, "connection refused", st.Error)
	assert.Contains(t, s.Blockers(), `Template name "Vendor Risk" could not be checked: connection refused`)

	cat.mu.Lock()
	cat.fail = nil
	cat.mu.Unlock()

	_, err := s.EditName(exchange.GroupID(0), "Vendor Risk", time.Now())
	require.NoError(t, err)
	settle(t, s)
	assert.True(t, nameByID(s, exchange.GroupID(0)).Valid)
}

func TestSession_Blockers(t *testing.T) {
	tests := []struct {
		name string
		data string
		edit map[string]string
		want string
	}{
		{
			name: "single template without a name",
			data: singleTemplate,
			want: "Template name is required.",
		},
		{
			name: "duplicate names in file",
			data: twoTemplates,
			edit: map[string]string{exchange.GroupID(1): "vendor risk"},
			want: `Duplicate template name "Vendor Risk" in file.`,
		},
		{
			name: "no templates",
			data: "Template Name,Section Name,Question\n,General,Anything?\n",
			want: "No templates were found in the file.",
		},
		{
			name: "missing required column",
			data: "Template Name,Question\nA,Anything?\n",
			want: "Section Name column is required.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, catalog.NewMemoryCatalog(), 0)
			s := openCSV(t, m, tt.data)
			for id, name := range tt.edit {
				_, err := s.EditName(id, name, time.Now())
				require.NoError(t, err)
			}
			settle(t, s)

			assert.Contains(t, s.Blockers(), tt.want)
			assert.False(t, s.CanProceed())

			_, err := m.StartImport(s.ID)
			assert.ErrorIs(t, err, ErrImportBlocked)
		})
	}
}

func TestSession_MappingChange(t *testing.T) {
	m := newTestManager(t, catalog.NewMemoryCatalog(), 0)
	s := openCSV(t, m, twoTemplates)
	settle(t, s)

	msg, err := s.SetMapping(exchange.RoleSeverity, "Type")
	require.NoError(t, err)
	assert.Contains(t, msg, "invalid value")

	// Other roles keep their result; names are untouched.
	snap := s.Snapshot()
	assert.Len(t, snap.ColumnErrors, 1)
	assert.True(t, nameByID(s, exchange.GroupID(0)).Valid)

	msg, err = s.RemoveMapping(exchange.RoleSeverity)
	require.NoError(t, err)
	assert.Empty(t, msg)
	assert.Empty(t, s.Snapshot().ColumnErrors)
}

func TestSession_TemplateNameRemapResetsNames(t *testing.T) {
	m := newTestManager(t, catalog.NewMemoryCatalog(), 0)
	s := openCSV(t, m, twoTemplates)

	_, err := s.EditName(exchange.GroupID(0), "Edited", time.Now())
	require.NoError(t, err)

	_, err = s.RemoveMapping(exchange.RoleTemplateName)
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap.Names, 1)
	assert.Equal(t, exchange.SingleTemplateID, snap.Names[0].ID)
	assert.Empty(t, snap.Names[0].CurrentName)

	_, err = s.SetMapping(exchange.RoleTemplateName, "Template Name")
	require.NoError(t, err)
	snap = s.Snapshot()
	require.Len(t, snap.Names, 2)
	assert.Equal(t, "Vendor Risk", snap.Names[0].CurrentName, "edits do not survive a remap")
}

func TestSession_UnknownEntry(t *testing.T) {
	m := newTestManager(t, catalog.NewMemoryCatalog(), 0)
	s := openCSV(t, m, twoTemplates)

	_, err := s.EditName("template-9", "x", time.Now())
	assert.ErrorIs(t, err, ErrEntryNotFound)
	_, err = s.BlurName("template-9")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestSession_BlurFocus(t *testing.T) {
	cat := catalog.NewMemoryCatalog()
	_, err := cat.Create(context.Background(), assessment.Template{Name: "Privacy"})
	require.NoError(t, err)

	m := newTestManager(t, cat, 0)
	s := openCSV(t, m, twoTemplates)
	settle(t, s)

	st, err := s.BlurName(exchange.GroupID(1))
	require.NoError(t, err)
	assert.True(t, st.ShowError())

	st, err = s.FocusName(exchange.GroupID(1))
	require.NoError(t, err)
	assert.False(t, st.ShowError())
}

func TestSession_CloseDropsChecks(t *testing.T) {
	cat := newGatedCatalog()
	checks := requests.NewStore[[]catalog.Record](nil)
	creates := requests.NewStore[catalog.Record](nil)
	m := NewManager(cat, checks, importer.New(cat, creates, time.Millisecond, nil), Options{Debounce: 0}, nil)
	t.Cleanup(func() {
		m.Shutdown()
		checks.Close()
		creates.Close()
	})

	s := openCSV(t, m, twoTemplates)
	s.Poll(time.Now())
	require.Equal(t, 2, checks.Len())

	require.NoError(t, m.Close(s.ID))
	assert.True(t, s.Closed())
	assert.Zero(t, checks.Len())
	assert.Empty(t, s.Snapshot().Names)

	_, err := m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.EditName(exchange.GroupID(0), "x", time.Now())
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, m.Close(s.ID), ErrSessionNotFound)

	close(cat.release)
}

func TestSession_Import(t *testing.T) {
	cat := catalog.NewMemoryCatalog()
	m := newTestManager(t, cat, 0)
	s := openCSV(t, m, twoTemplates)
	settle(t, s)

	run, err := m.StartImport(s.ID)
	require.NoError(t, err)

	p, err := run.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, p.Created)
	require.Len(t, p.Items, 2)
	assert.Equal(t, "Vendor Risk", p.Items[0].Name)
	assert.Equal(t, "Privacy", p.Items[1].Name)

	records, err := cat.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	vendor := records[0].Template
	require.Len(t, vendor.Sections, 1)
	assert.Equal(t, "Security", vendor.Sections[0].Name)
	assert.Len(t, vendor.Sections[0].Questions, 2)

	_, err = m.StartImport(s.ID)
	assert.ErrorIs(t, err, ErrImportStarted)
	assert.NotNil(t, s.Snapshot().Import)
}

func TestManager_TickExpiresIdleSessions(t *testing.T) {
	cat := catalog.NewMemoryCatalog()
	checks := requests.NewStore[[]catalog.Record](nil)
	creates := requests.NewStore[catalog.Record](nil)
	m := NewManager(cat, checks, importer.New(cat, creates, time.Millisecond, nil), Options{SessionTTL: time.Minute}, nil)
	t.Cleanup(func() {
		m.Shutdown()
		checks.Close()
		creates.Close()
	})

	s := openCSV(t, m, twoTemplates)
	m.Tick(time.Now())
	assert.Equal(t, 1, m.Len())

	m.Tick(time.Now().Add(2 * time.Minute))
	assert.Zero(t, m.Len())
	assert.True(t, s.Closed())
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	m := newTestManager(t, catalog.NewMemoryCatalog(), 0)
	s := openCSV(t, m, twoTemplates)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	// The loop checks names without explicit polls.
	require.Eventually(t, func() bool {
		return nameByID(s, exchange.GroupID(0)).Valid
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Zero(t, m.Len())
}

func TestManager_OpenRejectsBadFile(t *testing.T) {
	m := newTestManager(t, catalog.NewMemoryCatalog(), 0)

	_, err := m.Open("upload.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, exchange.ErrEmptyFile)
	_, err = m.Open("upload.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, exchange.ErrUnsupportedFormat)
	assert.Zero(t, m.Len())
}
