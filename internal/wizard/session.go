package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/assessx/internal/catalog"
	"github.com/JonMunkholm/assessx/internal/exchange"
	"github.com/JonMunkholm/assessx/internal/importer"
	"github.com/JonMunkholm/assessx/internal/metrics"
	"github.com/JonMunkholm/assessx/internal/requests"
)

var (
	ErrSessionNotFound = errors.New("wizard session not found")
	ErrSessionClosed   = errors.New("wizard session closed")
	ErrEntryNotFound   = errors.New("template name entry not found")
	ErrImportBlocked   = errors.New("import is blocked")
	ErrImportStarted   = errors.New("import already running or finished")
)

// errCheckLost marks a check whose request vanished from the store.
var errCheckLost = errors.New("name check was cleared before it completed")

type inflight struct {
	generation uint64
	name       string
}

// deps are shared by every session of a Manager.
type deps struct {
	catalog    catalog.Catalog
	checks     *requests.Store[[]catalog.Record]
	importer   *importer.Orchestrator
	debounce   time.Duration
	baseLogger *slog.Logger
}

// Session is the wizard state for one uploaded file: the table, its column
// mapping, the column pass result per role and one NameState per template.
// All methods are safe for concurrent use.
type Session struct {
	ID        string
	FileName  string
	CreatedAt time.Time

	deps
	logger *slog.Logger

	mu           sync.Mutex
	table        *exchange.Table
	mapping      exchange.ColumnMapping
	columnErrors exchange.ColumnErrors
	groups       []exchange.RowGroup
	names        NameStates
	order        []string
	inflight     map[string]inflight
	run          *importer.Run
	lastActive   time.Time
	closed       bool
}

func newSession(id, fileName string, t *exchange.Table, lookup exchange.Lookup, d deps, now time.Time) *Session {
	s := &Session{
		ID:         id,
		FileName:   fileName,
		CreatedAt:  now,
		deps:       d,
		logger:     d.baseLogger.With("wizard_id", id, "file", fileName),
		table:      t,
		mapping:    exchange.DefaultMapping(t.Header, lookup),
		names:      NameStates{},
		inflight:   make(map[string]inflight),
		lastActive: now,
	}
	s.columnErrors = exchange.ValidateColumns(t, s.mapping)
	s.resetNames()
	return s
}

func (s *Session) checkKey(entryID string) string {
	return s.ID + "/" + entryID
}

// resetNames rebuilds the name entries from the current grouping. Every
// outstanding check is cleared first.
func (s *Session) resetNames() {
	s.clearChecks()
	s.names = Reduce(s.names, Action{Kind: ActionClear}, time.Time{})

	s.groups = exchange.GroupRows(s.table, s.mapping)
	s.order = s.order[:0]
	for _, g := range s.groups {
		s.names = Reduce(s.names, Action{Kind: ActionAdd, ID: g.ID, Name: g.Key}, time.Time{})
		s.order = append(s.order, g.ID)
	}
}

func (s *Session) clearChecks() {
	for id := range s.inflight {
		s.checks.Clear(s.checkKey(id))
		metrics.ObserveNameCheck(metrics.ResultStale)
	}
	clear(s.inflight)
}

func (s *Session) touch(now time.Time) {
	s.lastActive = now
}

// SetMapping maps role to headers and reruns the column pass for that role.
// It returns the role's new column error, "" when valid.
func (s *Session) SetMapping(role exchange.Role, headers ...string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	s.touch(time.Now())

	s.mapping.Set(role, headers...)
	return s.remapped(role), nil
}

// RemoveMapping unmaps role and reruns the column pass for that role.
func (s *Session) RemoveMapping(role exchange.Role) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	s.touch(time.Now())

	s.mapping.Remove(role)
	return s.remapped(role), nil
}

func (s *Session) remapped(role exchange.Role) string {
	msg := exchange.ValidateColumn(role, s.table, s.mapping)
	s.columnErrors[role] = msg
	if role == exchange.RoleTemplateName {
		s.resetNames()
	}
	s.logger.Debug("mapping changed", "role", role, "headers", s.mapping.Headers(role), "error", msg)
	return msg
}

// EditName sets the current name of an entry. Any check in flight for the
// entry is superseded.
func (s *Session) EditName(entryID, name string, now time.Time) (NameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NameState{}, ErrSessionClosed
	}
	if _, ok := s.names[entryID]; !ok {
		return NameState{}, ErrEntryNotFound
	}
	s.touch(now)

	if _, ok := s.inflight[entryID]; ok {
		s.checks.Clear(s.checkKey(entryID))
		delete(s.inflight, entryID)
		metrics.ObserveNameCheck(metrics.ResultStale)
	}
	s.names = Reduce(s.names, Action{Kind: ActionEdit, ID: entryID, Name: strings.TrimSpace(name)}, now)
	return s.names[entryID], nil
}

// BlurName and FocusName toggle whether an entry's error is shown.
func (s *Session) BlurName(entryID string) (NameState, error) {
	return s.simple(entryID, ActionBlur)
}

func (s *Session) FocusName(entryID string) (NameState, error) {
	return s.simple(entryID, ActionFocus)
}

func (s *Session) simple(entryID string, kind ActionKind) (NameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NameState{}, ErrSessionClosed
	}
	if _, ok := s.names[entryID]; !ok {
		return NameState{}, ErrEntryNotFound
	}
	s.touch(time.Now())
	s.names = Reduce(s.names, Action{Kind: kind, ID: entryID}, time.Time{})
	return s.names[entryID], nil
}

// Poll observes finished name checks and issues new ones for entries that
// need a check and have been left alone for the debounce window.
func (s *Session) Poll(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for _, id := range s.order {
		if s.names[id].Validating {
			s.observe(id)
		}
	}

	for _, id := range s.order {
		st := s.names[id]
		if !st.Validate || st.Validating || now.Sub(st.EditedAt) < s.debounce {
			continue
		}
		s.submit(st)
	}
}

func (s *Session) observe(id string) {
	key := s.checkKey(id)
	res, ok := s.checks.Status(key)
	inf := s.inflight[id]
	if ok && res.Loading {
		return
	}
	s.checks.Clear(key)
	delete(s.inflight, id)

	if !ok {
		s.names = Reduce(s.names, Action{Kind: ActionCheckFailed, ID: id, Generation: inf.generation, Err: errCheckLost}, time.Time{})
		return
	}
	if res.Err != nil {
		metrics.ObserveNameCheck(metrics.ResultError)
		s.logger.Warn("name check failed", "entry", id, "name", inf.name, "error", res.Err)
		s.names = Reduce(s.names, Action{Kind: ActionCheckFailed, ID: id, Generation: inf.generation, Err: res.Err}, time.Time{})
		return
	}

	exists := catalog.NameTaken(res.Data, inf.name)
	before := s.names[id]
	s.names = Reduce(s.names, Action{Kind: ActionCheckFinished, ID: id, Generation: inf.generation, Exists: exists}, time.Time{})

	switch {
	case s.names[id] == before:
		metrics.ObserveNameCheck(metrics.ResultStale)
	case exists:
		metrics.ObserveNameCheck(metrics.ResultTaken)
	default:
		metrics.ObserveNameCheck(metrics.ResultOK)
	}
}

func (s *Session) submit(st NameState) {
	name, cat := st.CurrentName, s.catalog
	err := s.checks.Submit(s.checkKey(st.ID), func(ctx context.Context) ([]catalog.Record, error) {
		return cat.SearchByName(ctx, name)
	})
	if err != nil {
		s.logger.Warn("name check not submitted", "entry", st.ID, "error", err)
		return
	}
	s.inflight[st.ID] = inflight{generation: st.Generation, name: name}
	s.names = Reduce(s.names, Action{Kind: ActionCheckStarted, ID: st.ID, Generation: st.Generation}, time.Time{})
}

// Blockers lists every reason the import cannot start yet.
func (s *Session) Blockers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockers()
}

// CanProceed reports whether the import may start.
func (s *Session) CanProceed() bool {
	return len(s.Blockers()) == 0
}

func (s *Session) blockers() []string {
	reasons := s.columnErrors.Messages()

	if len(s.order) == 0 {
		reasons = append(reasons, "No templates were found in the file.")
	}

	seen := make(map[string]int)
	for _, id := range s.order {
		st := s.names[id]
		switch {
		case st.Validating:
			reasons = append(reasons, fmt.Sprintf("Checking template name %q.", st.CurrentName))
		case st.Validate:
			reasons = append(reasons, fmt.Sprintf("Template name %q has not been checked yet.", st.CurrentName))
		case st.CurrentName != "" && !st.Valid && st.Error != "":
			reasons = append(reasons, fmt.Sprintf("Template name %q could not be checked: %s", st.CurrentName, st.Error))
		case st.CurrentName != "" && !st.Valid:
			reasons = append(reasons, fmt.Sprintf("Template name %q already exists.", st.CurrentName))
		}
		if st.CurrentName != "" {
			seen[catalog.NormalizeName(st.CurrentName)]++
		}
	}

	if len(s.order) == 1 && s.order[0] == exchange.SingleTemplateID && s.names[s.order[0]].CurrentName == "" {
		reasons = append(reasons, "Template name is required.")
	}

	reported := make(map[string]bool)
	for _, id := range s.order {
		name := s.names[id].CurrentName
		key := catalog.NormalizeName(name)
		if seen[key] > 1 && !reported[key] {
			reported[key] = true
			reasons = append(reasons, fmt.Sprintf("Duplicate template name %q in file.", name))
		}
	}
	return reasons
}

// StartImport builds, validates and imports every template in file order.
// Templates failing the document pass are withheld. ctx bounds the
// import's polling loop and should outlive the calling request.
func (s *Session) StartImport(ctx context.Context) (*importer.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.run != nil {
		return nil, ErrImportStarted
	}
	if reasons := s.blockers(); len(reasons) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrImportBlocked, strings.Join(reasons, " "))
	}
	s.touch(time.Now())

	names := make(map[string]string, len(s.names))
	for id, st := range s.names {
		names[id] = st.CurrentName
	}

	prepared := exchange.Prepare(s.table, s.mapping, names)
	items := make([]importer.Item, len(prepared))
	for i, p := range prepared {
		items[i] = importer.Item{GroupID: p.GroupID, Template: p.Template, Err: p.Err}
	}

	s.run = s.importer.Start(ctx, items)
	s.logger.Info("import requested", "run_id", s.run.ID(), "templates", len(items))
	return s.run, nil
}

// Run returns the session's import run, or nil before StartImport.
func (s *Session) Run() *importer.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// Close drops all transient state and clears every outstanding name check
// by entry key so late results cannot land. A running import continues.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	for _, id := range s.order {
		s.checks.Clear(s.checkKey(id))
	}
	clear(s.inflight)
	s.names = Reduce(s.names, Action{Kind: ActionClear}, time.Time{})
	s.columnErrors = exchange.ColumnErrors{}
	s.order = nil
	s.groups = nil
	s.logger.Info("wizard closed")
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// GroupSummary describes one extracted template.
type GroupSummary struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Rows int    `json:"rows"`
}

// Snapshot is the JSON view of a session.
type Snapshot struct {
	ID           string                 `json:"id"`
	FileName     string                 `json:"fileName"`
	Header       []string               `json:"header"`
	Rows         int                    `json:"rows"`
	Mapping      exchange.ColumnMapping `json:"mapping"`
	ColumnErrors map[string]string      `json:"columnErrors"`
	Groups       []GroupSummary         `json:"groups"`
	Names        []NameState            `json:"names"`
	Blockers     []string               `json:"blockers"`
	CanProceed   bool                   `json:"canProceed"`
	Import       *importer.Progress     `json:"import,omitempty"`
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:           s.ID,
		FileName:     s.FileName,
		Header:       s.table.Header,
		Rows:         len(s.table.Rows),
		Mapping:      s.mapping.Clone(),
		ColumnErrors: make(map[string]string, len(s.columnErrors)),
		Groups:       make([]GroupSummary, 0, len(s.groups)),
		Names:        make([]NameState, 0, len(s.order)),
		Blockers:     s.blockers(),
	}
	for role, msg := range s.columnErrors {
		if msg != "" {
			snap.ColumnErrors[string(role)] = msg
		}
	}
	for _, g := range s.groups {
		snap.Groups = append(snap.Groups, GroupSummary{ID: g.ID, Key: g.Key, Rows: len(g.Rows)})
	}
	for _, id := range s.order {
		snap.Names = append(snap.Names, s.names[id])
	}
	snap.CanProceed = len(snap.Blockers) == 0 && !s.closed
	if s.run != nil {
		p := s.run.Progress()
		snap.Import = &p
	}
	return snap
}
