// Package wizard drives the multi-step import flow for uploaded files:
// column mapping, the column pass, per-template name checks against the
// catalog and the hand-off to the importer.
//
// Name state changes go through Reduce only. Sessions never wait on the
// catalog: a poll loop submits searches to a request store and picks up
// their results on a later tick.
package wizard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/assessx/internal/catalog"
	"github.com/JonMunkholm/assessx/internal/exchange"
	"github.com/JonMunkholm/assessx/internal/importer"
	"github.com/JonMunkholm/assessx/internal/metrics"
	"github.com/JonMunkholm/assessx/internal/requests"
)

// Defaults for unset Options fields. A zero Debounce checks names on the
// next poll; a negative one selects DefaultDebounce.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultDebounce     = 300 * time.Millisecond
	DefaultSessionTTL   = 30 * time.Minute
)

// Options configure a Manager.
type Options struct {
	PollInterval time.Duration
	Debounce     time.Duration
	SessionTTL   time.Duration
	Lookup       exchange.Lookup
}

// Manager owns every open wizard session.
type Manager struct {
	opts Options
	deps deps

	// importCtx bounds the polling loops of import runs.
	importCtx    context.Context
	cancelImport context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager. checks runs name searches and imp runs
// imports; both are shared by every session.
func NewManager(cat catalog.Catalog, checks *requests.Store[[]catalog.Record], imp *importer.Orchestrator, opts Options, logger *slog.Logger) *Manager {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Debounce < 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.Lookup == nil {
		opts.Lookup = exchange.DefaultLookup
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts: opts,
		deps: deps{
			catalog:    cat,
			checks:     checks,
			importer:   imp,
			debounce:   opts.Debounce,
			baseLogger: logger,
		},
		importCtx:    ctx,
		cancelImport: cancel,
		sessions:     make(map[string]*Session),
	}
}

// Open reads an uploaded file and starts a session for it.
func (m *Manager) Open(fileName string, r io.Reader) (*Session, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	t, err := exchange.ReadTable(fileName, r)
	if err != nil {
		metrics.ObserveUpload(format, metrics.ResultError)
		return nil, fmt.Errorf("open %s: %w", fileName, err)
	}
	metrics.ObserveUpload(format, metrics.ResultOK)
	return m.OpenTable(fileName, t), nil
}

// OpenTable starts a session for an already parsed table.
func (m *Manager) OpenTable(fileName string, t *exchange.Table) *Session {
	s := newSession(uuid.NewString(), fileName, t, m.opts.Lookup, m.deps, time.Now())

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	metrics.WizardOpened()
	s.logger.Info("wizard opened", "rows", len(t.Rows), "templates", len(s.order))
	return s
}

// Get returns the open session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close closes and forgets the session with id.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	metrics.WizardClosed()
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StartImport starts the import of session id. The run outlives the
// request that started it and stops only on Shutdown.
func (m *Manager) StartImport(id string) (*importer.Run, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return s.StartImport(m.importCtx)
}

func (m *Manager) snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Tick polls every session and closes those idle longer than the TTL.
// Sessions with a running import are never expired.
func (m *Manager) Tick(now time.Time) {
	for _, s := range m.snapshot() {
		if now.Sub(s.idleSince()) > m.opts.SessionTTL && !importRunning(s) {
			s.logger.Info("wizard expired", "idle", now.Sub(s.idleSince()))
			_ = m.Close(s.ID)
			continue
		}
		s.Poll(now)
	}
}

func importRunning(s *Session) bool {
	run := s.Run()
	if run == nil {
		return false
	}
	select {
	case <-run.Done():
		return false
	default:
		return true
	}
}

// Run polls sessions every PollInterval until ctx is done, then closes
// every session.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			return nil
		case now := <-ticker.C:
			m.Tick(now)
		}
	}
}

// Shutdown closes every session and stops import polling loops.
func (m *Manager) Shutdown() {
	for _, s := range m.snapshot() {
		_ = m.Close(s.ID)
	}
	m.cancelImport()
}
