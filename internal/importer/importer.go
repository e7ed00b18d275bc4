// Package importer creates the templates extracted from one uploaded file,
// one at a time, in extraction order.
//
// A run submits the create for index i to the request store, polls until
// that request stops loading, records the outcome under index i and only
// then submits index i+1. A failed create is recorded and the run moves
// on; the final result is a status per index. Templates that failed the
// document pass are withheld and never submitted.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/assessx/internal/assessment"
	"github.com/JonMunkholm/assessx/internal/catalog"
	"github.com/JonMunkholm/assessx/internal/metrics"
	"github.com/JonMunkholm/assessx/internal/requests"
)

// DefaultPollInterval is how often a run checks its in-flight create.
const DefaultPollInterval = 50 * time.Millisecond

// State is the progress of one template in a run.
type State string

const (
	StatePending  State = "pending"
	StateCreating State = "creating"
	StateCreated  State = "created"
	StateFailed   State = "failed"
	StateWithheld State = "withheld"
)

// Creator is the external create-template call.
type Creator interface {
	Create(ctx context.Context, t assessment.Template) (catalog.Record, error)
}

// Item is one template to import. A non-nil Err withholds it.
type Item struct {
	GroupID  string
	Template assessment.Template
	Err      error
}

// ItemStatus is the observable state of one index.
type ItemStatus struct {
	Index    int    `json:"index"`
	GroupID  string `json:"groupId"`
	Name     string `json:"name"`
	State    State  `json:"state"`
	RecordID string `json:"recordId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Progress is a snapshot of a run.
type Progress struct {
	RunID    string       `json:"runId"`
	Items    []ItemStatus `json:"items"`
	Current  int          `json:"current"`
	Done     bool         `json:"done"`
	Created  int          `json:"created"`
	Failed   int          `json:"failed"`
	Withheld int          `json:"withheld"`
}

// Orchestrator starts import runs.
type Orchestrator struct {
	creator      Creator
	store        *requests.Store[catalog.Record]
	pollInterval time.Duration
	logger       *slog.Logger
}

// New creates an orchestrator that issues creates through store.
func New(creator Creator, store *requests.Store[catalog.Record], pollInterval time.Duration, logger *slog.Logger) *Orchestrator {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		creator:      creator,
		store:        store,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Run is one sequential import.
type Run struct {
	id   string
	done chan struct{}

	mu        sync.Mutex
	progress  Progress
	listeners []chan Progress
}

// Start begins importing items in a background goroutine. ctx only stops
// the polling loop; a create already submitted is not aborted.
func (o *Orchestrator) Start(ctx context.Context, items []Item) *Run {
	run := &Run{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
	run.progress = Progress{RunID: run.id, Items: make([]ItemStatus, len(items))}
	for i, it := range items {
		st := ItemStatus{Index: i, GroupID: it.GroupID, Name: it.Template.Name, State: StatePending}
		if it.Err != nil {
			st.State = StateWithheld
			st.Error = it.Err.Error()
		}
		run.progress.Items[i] = st
	}

	go o.loop(ctx, run, items)
	return run
}

func (o *Orchestrator) loop(ctx context.Context, run *Run, items []Item) {
	logger := o.logger.With("run_id", run.id, "templates", len(items))
	logger.Info("import started")

	defer func() {
		run.finish()
		p := run.Progress()
		result := metrics.ResultOK
		if p.Failed > 0 || p.Withheld > 0 {
			result = metrics.ResultError
		}
		metrics.ObserveImport(result)
		logger.Info("import finished", "created", p.Created, "failed", p.Failed, "withheld", p.Withheld)
	}()

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for i, it := range items {
		run.setCurrent(i)
		if it.Err != nil {
			logger.Warn("template withheld", "index", i, "name", it.Template.Name, "error", it.Err)
			run.notify()
			continue
		}

		key := run.id + "/" + strconv.Itoa(i)
		tmpl := it.Template
		start := time.Now()
		err := o.store.Submit(key, func(ctx context.Context) (catalog.Record, error) {
			return o.creator.Create(ctx, tmpl)
		})
		if err != nil {
			run.record(i, catalog.Record{}, err)
			continue
		}
		run.update(i, func(st *ItemStatus) { st.State = StateCreating })

		st, err := o.await(ctx, ticker, key)
		o.store.Clear(key)
		if err != nil {
			// The loop was stopped; every index not yet observed stays pending.
			logger.Warn("import stopped", "index", i, "error", err)
			return
		}

		result := metrics.ResultOK
		if st.Err != nil {
			result = metrics.ResultError
			logger.Error("template create failed", "index", i, "name", tmpl.Name, "error", st.Err)
		} else {
			logger.Info("template created", "index", i, "name", tmpl.Name, "id", st.Data.ID)
		}
		metrics.ObserveCreate(result, time.Since(start))
		run.record(i, st.Data, st.Err)
	}
}

// await polls key until its request stops loading.
func (o *Orchestrator) await(ctx context.Context, ticker *time.Ticker, key string) (requests.Status[catalog.Record], error) {
	for {
		st, ok := o.store.Status(key)
		if !ok {
			return st, fmt.Errorf("request %s disappeared", key)
		}
		if !st.Loading {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ID returns the run id.
func (r *Run) ID() string {
	return r.id
}

// Done is closed once every index has been observed or the run stopped.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes or ctx ends.
func (r *Run) Wait(ctx context.Context) (Progress, error) {
	select {
	case <-r.done:
		return r.Progress(), nil
	case <-ctx.Done():
		return r.Progress(), ctx.Err()
	}
}

// Progress returns a snapshot.
func (r *Run) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *Run) snapshot() Progress {
	p := r.progress
	p.Items = append([]ItemStatus(nil), r.progress.Items...)
	return p
}

// Subscribe returns a channel that receives a snapshot after every change,
// starting with the current one. The channel is closed when the run ends.
// Slow subscribers miss intermediate snapshots, never the final one.
func (r *Run) Subscribe() (<-chan Progress, func()) {
	ch := make(chan Progress, 16)

	r.mu.Lock()
	ch <- r.snapshot()
	if r.progress.Done {
		close(ch)
		r.mu.Unlock()
		return ch, func() {}
	}
	r.listeners = append(r.listeners, ch)
	r.mu.Unlock()

	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, l := range r.listeners {
			if l == ch {
				r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

func (r *Run) setCurrent(i int) {
	r.mu.Lock()
	r.progress.Current = i
	r.mu.Unlock()
}

func (r *Run) update(i int, fn func(*ItemStatus)) {
	r.mu.Lock()
	fn(&r.progress.Items[i])
	r.mu.Unlock()
	r.notify()
}

func (r *Run) record(i int, rec catalog.Record, err error) {
	r.update(i, func(st *ItemStatus) {
		if err != nil {
			st.State = StateFailed
			st.Error = err.Error()
			return
		}
		st.State = StateCreated
		st.RecordID = rec.ID
	})
}

// notify sends the current snapshot to every listener without blocking.
func (r *Run) notify() {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.snapshot()
	for _, ch := range r.listeners {
		select {
		case ch <- p:
		default:
		}
	}
}

func (r *Run) finish() {
	r.mu.Lock()
	r.progress.Done = true
	for _, st := range r.progress.Items {
		switch st.State {
		case StateCreated:
			r.progress.Created++
		case StateFailed:
			r.progress.Failed++
		case StateWithheld:
			r.progress.Withheld++
		}
	}
	final := r.snapshot()
	listeners := r.listeners
	r.listeners = nil
	r.mu.Unlock()

	for _, ch := range listeners {
		// Make room for the final snapshot.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- final:
		default:
		}
		close(ch)
	}
	close(r.done)
}
