// Package requests is a non-blocking request store: callers submit work
// under a key and later observe its loading, error and data flags.
//
// A key holds at most one request. Submitting again under the same key, or
// clearing the key, supersedes the earlier request: its result is dropped
// when it arrives. Requests are never aborted and have no timeout; a stuck
// request keeps its key loading until it is cleared.
package requests

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("request store closed")

// ErrUnknownKey is returned by Wait for a key that holds no request.
var ErrUnknownKey = errors.New("no request for key")

// Func performs one request.
type Func[T any] func(ctx context.Context) (T, error)

// Status is the observable state of one keyed request.
type Status[T any] struct {
	Loading     bool
	Err         error
	Data        T
	SubmittedAt time.Time
	CompletedAt time.Time
}

type entry[T any] struct {
	token  uint64
	status Status[T]
	done   chan struct{}
}

// Store runs keyed requests in the background, bounded by a Limiter.
type Store[T any] struct {
	limiter *Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	entries map[string]*entry[T]
	next    uint64
	closed  bool
}

// NewStore creates a store. A nil limiter means DefaultMaxConcurrent.
func NewStore[T any](limiter *Limiter) *Store[T] {
	if limiter == nil {
		limiter = NewLimiter(DefaultMaxConcurrent, DefaultMaxWait)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store[T]{
		limiter: limiter,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry[T]),
	}
}

// Submit starts fn under key and marks the key loading. Any request
// already held by key is superseded.
func (s *Store[T]) Submit(key string, fn Func[T]) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.next++
	e := &entry[T]{
		token:  s.next,
		status: Status[T]{Loading: true, SubmittedAt: time.Now()},
		done:   make(chan struct{}),
	}
	s.entries[key] = e
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(key, e, fn)
	return nil
}

func (s *Store[T]) run(key string, e *entry[T], fn Func[T]) {
	defer s.wg.Done()
	defer close(e.done)

	var (
		data T
		err  error
	)
	if err = s.limiter.Acquire(s.ctx); err == nil {
		data, err = fn(s.ctx)
		s.limiter.Release()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entries[key]
	if !ok || cur.token != e.token {
		return
	}
	cur.status.Loading = false
	cur.status.Err = err
	cur.status.Data = data
	cur.status.CompletedAt = time.Now()
}

// Status returns the state of key and whether the key holds a request.
func (s *Store[T]) Status(key string) (Status[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Status[T]{}, false
	}
	return e.status, true
}

// Clear forgets key. A request still running under it completes into the
// void.
func (s *Store[T]) Clear(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Len returns the number of keys held.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Wait blocks until the request currently held by key completes, then
// returns its status. It returns ErrUnknownKey when key is empty and
// ctx.Err() when ctx ends first. If key was superseded while waiting, the
// superseding request's status is returned.
func (s *Store[T]) Wait(ctx context.Context, key string) (Status[T], error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return Status[T]{}, ErrUnknownKey
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return Status[T]{}, ctx.Err()
	}

	st, ok := s.Status(key)
	if !ok {
		return Status[T]{}, ErrUnknownKey
	}
	return st, nil
}

// Close cancels the context passed to running requests and waits for
// them to return.
func (s *Store[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
