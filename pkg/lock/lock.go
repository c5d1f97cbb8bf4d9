// Package lock serializes mutating operations on the same offer.
//
// Operations on different offers never contend. Failure to acquire a lock is reported
// as a retryable apperr.ConcurrencyConflict.
package lock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mm1618bu/laborflow/pkg/core/apperr"
)

// Release gives a held lock back; calls after the first are no-ops
type Release func()

// Locker acquires exclusive, keyed locks
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// OfferKey is the lock key guarding every mutation of one offer
func OfferKey(offerID string) string {
	return "offer:" + offerID
}

// Local is a keyed in-process lock.
// Entries are reference counted and removed once nobody holds or waits for them.
type Local struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	timeout time.Duration
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates a keyed lock. A positive timeout bounds how long Acquire waits;
// zero waits until the context is done.
func NewLocal(timeout time.Duration) *Local {
	return &Local{
		entries: make(map[string]*localEntry),
		timeout: timeout,
	}
}

// Acquire blocks until the key is free, the timeout elapses or ctx is done
func (l *Local) Acquire(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, e)
		return nil, apperr.ConcurrencyConflict(offerIDFromKey(key), ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.unref(key, e)
		})
	}, nil
}

// Len returns the number of keys currently held or waited on
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Local) unref(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func offerIDFromKey(key string) string {
	if id, ok := strings.CutPrefix(key, "offer:"); ok {
		return id
	}
	return ""
}
