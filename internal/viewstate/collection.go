package viewstate

import (
	"errors"
	"sync"

	"github.com/Richiestixx/SiteRightApp/internal/live"
)

var (
	// ErrStoreWrite wraps a failed write to the remote store.
	ErrStoreWrite = errors.New("could not save to the store")
	// ErrBusy rejects an action while the same action is still in flight.
	ErrBusy = errors.New("already in progress")
)

// Phase is the lifecycle of a mirrored collection.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return "loading"
	}
}

// State is a point-in-time copy of a collection.
type State[T any] struct {
	Phase Phase
	Items []T
	Err   error
}

// Collection mirrors a live stream. Every snapshot replaces the items
// wholesale; nothing is ever merged.
type Collection[T any] struct {
	mu      sync.RWMutex
	state   State[T]
	changes chan struct{}
}

// NewCollection returns an empty collection in the loading phase.
func NewCollection[T any]() *Collection[T] {
	return &Collection[T]{changes: make(chan struct{}, 1)}
}

// Apply folds one stream event into the collection. An error keeps the last
// good items and moves the collection to PhaseFailed.
func (c *Collection[T]) Apply(ev live.Event[T]) {
	c.mu.Lock()
	if ev.Err != nil {
		c.state.Phase = PhaseFailed
		c.state.Err = ev.Err
	} else {
		c.state = State[T]{Phase: PhaseReady, Items: append([]T(nil), ev.Items...)}
	}
	c.mu.Unlock()

	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// State returns a copy of the current state.
func (c *Collection[T]) State() State[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.state
	s.Items = append([]T(nil), c.state.Items...)
	return s
}

// Changes signals after every Apply. Signals coalesce.
func (c *Collection[T]) Changes() <-chan struct{} {
	return c.changes
}

// follow applies every event of stream until it ends and then closes done.
func follow[T any](stream live.Stream[T], col *Collection[T], done chan<- struct{}) {
	defer close(done)
	for ev := range stream.Events() {
		col.Apply(ev)
	}
}
