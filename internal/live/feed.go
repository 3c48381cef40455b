package live

import (
	"context"
	"sync"
)

// Feed carries change notifications between the writers and the
// subscription service. Topics are collection paths.
type Feed interface {
	Publish(ctx context.Context, topic string) error
	// Listen blocks, invoking fn for every topic, until ctx is done.
	Listen(ctx context.Context, fn func(topic string)) error
}

const localFeedBuffer = 64

// LocalFeed delivers notifications inside one process.
type LocalFeed struct {
	mu        sync.RWMutex
	listeners map[int]chan string
	next      int
}

// NewLocalFeed returns an in-process feed.
func NewLocalFeed() *LocalFeed {
	return &LocalFeed{listeners: make(map[int]chan string)}
}

// Publish hands topic to every listener.
func (f *LocalFeed) Publish(ctx context.Context, topic string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.listeners {
		select {
		case ch <- topic:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Listen implements Feed.
func (f *LocalFeed) Listen(ctx context.Context, fn func(topic string)) error {
	ch := make(chan string, localFeedBuffer)
	f.mu.Lock()
	id := f.next
	f.next++
	f.listeners[id] = ch
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case topic := <-ch:
			fn(topic)
		}
	}
}
