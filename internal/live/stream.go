package live

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrSubscription marks a failure delivered on a live stream.
var ErrSubscription = errors.New("subscription failed")

// Envelope kinds.
const (
	KindSnapshot = "snapshot"
	KindError    = "error"
)

// Envelope is the wire frame shared by every transport. Items always carries
// the full collection; consumers replace their state with it.
type Envelope struct {
	Path  string          `json:"path"`
	Kind  string          `json:"kind"`
	Items json.RawMessage `json:"items,omitempty"`
	Error string          `json:"error,omitempty"`
}

// SnapshotEnvelope encodes a full snapshot of items for path.
func SnapshotEnvelope(path string, items any) ([]byte, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return json.Marshal(Envelope{Path: path, Kind: KindSnapshot, Items: raw})
}

// ErrorEnvelope encodes a stream failure for path.
func ErrorEnvelope(path string, cause error) []byte {
	msg := "subscription failed"
	if cause != nil {
		msg = cause.Error()
	}
	payload, _ := json.Marshal(Envelope{Path: path, Kind: KindError, Error: msg})
	return payload
}

// Event is one delivery on a Stream: either a snapshot or an error.
type Event[T any] struct {
	Items []T
	Err   error
}

// Decode turns an envelope payload into a typed event.
func Decode[T any](payload []byte) Event[T] {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Event[T]{Err: fmt.Errorf("%w: decode frame: %v", ErrSubscription, err)}
	}
	if env.Kind == KindError {
		return Event[T]{Err: fmt.Errorf("%w: %s", ErrSubscription, env.Error)}
	}
	items := make([]T, 0)
	if len(env.Items) > 0 && string(env.Items) != "null" {
		if err := json.Unmarshal(env.Items, &items); err != nil {
			return Event[T]{Err: fmt.Errorf("%w: decode items: %v", ErrSubscription, err)}
		}
	}
	return Event[T]{Items: items}
}

// Stream is a cancellable sequence of snapshot events. Events is closed after
// Close or when the source ends.
type Stream[T any] interface {
	Events() <-chan Event[T]
	Close()
}

// Pipe is an in-process Subscriber holding at most one undelivered payload.
// A newer snapshot replaces an older one the consumer has not read yet.
type Pipe struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
	done   chan struct{}
}

// NewPipe returns an open pipe.
func NewPipe() *Pipe {
	return &Pipe{ch: make(chan []byte, 1), done: make(chan struct{})}
}

// Send stores payload, dropping any snapshot still waiting to be read.
func (p *Pipe) Send(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return io.EOF
	}
	select {
	case p.ch <- payload:
	default:
		select {
		case <-p.ch:
		default:
		}
		p.ch <- payload
	}
	return nil
}

// Payloads exposes pending payloads.
func (p *Pipe) Payloads() <-chan []byte {
	return p.ch
}

// Done is closed when the pipe is closed.
func (p *Pipe) Done() <-chan struct{} {
	return p.done
}

// Close stops accepting payloads.
func (p *Pipe) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.done)
}

type pipeStream[T any] struct {
	pipe    *Pipe
	events  chan Event[T]
	release func()
	once    sync.Once
}

// NewStream decodes the payloads of pipe into typed events. release runs once
// on Close, before the pipe shuts.
func NewStream[T any](pipe *Pipe, release func()) Stream[T] {
	s := &pipeStream[T]{pipe: pipe, events: make(chan Event[T]), release: release}
	go s.run()
	return s
}

func (s *pipeStream[T]) run() {
	defer close(s.events)
	for {
		select {
		case <-s.pipe.Done():
			return
		case payload := <-s.pipe.Payloads():
			ev := Decode[T](payload)
			select {
			case s.events <- ev:
			case <-s.pipe.Done():
				return
			}
		}
	}
}

func (s *pipeStream[T]) Events() <-chan Event[T] {
	return s.events
}

func (s *pipeStream[T]) Close() {
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
		s.pipe.Close()
	})
}
