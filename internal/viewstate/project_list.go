package viewstate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/live"
)

// ProjectStore is what the project list needs from the store.
type ProjectStore interface {
	SubscribeProjects(ctx context.Context) (live.Stream[domain.Project], error)
	CreateProject(ctx context.Context, name string) (domain.Project, error)
}

// ProjectList is the state behind the projects screen. It holds one live
// subscription from Open until Close.
type ProjectList struct {
	store    ProjectStore
	logger   *slog.Logger
	stream   live.Stream[domain.Project]
	projects *Collection[domain.Project]
	done     chan struct{}

	mu       sync.Mutex
	input    string
	creating bool
}

// OpenProjectList subscribes to the session's projects.
func OpenProjectList(ctx context.Context, store ProjectStore, logger *slog.Logger) (*ProjectList, error) {
	stream, err := store.SubscribeProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", live.ErrSubscription, err)
	}
	l := &ProjectList{
		store:    store,
		logger:   logger,
		stream:   stream,
		projects: NewCollection[domain.Project](),
		done:     make(chan struct{}),
	}
	go follow(stream, l.projects, l.done)
	return l, nil
}

// State returns the mirrored projects, newest first.
func (l *ProjectList) State() State[domain.Project] {
	return l.projects.State()
}

// Changes signals whenever a snapshot or error arrives.
func (l *ProjectList) Changes() <-chan struct{} {
	return l.projects.Changes()
}

// SetInput updates the new-project name field.
func (l *ProjectList) SetInput(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.input = name
}

// Input returns the new-project name field.
func (l *ProjectList) Input() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.input
}

// Create registers a project named by the input field. The field is cleared
// only when the write succeeds; the list itself updates from the stream.
func (l *ProjectList) Create(ctx context.Context) (domain.Project, error) {
	l.mu.Lock()
	if l.creating {
		l.mu.Unlock()
		return domain.Project{}, ErrBusy
	}
	name := strings.TrimSpace(l.input)
	if name == "" {
		l.mu.Unlock()
		return domain.Project{}, fmt.Errorf("%w: project name is required", domain.ErrValidation)
	}
	l.creating = true
	l.mu.Unlock()

	project, err := l.store.CreateProject(ctx, name)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.creating = false
	if err != nil {
		l.logger.Warn("project create failed", "error", err)
		return domain.Project{}, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	l.input = ""
	return project, nil
}

// Close releases the subscription and waits for the follower to stop.
func (l *ProjectList) Close() {
	l.stream.Close()
	<-l.done
}
