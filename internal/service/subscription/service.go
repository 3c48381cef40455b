package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/live"
	"github.com/Richiestixx/SiteRightApp/internal/repository"
)

const refreshTimeout = 10 * time.Second

// Service turns change notifications into full collection snapshots and fans
// them out to every subscriber of the changed path.
type Service struct {
	projects repository.ProjectRepository
	logs     repository.LogEntryRepository
	hub      *live.Hub
	feed     live.Feed
	logger   *slog.Logger
	locks    *pathLocks
}

// New constructs a subscription service.
func New(projects repository.ProjectRepository, logs repository.LogEntryRepository, hub *live.Hub, feed live.Feed, logger *slog.Logger) Service {
	initMetrics()
	return Service{
		projects: projects,
		logs:     logs,
		hub:      hub,
		feed:     feed,
		logger:   logger,
		locks:    newPathLocks(),
	}
}

// Changed signals that the collection at path was written.
func (s Service) Changed(ctx context.Context, path repository.Path) {
	if err := s.feed.Publish(ctx, path.String()); err != nil {
		s.logger.Warn("change publish failed, refreshing locally", "path", path.String(), "error", err)
		s.refresh(ctx, path)
	}
}

// Run consumes the feed until ctx is cancelled.
func (s Service) Run(ctx context.Context) error {
	return s.feed.Listen(ctx, func(topic string) {
		path, err := repository.ParsePath(topic)
		if err != nil {
			s.logger.Warn("ignoring change for unknown path", "topic", topic, "error", err)
			return
		}
		if s.hub.Count(topic) == 0 {
			return
		}
		refreshCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
		defer cancel()
		s.refresh(refreshCtx, path)
	})
}

// Check verifies the scope may observe path.
func (s Service) Check(ctx context.Context, path repository.Path) error {
	if !path.Scope.Valid() {
		return repository.ErrInvalidArgument
	}
	if path.Collection == repository.CollectionLogs {
		if _, err := s.projects.GetProject(ctx, path.Scope, path.ProjectID); err != nil {
			return err
		}
	}
	return nil
}

// Attach registers sub on path and delivers the current snapshot.
func (s Service) Attach(ctx context.Context, path repository.Path, sub live.Subscriber) {
	s.hub.Register(path.String(), sub)
	subscriberGauge.WithLabelValues(string(path.Collection)).Inc()
	s.refresh(ctx, path)
}

// Detach removes sub from path.
func (s Service) Detach(path repository.Path, sub live.Subscriber) {
	s.hub.Unregister(path.String(), sub)
	subscriberGauge.WithLabelValues(string(path.Collection)).Dec()
}

// SubscribeProjects opens an in-process stream of the scope's projects.
func (s Service) SubscribeProjects(ctx context.Context, scope repository.Scope) (live.Stream[domain.Project], error) {
	pipe, release, err := s.subscribe(ctx, scope.ProjectsPath())
	if err != nil {
		return nil, err
	}
	return live.NewStream[domain.Project](pipe, release), nil
}

// SubscribeLogs opens an in-process stream of one project's log entries.
func (s Service) SubscribeLogs(ctx context.Context, scope repository.Scope, projectID string) (live.Stream[domain.LogEntry], error) {
	pipe, release, err := s.subscribe(ctx, scope.LogsPath(projectID))
	if err != nil {
		return nil, err
	}
	return live.NewStream[domain.LogEntry](pipe, release), nil
}

func (s Service) subscribe(ctx context.Context, path repository.Path) (*live.Pipe, func(), error) {
	if err := s.Check(ctx, path); err != nil {
		return nil, nil, err
	}
	pipe := live.NewPipe()
	s.Attach(ctx, path, pipe)
	return pipe, func() { s.Detach(path, pipe) }, nil
}

// refresh loads the collection and broadcasts it. Calls for one path are
// serialized so subscribers never see an older snapshot after a newer one.
func (s Service) refresh(ctx context.Context, path repository.Path) {
	topic := path.String()
	unlock := s.locks.lock(topic)
	defer unlock()

	items, err := s.snapshot(ctx, path)
	if err != nil {
		s.logger.Error("snapshot load failed", "path", topic, "error", err)
		snapshotCounter.WithLabelValues(string(path.Collection), "error").Inc()
		s.hub.Broadcast(topic, live.ErrorEnvelope(topic, err))
		return
	}
	payload, err := live.SnapshotEnvelope(topic, items)
	if err != nil {
		s.logger.Error("snapshot encode failed", "path", topic, "error", err)
		snapshotCounter.WithLabelValues(string(path.Collection), "error").Inc()
		s.hub.Broadcast(topic, live.ErrorEnvelope(topic, err))
		return
	}
	snapshotCounter.WithLabelValues(string(path.Collection), "ok").Inc()
	s.hub.Broadcast(topic, payload)
}

func (s Service) snapshot(ctx context.Context, path repository.Path) (any, error) {
	switch path.Collection {
	case repository.CollectionProjects:
		return s.projects.ListProjects(ctx, path.Scope)
	case repository.CollectionLogs:
		return s.logs.ListLogEntries(ctx, path.Scope, path.ProjectID)
	default:
		return nil, fmt.Errorf("%w: collection %q", repository.ErrInvalidArgument, path.Collection)
	}
}
