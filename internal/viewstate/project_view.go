package viewstate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/live"
)

// LogStore is what a project screen needs from the store.
type LogStore interface {
	LogWriter
	SubscribeLogs(ctx context.Context, projectID string) (live.Stream[domain.LogEntry], error)
	CompleteLog(ctx context.Context, projectID, logID, notes string) (domain.LogEntry, error)
}

// ReportExporter renders and shares a project report.
type ReportExporter interface {
	Export(ctx context.Context, project domain.Project, entries []domain.LogEntry) (string, error)
}

// EntryTranscriber appends a video transcription to an entry's notes.
type EntryTranscriber interface {
	TranscribeEntry(ctx context.Context, entry domain.LogEntry) (*domain.LogEntry, error)
}

// Reel is one playable video in the reels viewer.
type Reel struct {
	LogID    string
	Notes    string
	VideoURI string
}

// ProjectView is the state behind one project's screen.
type ProjectView struct {
	project     domain.Project
	store       LogStore
	exporter    ReportExporter
	transcriber EntryTranscriber
	logger      *slog.Logger
	stream      live.Stream[domain.LogEntry]
	logs        *Collection[domain.LogEntry]
	draft       *Draft
	done        chan struct{}

	mu       sync.Mutex
	inFlight map[string]bool
}

// ViewOption configures optional collaborators of a ProjectView.
type ViewOption func(*ProjectView)

// WithExporter enables Report.
func WithExporter(e ReportExporter) ViewOption {
	return func(v *ProjectView) { v.exporter = e }
}

// WithTranscriber enables Transcribe.
func WithTranscriber(t EntryTranscriber) ViewOption {
	return func(v *ProjectView) { v.transcriber = t }
}

// OpenProjectView subscribes to the project's log entries.
func OpenProjectView(ctx context.Context, project domain.Project, store LogStore, logger *slog.Logger, opts ...ViewOption) (*ProjectView, error) {
	stream, err := store.SubscribeLogs(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", live.ErrSubscription, err)
	}
	v := &ProjectView{
		project:  project,
		store:    store,
		logger:   logger,
		stream:   stream,
		logs:     NewCollection[domain.LogEntry](),
		draft:    NewDraft(project.ID, store, logger),
		done:     make(chan struct{}),
		inFlight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(v)
	}
	go follow(stream, v.logs, v.done)
	return v, nil
}

func (v *ProjectView) Project() domain.Project { return v.project }

// State returns the mirrored entries in store order.
func (v *ProjectView) State() State[domain.LogEntry] {
	return v.logs.State()
}

// Changes signals whenever a snapshot or error arrives.
func (v *ProjectView) Changes() <-chan struct{} {
	return v.logs.Changes()
}

// Draft is the add-log form for this project.
func (v *ProjectView) Draft() *Draft {
	return v.draft
}

// MarkComplete signs off an entry. Concurrent calls for the same entry are
// rejected with ErrBusy.
func (v *ProjectView) MarkComplete(ctx context.Context, logID, notes string) (domain.LogEntry, error) {
	if err := v.begin(logID); err != nil {
		return domain.LogEntry{}, err
	}
	defer v.end(logID)

	entry, err := v.store.CompleteLog(ctx, v.project.ID, logID, notes)
	if err != nil {
		v.logger.Warn("mark complete failed", "log_id", logID, "error", err)
		return domain.LogEntry{}, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	return entry, nil
}

// Transcribe transcribes the first video of a mirrored entry into its notes.
func (v *ProjectView) Transcribe(ctx context.Context, logID string) (*domain.LogEntry, error) {
	if v.transcriber == nil {
		return nil, fmt.Errorf("transcription is not configured")
	}
	entry, ok := lo.Find(v.State().Items, func(e domain.LogEntry) bool { return e.ID == logID })
	if !ok {
		return nil, fmt.Errorf("%w: log %s is not in this project", domain.ErrValidation, logID)
	}
	if err := v.begin(logID); err != nil {
		return nil, err
	}
	defer v.end(logID)
	return v.transcriber.TranscribeEntry(ctx, entry)
}

// Reels lists entries that carry a video, each with its first video.
func (v *ProjectView) Reels() []Reel {
	return Reels(v.State().Items)
}

// Reels projects entries onto their first video, skipping entries without one.
func Reels(entries []domain.LogEntry) []Reel {
	return lo.FilterMap(entries, func(e domain.LogEntry, _ int) (Reel, bool) {
		video, ok := e.FirstVideo()
		if !ok {
			return Reel{}, false
		}
		return Reel{LogID: e.ID, Notes: e.Notes, VideoURI: video.URI}, true
	})
}

// Report exports the current snapshot of the project.
func (v *ProjectView) Report(ctx context.Context) (string, error) {
	if v.exporter == nil {
		return "", fmt.Errorf("report export is not configured")
	}
	state := v.State()
	if state.Phase != PhaseReady {
		if state.Err != nil {
			return "", state.Err
		}
		return "", fmt.Errorf("%w: entries are still loading", ErrBusy)
	}
	return v.exporter.Export(ctx, v.project, state.Items)
}

// Close releases the subscription and waits for the follower to stop.
func (v *ProjectView) Close() {
	v.stream.Close()
	<-v.done
}

func (v *ProjectView) begin(logID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.inFlight[logID] {
		return ErrBusy
	}
	v.inFlight[logID] = true
	return nil
}

func (v *ProjectView) end(logID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.inFlight, logID)
}
