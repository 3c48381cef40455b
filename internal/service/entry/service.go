package entry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/repository"
)

// Notifier is told when a collection changes.
type Notifier interface {
	Changed(ctx context.Context, path repository.Path)
}

// Service manages log entries inside a project.
type Service struct {
	logs     repository.LogEntryRepository
	notifier Notifier
	logger   *slog.Logger
}

// New constructs an entry service.
func New(logs repository.LogEntryRepository, notifier Notifier, logger *slog.Logger) Service {
	return Service{logs: logs, notifier: notifier, logger: logger}
}

var errEmptyAppend = fmt.Errorf("%w: appended text is empty", domain.ErrValidation)

// CreateInput carries a draft and its optional idempotency key.
type CreateInput struct {
	ProjectID      string
	Draft          domain.LogDraft
	IdempotencyKey string
}

// Create validates the draft and writes the entry once. A repeated create
// with the same idempotency key returns the stored entry and created=false.
func (s Service) Create(ctx context.Context, scope repository.Scope, input CreateInput) (*domain.LogEntry, bool, error) {
	draft := input.Draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, false, err
	}
	if strings.TrimSpace(input.ProjectID) == "" {
		return nil, false, fmt.Errorf("%w: project id required", domain.ErrValidation)
	}
	entry := &domain.LogEntry{
		ID:        uuid.NewString(),
		ProjectID: input.ProjectID,
		Notes:     draft.Notes,
		Priority:  draft.Priority,
		Category:  draft.Category,
		Assignee:  draft.Assignee,
		Media:     append([]domain.MediaRef(nil), draft.Media...),
		Status:    domain.StatusToDo,
		Timestamp: time.Now().UTC(),
		Version:   1,
	}
	created, err := s.logs.CreateLogEntry(ctx, scope, entry, input.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info("log entry created", "project_id", entry.ProjectID, "log_id", entry.ID)
		s.notifier.Changed(ctx, scope.LogsPath(entry.ProjectID))
	} else {
		s.logger.Info("log entry create replayed", "project_id", entry.ProjectID, "log_id", entry.ID)
	}
	return entry, created, nil
}

// CompleteInput identifies the entry to sign off.
type CompleteInput struct {
	ProjectID       string
	LogID           string
	Notes           string
	ExpectedVersion *int64
}

// MarkComplete moves the entry to Completed. Repeating it keeps the status
// Completed and refreshes completedAt.
func (s Service) MarkComplete(ctx context.Context, scope repository.Scope, input CompleteInput) (*domain.LogEntry, error) {
	updated, err := s.logs.CompleteLogEntry(ctx, scope, repository.CompleteUpdate{
		ProjectID:       input.ProjectID,
		LogID:           input.LogID,
		CompletionNotes: strings.TrimSpace(input.Notes),
		ExpectedVersion: input.ExpectedVersion,
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			s.logger.Info("completion rejected by version check", "log_id", input.LogID)
		}
		return nil, err
	}
	s.logger.Info("log entry completed", "project_id", input.ProjectID, "log_id", input.LogID)
	s.notifier.Changed(ctx, scope.LogsPath(input.ProjectID))
	return updated, nil
}

// AppendNotes adds text to the end of the entry's notes.
func (s Service) AppendNotes(ctx context.Context, scope repository.Scope, projectID, logID, text string) (*domain.LogEntry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errEmptyAppend
	}
	updated, err := s.logs.AppendNotes(ctx, scope, projectID, logID, text)
	if err != nil {
		return nil, err
	}
	s.notifier.Changed(ctx, scope.LogsPath(projectID))
	return updated, nil
}

// List returns a project's entries in creation order.
func (s Service) List(ctx context.Context, scope repository.Scope, projectID string) ([]domain.LogEntry, error) {
	return s.logs.ListLogEntries(ctx, scope, projectID)
}

// Get fetches one entry.
func (s Service) Get(ctx context.Context, scope repository.Scope, projectID, logID string) (*domain.LogEntry, error) {
	return s.logs.GetLogEntry(ctx, scope, projectID, logID)
}
