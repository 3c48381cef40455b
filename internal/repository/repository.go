package repository

import (
	"context"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
)

// UserRepository persists identities.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, appID, userID string) (*domain.User, error)
}

// ProjectRepository persists projects within a scope.
type ProjectRepository interface {
	CreateProject(ctx context.Context, scope Scope, project *domain.Project) error
	GetProject(ctx context.Context, scope Scope, projectID string) (*domain.Project, error)
	// ListProjects returns projects newest first.
	ListProjects(ctx context.Context, scope Scope) ([]domain.Project, error)
}

// CompleteUpdate describes a completion write.
type CompleteUpdate struct {
	ProjectID       string
	LogID           string
	CompletionNotes string
	// ExpectedVersion turns the write into a compare-and-swap when set.
	ExpectedVersion *int64
}

// LogEntryRepository persists log entries within a project.
type LogEntryRepository interface {
	// CreateLogEntry inserts the entry. When idempotencyKey is not empty and an
	// entry with the same key already exists in the project, that entry is
	// loaded into entry and created is false.
	CreateLogEntry(ctx context.Context, scope Scope, entry *domain.LogEntry, idempotencyKey string) (created bool, err error)
	GetLogEntry(ctx context.Context, scope Scope, projectID, logID string) (*domain.LogEntry, error)
	ListLogEntries(ctx context.Context, scope Scope, projectID string) ([]domain.LogEntry, error)
	CompleteLogEntry(ctx context.Context, scope Scope, update CompleteUpdate) (*domain.LogEntry, error)
	AppendNotes(ctx context.Context, scope Scope, projectID, logID, suffix string) (*domain.LogEntry, error)
}
