package project

import (
	"context"
	"errors"
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

// Service orchestrates project management.
type Service struct {
	projects repository.ProjectRepository
	notifier Notifier
	logger   *slog.Logger
}

// New returns a project service.
func New(projects repository.ProjectRepository, notifier Notifier, logger *slog.Logger) Service {
	return Service{projects: projects, notifier: notifier, logger: logger}
}

var (
	errInvalidProjectName = errors.New("project name is required")
	errMissingProjectID   = errors.New("project id required")
)

// IsValidationError reports whether err is an input validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, errInvalidProjectName) || errors.Is(err, errMissingProjectID)
}

// Create registers a new project for the scope.
func (s Service) Create(ctx context.Context, scope repository.Scope, name string) (*domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errInvalidProjectName
	}
	project := &domain.Project{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.projects.CreateProject(ctx, scope, project); err != nil {
		return nil, err
	}
	s.logger.Info("project created", "project_id", project.ID, "user_id", scope.UserID)
	s.notifier.Changed(ctx, scope.ProjectsPath())
	return project, nil
}

// List returns the scope's projects newest first.
func (s Service) List(ctx context.Context, scope repository.Scope) ([]domain.Project, error) {
	return s.projects.ListProjects(ctx, scope)
}

// Get fetches one project.
func (s Service) Get(ctx context.Context, scope repository.Scope, projectID string) (*domain.Project, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errMissingProjectID
	}
	return s.projects.GetProject(ctx, scope, projectID)
}
