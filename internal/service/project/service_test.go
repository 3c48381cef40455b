package project

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/repository"
	"github.com/Richiestixx/SiteRightApp/internal/repository/memory"
	"github.com/Richiestixx/SiteRightApp/pkg/logger"
)

type recordingNotifier struct {
	paths []string
}

func (n *recordingNotifier) Changed(_ context.Context, path repository.Path) {
	n.paths = append(n.paths, path.String())
}

var scope = repository.Scope{AppID: "app", UserID: "u1"}

func TestCreateTrimsAndNotifies(t *testing.T) {
	repo := memory.New()
	notifier := &recordingNotifier{}
	svc := New(repo, notifier, logger.Discard())

	project, err := svc.Create(context.Background(), scope, "  Kitchen refit ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if project.Name != "Kitchen refit" || project.ID == "" {
		t.Fatalf("unexpected project %+v", project)
	}
	if len(notifier.paths) != 1 || notifier.paths[0] != scope.ProjectsPath().String() {
		t.Fatalf("unexpected notifications %v", notifier.paths)
	}
}

func TestCreateRejectsBlankName(t *testing.T) {
	repo := memory.New()
	notifier := &recordingNotifier{}
	svc := New(repo, notifier, logger.Discard())

	_, err := svc.Create(context.Background(), scope, "   ")
	if !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if repo.WriteCount() != 0 || len(notifier.paths) != 0 {
		t.Fatalf("blank name must not write or notify")
	}
}

func TestListNewestFirstAndScoped(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	_ = repo.CreateProject(ctx, scope, &domain.Project{ID: "old", Name: "Old", CreatedAt: base})
	_ = repo.CreateProject(ctx, scope, &domain.Project{ID: "new", Name: "New", CreatedAt: base.Add(time.Hour)})
	_ = repo.CreateProject(ctx, repository.Scope{AppID: "app", UserID: "other"}, &domain.Project{ID: "x", Name: "X", CreatedAt: base})

	svc := New(repo, &recordingNotifier{}, logger.Discard())
	projects, err := svc.List(ctx, scope)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(projects) != 2 || projects[0].ID != "new" || projects[1].ID != "old" {
		t.Fatalf("unexpected order %+v", projects)
	}
	if _, err := svc.Get(ctx, scope, "x"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("foreign project should be invisible, got %v", err)
	}
}
