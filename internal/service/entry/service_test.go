package entry

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

func setup(t *testing.T) (Service, *memory.Repository, *recordingNotifier) {
	t.Helper()
	repo := memory.New()
	if err := repo.CreateProject(context.Background(), scope, &domain.Project{ID: "p1", Name: "Site", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	notifier := &recordingNotifier{}
	return New(repo, notifier, logger.Discard()), repo, notifier
}

func validDraft() domain.LogDraft {
	return domain.LogDraft{
		Notes: "Cracked tile by sink",
		Media: []domain.MediaRef{{URI: "file:///tmp/tile.jpg", Type: domain.MediaPhoto}},
	}
}

func TestCreateStoresToDoEntry(t *testing.T) {
	svc, repo, notifier := setup(t)
	entry, created, err := svc.Create(context.Background(), scope, CreateInput{ProjectID: "p1", Draft: validDraft()})
	if err != nil || !created {
		t.Fatalf("create: %v created=%v", err, created)
	}
	if entry.Status != domain.StatusToDo || entry.Priority != domain.PriorityMedium || entry.Category != domain.CategoryGeneral {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Version != 1 || entry.Timestamp.IsZero() {
		t.Fatalf("expected version 1 and timestamp, got %+v", entry)
	}
	if repo.WriteCount() != 2 {
		t.Fatalf("expected exactly one entry write")
	}
	if len(notifier.paths) != 1 || notifier.paths[0] != scope.LogsPath("p1").String() {
		t.Fatalf("unexpected notifications %v", notifier.paths)
	}

	logs, _ := svc.List(context.Background(), scope, "p1")
	if len(logs) != 1 || logs[0].Notes != "Cracked tile by sink" || len(logs[0].Media) != 1 {
		t.Fatalf("stored entry differs from draft: %+v", logs)
	}
}

func TestCreateValidationMakesNoWrites(t *testing.T) {
	for _, draft := range []domain.LogDraft{
		{Notes: "", Media: validDraft().Media},
		{Notes: "Missing media"},
	} {
		svc, repo, notifier := setup(t)
		before := repo.WriteCount()
		_, _, err := svc.Create(context.Background(), scope, CreateInput{ProjectID: "p1", Draft: draft})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if repo.WriteCount() != before || len(notifier.paths) != 0 {
			t.Fatalf("validation failure must not touch the store")
		}
	}
}

func TestCreateIsIdempotentPerKey(t *testing.T) {
	svc, _, notifier := setup(t)
	input := CreateInput{ProjectID: "p1", Draft: validDraft(), IdempotencyKey: "key-1"}
	first, created, err := svc.Create(context.Background(), scope, input)
	if err != nil || !created {
		t.Fatalf("first create: %v", err)
	}
	second, created, err := svc.Create(context.Background(), scope, input)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("replay should return the original entry, got %+v", second)
	}
	logs, _ := svc.List(context.Background(), scope, "p1")
	if len(logs) != 1 {
		t.Fatalf("expected a single stored entry, got %d", len(logs))
	}
	if len(notifier.paths) != 1 {
		t.Fatalf("replay should not notify")
	}
}

func TestCreateUnknownProject(t *testing.T) {
	svc, _, _ := setup(t)
	_, _, err := svc.Create(context.Background(), scope, CreateInput{ProjectID: "missing", Draft: validDraft()})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkCompleteTwiceStaysCompleted(t *testing.T) {
	svc, _, _ := setup(t)
	entry, _, _ := svc.Create(context.Background(), scope, CreateInput{ProjectID: "p1", Draft: validDraft()})

	for i := 0; i < 2; i++ {
		updated, err := svc.MarkComplete(context.Background(), scope, CompleteInput{ProjectID: "p1", LogID: entry.ID, Notes: " regrouted "})
		if err != nil {
			t.Fatalf("complete %d: %v", i, err)
		}
		if updated.Status != domain.StatusCompleted || updated.CompletedAt == nil {
			t.Fatalf("unexpected entry %+v", updated)
		}
		if updated.CompletionNotes != "regrouted" {
			t.Fatalf("unexpected completion notes %q", updated.CompletionNotes)
		}
	}
}

func TestMarkCompleteVersionConflict(t *testing.T) {
	svc, _, _ := setup(t)
	entry, _, _ := svc.Create(context.Background(), scope, CreateInput{ProjectID: "p1", Draft: validDraft()})
	stale := entry.Version
	if _, err := svc.MarkComplete(context.Background(), scope, CompleteInput{ProjectID: "p1", LogID: entry.ID, ExpectedVersion: &stale}); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	_, err := svc.MarkComplete(context.Background(), scope, CompleteInput{ProjectID: "p1", LogID: entry.ID, ExpectedVersion: &stale})
	if !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestAppendNotes(t *testing.T) {
	svc, _, _ := setup(t)
	entry, _, _ := svc.Create(context.Background(), scope, CreateInput{ProjectID: "p1", Draft: validDraft()})

	updated, err := svc.AppendNotes(context.Background(), scope, "p1", entry.ID, "\n\nmore")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if updated.Notes != "Cracked tile by sink\n\nmore" || updated.Version != 2 {
		t.Fatalf("unexpected entry %+v", updated)
	}
	if _, err := svc.AppendNotes(context.Background(), scope, "p1", entry.ID, "  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank append, got %v", err)
	}
}
