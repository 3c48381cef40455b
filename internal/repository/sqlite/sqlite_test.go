package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/repository"
)

var scope = repository.Scope{AppID: "app", UserID: "u1"}

func open(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "store", "siteright.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	if err := repo.CreateUser(ctx, &domain.User{ID: "u1", AppID: "app", Anonymous: true, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := repo.CreateProject(ctx, scope, &domain.Project{ID: "p1", Name: "Kitchen", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return repo
}

func newEntry(id, notes string) *domain.LogEntry {
	return &domain.LogEntry{
		ID:        id,
		ProjectID: "p1",
		Notes:     notes,
		Priority:  domain.PriorityHigh,
		Category:  domain.CategoryTiling,
		Media:     []domain.MediaRef{{URI: "file:///tmp/" + id + ".jpg", Type: domain.MediaPhoto}},
		Status:    domain.StatusToDo,
		Timestamp: time.Now().UTC(),
		Version:   1,
	}
}

func TestProjectsAreScopedAndNewestFirst(t *testing.T) {
	repo := open(t)
	ctx := context.Background()
	later := &domain.Project{ID: "p2", Name: "Bathroom", CreatedAt: time.Now().Add(time.Minute)}
	if err := repo.CreateProject(ctx, scope, later); err != nil {
		t.Fatalf("create: %v", err)
	}

	projects, err := repo.ListProjects(ctx, scope)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(projects) != 2 || projects[0].ID != "p2" || projects[1].ID != "p1" {
		t.Fatalf("unexpected order %+v", projects)
	}

	other := repository.Scope{AppID: "app", UserID: "u2"}
	if _, err := repo.GetProject(ctx, other, "p1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found for other user, got %v", err)
	}
	if err := repo.CreateProject(ctx, other, &domain.Project{ID: "p3", Name: "Orphan", CreatedAt: time.Now()}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected unknown owner to fail, got %v", err)
	}
}

func TestCreateLogEntryReplaysIdempotencyKey(t *testing.T) {
	repo := open(t)
	ctx := context.Background()

	first := newEntry("l1", "Cracked tile")
	created, err := repo.CreateLogEntry(ctx, scope, first, "key-1")
	if err != nil || !created {
		t.Fatalf("create: %v created=%v", err, created)
	}

	retry := newEntry("l2", "Cracked tile")
	created, err = repo.CreateLogEntry(ctx, scope, retry, "key-1")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if created || retry.ID != "l1" {
		t.Fatalf("expected replay of l1, got created=%v id=%s", created, retry.ID)
	}

	if _, err := repo.CreateLogEntry(ctx, scope, newEntry("l3", "Loose handle"), ""); err != nil {
		t.Fatalf("create without key: %v", err)
	}
	entries, err := repo.ListLogEntries(ctx, scope, "p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "l1" || entries[1].ID != "l3" {
		t.Fatalf("expected creation order l1,l3, got %+v", entries)
	}
	if len(entries[0].Media) != 1 || entries[0].Media[0].Type != domain.MediaPhoto {
		t.Fatalf("media not round-tripped: %+v", entries[0].Media)
	}
}

func TestCompleteLogEntryCompareAndSwap(t *testing.T) {
	repo := open(t)
	ctx := context.Background()
	if _, err := repo.CreateLogEntry(ctx, scope, newEntry("l1", "Paint scuff"), ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	stale := int64(7)
	_, err := repo.CompleteLogEntry(ctx, scope, repository.CompleteUpdate{ProjectID: "p1", LogID: "l1", ExpectedVersion: &stale})
	if !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	current := int64(1)
	done, err := repo.CompleteLogEntry(ctx, scope, repository.CompleteUpdate{ProjectID: "p1", LogID: "l1", CompletionNotes: "Touched up", ExpectedVersion: &current})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !done.Completed() || done.CompletedAt == nil || done.CompletionNotes != "Touched up" || done.Version != 2 {
		t.Fatalf("unexpected completed entry %+v", done)
	}

	again, err := repo.CompleteLogEntry(ctx, scope, repository.CompleteUpdate{ProjectID: "p1", LogID: "l1"})
	if err != nil || !again.Completed() {
		t.Fatalf("second completion should stay completed: %v %+v", err, again)
	}

	if _, err := repo.CompleteLogEntry(ctx, scope, repository.CompleteUpdate{ProjectID: "p1", LogID: "missing"}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAppendNotesIsSingleWrite(t *testing.T) {
	repo := open(t)
	ctx := context.Background()
	if _, err := repo.CreateLogEntry(ctx, scope, newEntry("l1", "Leak"), ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, err := repo.AppendNotes(ctx, scope, "p1", "l1", " under sink")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if updated.Notes != "Leak under sink" || updated.Version != 2 {
		t.Fatalf("unexpected entry %+v", updated)
	}
	other := repository.Scope{AppID: "app", UserID: "u2"}
	if _, err := repo.AppendNotes(ctx, other, "p1", "l1", "x"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found for other user, got %v", err)
	}
}
