// Package memory keeps the store in process memory. It backs the API when
// STORE_BACKEND=memory and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/repository"
)

type ownedProject struct {
	scope   repository.Scope
	project domain.Project
}

type logRecord struct {
	entry domain.LogEntry
	key   string
	seq   int
}

// Repository is a concurrency-safe in-memory store.
type Repository struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	projects map[string]ownedProject
	logs     map[string]map[string]*logRecord
	seq      int
	writes   int
}

// New returns an empty repository.
func New() *Repository {
	return &Repository{
		users:    make(map[string]domain.User),
		projects: make(map[string]ownedProject),
		logs:     make(map[string]map[string]*logRecord),
	}
}

var (
	_ repository.UserRepository     = (*Repository)(nil)
	_ repository.ProjectRepository  = (*Repository)(nil)
	_ repository.LogEntryRepository = (*Repository)(nil)
)

func userKey(appID, userID string) string {
	return appID + "/" + userID
}

// CreateUser implements repository.UserRepository.
func (r *Repository) CreateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := userKey(user.AppID, user.ID)
	if _, ok := r.users[key]; ok {
		return repository.ErrInvalidArgument
	}
	r.users[key] = *user
	r.writes++
	return nil
}

// GetUserByID implements repository.UserRepository.
func (r *Repository) GetUserByID(_ context.Context, appID, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userKey(appID, userID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// CreateProject implements repository.ProjectRepository.
func (r *Repository) CreateProject(_ context.Context, scope repository.Scope, project *domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[project.ID]; ok {
		return repository.ErrInvalidArgument
	}
	r.projects[project.ID] = ownedProject{scope: scope, project: *project}
	r.writes++
	return nil
}

// GetProject implements repository.ProjectRepository.
func (r *Repository) GetProject(_ context.Context, scope repository.Scope, projectID string) (*domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, err := r.ownedLocked(scope, projectID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) ownedLocked(scope repository.Scope, projectID string) (domain.Project, error) {
	owned, ok := r.projects[projectID]
	if !ok || owned.scope != scope {
		return domain.Project{}, repository.ErrNotFound
	}
	return owned.project, nil
}

// ListProjects implements repository.ProjectRepository.
func (r *Repository) ListProjects(_ context.Context, scope repository.Scope) ([]domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	projects := make([]domain.Project, 0)
	for _, owned := range r.projects {
		if owned.scope == scope {
			projects = append(projects, owned.project)
		}
	}
	sort.SliceStable(projects, func(i, j int) bool {
		if projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].ID < projects[j].ID
		}
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return projects, nil
}

// CreateLogEntry implements repository.LogEntryRepository.
func (r *Repository) CreateLogEntry(_ context.Context, scope repository.Scope, entry *domain.LogEntry, idempotencyKey string) (bool, error) {
	if entry == nil {
		return false, repository.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.ownedLocked(scope, entry.ProjectID); err != nil {
		return false, err
	}
	bucket := r.logs[entry.ProjectID]
	if bucket == nil {
		bucket = make(map[string]*logRecord)
		r.logs[entry.ProjectID] = bucket
	}
	key := strings.TrimSpace(idempotencyKey)
	if key != "" {
		for _, rec := range bucket {
			if rec.key == key {
				*entry = copyEntry(rec.entry)
				return false, nil
			}
		}
	}
	if _, ok := bucket[entry.ID]; ok {
		return false, repository.ErrInvalidArgument
	}
	r.seq++
	bucket[entry.ID] = &logRecord{entry: copyEntry(*entry), key: key, seq: r.seq}
	r.writes++
	return true, nil
}

// GetLogEntry implements repository.LogEntryRepository.
func (r *Repository) GetLogEntry(_ context.Context, scope repository.Scope, projectID, logID string) (*domain.LogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, err := r.recordLocked(scope, projectID, logID)
	if err != nil {
		return nil, err
	}
	e := copyEntry(rec.entry)
	return &e, nil
}

func (r *Repository) recordLocked(scope repository.Scope, projectID, logID string) (*logRecord, error) {
	if _, err := r.ownedLocked(scope, projectID); err != nil {
		return nil, err
	}
	rec, ok := r.logs[projectID][logID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

// ListLogEntries implements repository.LogEntryRepository.
func (r *Repository) ListLogEntries(_ context.Context, scope repository.Scope, projectID string) ([]domain.LogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, err := r.ownedLocked(scope, projectID); err != nil {
		return nil, err
	}
	records := make([]*logRecord, 0, len(r.logs[projectID]))
	for _, rec := range r.logs[projectID] {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].seq < records[j].seq })
	entries := make([]domain.LogEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, copyEntry(rec.entry))
	}
	return entries, nil
}

// CompleteLogEntry implements repository.LogEntryRepository.
func (r *Repository) CompleteLogEntry(_ context.Context, scope repository.Scope, update repository.CompleteUpdate) (*domain.LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.recordLocked(scope, update.ProjectID, update.LogID)
	if err != nil {
		return nil, err
	}
	if update.ExpectedVersion != nil && *update.ExpectedVersion != rec.entry.Version {
		return nil, repository.ErrVersionConflict
	}
	now := time.Now().UTC()
	rec.entry.Status = domain.StatusCompleted
	rec.entry.CompletedAt = &now
	rec.entry.CompletionNotes = strings.TrimSpace(update.CompletionNotes)
	rec.entry.Version++
	r.writes++
	e := copyEntry(rec.entry)
	return &e, nil
}

// AppendNotes implements repository.LogEntryRepository.
func (r *Repository) AppendNotes(_ context.Context, scope repository.Scope, projectID, logID, suffix string) (*domain.LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.recordLocked(scope, projectID, logID)
	if err != nil {
		return nil, err
	}
	rec.entry.Notes += suffix
	rec.entry.Version++
	r.writes++
	e := copyEntry(rec.entry)
	return &e, nil
}

// WriteCount reports how many mutations succeeded.
func (r *Repository) WriteCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes
}

func copyEntry(e domain.LogEntry) domain.LogEntry {
	e.Media = append([]domain.MediaRef(nil), e.Media...)
	e.ImageDataURLs = append([]string(nil), e.ImageDataURLs...)
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		e.CompletedAt = &t
	}
	return e
}
