// Package sqlite stores projects and log entries in a single SQLite file for
// single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/repository"
)

//go:embed schema.sql
var schema string

// Repository implements persistence interfaces on SQLite.
type Repository struct {
	db *sql.DB
}

var (
	_ repository.UserRepository     = (*Repository)(nil)
	_ repository.ProjectRepository  = (*Repository)(nil)
	_ repository.LogEntryRepository = (*Repository)(nil)
)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Ping checks the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, app_id, anonymous, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.AppID, user.Anonymous, user.CreatedAt.UTC())
	return mapError(err)
}

// GetUserByID retrieves a user by identifier within an app.
func (r *Repository) GetUserByID(ctx context.Context, appID, userID string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, `SELECT id, app_id, anonymous, created_at FROM users WHERE app_id = ? AND id = ?`, appID, userID).
		Scan(&u.ID, &u.AppID, &u.Anonymous, &u.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// CreateProject inserts a project owned by the scope.
func (r *Repository) CreateProject(ctx context.Context, scope repository.Scope, project *domain.Project) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO projects (id, app_id, user_id, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		project.ID, scope.AppID, scope.UserID, project.Name, project.CreatedAt.UTC())
	return mapError(err)
}

// GetProject fetches a project visible to the scope.
func (r *Repository) GetProject(ctx context.Context, scope repository.Scope, projectID string) (*domain.Project, error) {
	var p domain.Project
	err := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM projects WHERE app_id = ? AND user_id = ? AND id = ?`,
		scope.AppID, scope.UserID, projectID).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

// ListProjects returns the scope's projects newest first.
func (r *Repository) ListProjects(ctx context.Context, scope repository.Scope) ([]domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM projects
		WHERE app_id = ? AND user_id = ?
		ORDER BY created_at DESC, id`, scope.AppID, scope.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]domain.Project, 0)
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

const logColumns = `id, project_id, notes, priority, category, assignee, media, image_data_urls,
	status, created_at, completed_at, completion_notes, version`

// ownedProject restricts log statements to projects owned by the scope.
const ownedProject = `project_id IN (SELECT id FROM projects WHERE app_id = ? AND user_id = ?)`

// CreateLogEntry inserts a log entry, honouring an optional idempotency key.
func (r *Repository) CreateLogEntry(ctx context.Context, scope repository.Scope, entry *domain.LogEntry, idempotencyKey string) (bool, error) {
	if entry == nil {
		return false, repository.ErrInvalidArgument
	}
	if _, err := r.GetProject(ctx, scope, entry.ProjectID); err != nil {
		return false, err
	}
	media, err := json.Marshal(entry.Media)
	if err != nil {
		return false, fmt.Errorf("encode media: %w", err)
	}
	images := []byte("[]")
	if len(entry.ImageDataURLs) > 0 {
		if images, err = json.Marshal(entry.ImageDataURLs); err != nil {
			return false, fmt.Errorf("encode image data: %w", err)
		}
	}
	key := strings.TrimSpace(idempotencyKey)
	res, err := r.db.ExecContext(ctx, `INSERT INTO log_entries (id, project_id, notes, priority, category, assignee, media,
			image_data_urls, status, created_at, idempotency_key, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		entry.ID, entry.ProjectID, entry.Notes, string(entry.Priority), string(entry.Category), entry.Assignee,
		string(media), string(images), string(entry.Status), entry.Timestamp.UTC(), nullable(key), entry.Version)
	if err != nil {
		return false, mapError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return true, nil
	}
	if key == "" {
		return false, repository.ErrInvalidArgument
	}
	existing, err := scanLogEntry(r.db.QueryRowContext(ctx, `SELECT `+logColumns+` FROM log_entries
		WHERE `+ownedProject+` AND project_id = ? AND idempotency_key = ?`,
		scope.AppID, scope.UserID, entry.ProjectID, key))
	if err != nil {
		return false, err
	}
	*entry = *existing
	return false, nil
}

// GetLogEntry fetches one log entry.
func (r *Repository) GetLogEntry(ctx context.Context, scope repository.Scope, projectID, logID string) (*domain.LogEntry, error) {
	return scanLogEntry(r.db.QueryRowContext(ctx, `SELECT `+logColumns+` FROM log_entries
		WHERE `+ownedProject+` AND project_id = ? AND id = ?`,
		scope.AppID, scope.UserID, projectID, logID))
}

// ListLogEntries returns a project's entries in creation order.
func (r *Repository) ListLogEntries(ctx context.Context, scope repository.Scope, projectID string) ([]domain.LogEntry, error) {
	if _, err := r.GetProject(ctx, scope, projectID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+logColumns+` FROM log_entries
		WHERE `+ownedProject+` AND project_id = ? ORDER BY seq`,
		scope.AppID, scope.UserID, projectID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	entries := make([]domain.LogEntry, 0)
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// CompleteLogEntry marks an entry completed. Without an expected version the
// last write wins.
func (r *Repository) CompleteLogEntry(ctx context.Context, scope repository.Scope, update repository.CompleteUpdate) (*domain.LogEntry, error) {
	var expected any
	if update.ExpectedVersion != nil {
		expected = *update.ExpectedVersion
	}
	res, err := r.db.ExecContext(ctx, `UPDATE log_entries
		SET status = ?, completed_at = ?, completion_notes = ?, version = version + 1
		WHERE `+ownedProject+` AND project_id = ? AND id = ?
			AND (? IS NULL OR version = ?)`,
		string(domain.StatusCompleted), time.Now().UTC(), nullable(strings.TrimSpace(update.CompletionNotes)),
		scope.AppID, scope.UserID, update.ProjectID, update.LogID, expected, expected)
	if err != nil {
		return nil, mapError(err)
	}
	entry, err := r.GetLogEntry(ctx, scope, update.ProjectID, update.LogID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, repository.ErrVersionConflict
	}
	return entry, nil
}

// AppendNotes appends suffix to the stored notes in a single statement.
func (r *Repository) AppendNotes(ctx context.Context, scope repository.Scope, projectID, logID, suffix string) (*domain.LogEntry, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE log_entries
		SET notes = notes || ?, version = version + 1
		WHERE `+ownedProject+` AND project_id = ? AND id = ?`,
		suffix, scope.AppID, scope.UserID, projectID, logID)
	if err != nil {
		return nil, mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, repository.ErrNotFound
	}
	return r.GetLogEntry(ctx, scope, projectID, logID)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLogEntry(row scanner) (*domain.LogEntry, error) {
	var (
		e               domain.LogEntry
		priority        string
		category        string
		status          string
		media           string
		images          string
		completedAt     sql.NullTime
		completionNotes sql.NullString
	)
	err := row.Scan(&e.ID, &e.ProjectID, &e.Notes, &priority, &category, &e.Assignee, &media, &images,
		&status, &e.Timestamp, &completedAt, &completionNotes, &e.Version)
	if err != nil {
		return nil, mapError(err)
	}
	e.Priority = domain.Priority(priority)
	e.Category = domain.Category(category)
	e.Status = domain.Status(status)
	e.Timestamp = e.Timestamp.UTC()
	if completedAt.Valid {
		value := completedAt.Time.UTC()
		e.CompletedAt = &value
	}
	e.CompletionNotes = completionNotes.String
	if err := json.Unmarshal([]byte(media), &e.Media); err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}
	if err := json.Unmarshal([]byte(images), &e.ImageDataURLs); err != nil {
		return nil, fmt.Errorf("decode image data: %w", err)
	}
	if len(e.ImageDataURLs) == 0 {
		e.ImageDataURLs = nil
	}
	return &e, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.ExtendedCode {
		case sqlite3.ErrConstraintForeignKey:
			return repository.ErrNotFound
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintCheck:
			return repository.ErrInvalidArgument
		}
	}
	return err
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
