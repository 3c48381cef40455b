package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository     = (*Repository)(nil)
	_ repository.ProjectRepository  = (*Repository)(nil)
	_ repository.LogEntryRepository = (*Repository)(nil)
)

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, app_id, anonymous, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.AppID, user.Anonymous, user.CreatedAt)
	return mapError(err)
}

// GetUserByID retrieves a user by identifier within an app.
func (r *Repository) GetUserByID(ctx context.Context, appID, userID string) (*domain.User, error) {
	const query = `SELECT id, app_id, anonymous, created_at FROM users WHERE app_id = $1 AND id = $2`
	row := r.pool.QueryRow(ctx, query, appID, userID)
	var u domain.User
	if err := row.Scan(&u.ID, &u.AppID, &u.Anonymous, &u.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// CreateProject inserts a project owned by the scope.
func (r *Repository) CreateProject(ctx context.Context, scope repository.Scope, project *domain.Project) error {
	const query = `INSERT INTO projects (id, app_id, user_id, name, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, project.ID, scope.AppID, scope.UserID, project.Name, project.CreatedAt)
	return mapError(err)
}

// GetProject fetches a project visible to the scope.
func (r *Repository) GetProject(ctx context.Context, scope repository.Scope, projectID string) (*domain.Project, error) {
	const query = `SELECT id, name, created_at FROM projects
		WHERE app_id = $1 AND user_id = $2 AND id = $3`
	row := r.pool.QueryRow(ctx, query, scope.AppID, scope.UserID, projectID)
	var p domain.Project
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

// ListProjects returns the scope's projects newest first.
func (r *Repository) ListProjects(ctx context.Context, scope repository.Scope) ([]domain.Project, error) {
	const query = `SELECT id, name, created_at FROM projects
		WHERE app_id = $1 AND user_id = $2
		ORDER BY created_at DESC, id`
	rows, err := r.pool.Query(ctx, query, scope.AppID, scope.UserID)
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
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

const logColumns = `l.id, l.project_id, l.notes, l.priority, l.category, l.assignee, l.media, l.image_data_urls,
	l.status, l.created_at, l.completed_at, l.completion_notes, l.version`

// ownedLogs restricts log queries to projects owned by the scope ($1 app, $2 user).
const ownedLogs = `FROM log_entries l
	INNER JOIN projects p ON p.id = l.project_id
	WHERE p.app_id = $1 AND p.user_id = $2`

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
	images, err := json.Marshal(nonNilStrings(entry.ImageDataURLs))
	if err != nil {
		return false, fmt.Errorf("encode image data: %w", err)
	}
	const query = `INSERT INTO log_entries (id, project_id, notes, priority, category, assignee, media, image_data_urls,
			status, created_at, idempotency_key, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (project_id, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING`
	tag, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.ProjectID,
		entry.Notes,
		string(entry.Priority),
		string(entry.Category),
		entry.Assignee,
		media,
		images,
		string(entry.Status),
		entry.Timestamp,
		emptyToNil(idempotencyKey),
		entry.Version,
	)
	if err != nil {
		return false, mapError(err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		return false, repository.ErrInvalidArgument
	}
	existing, err := r.getByIdempotencyKey(ctx, scope, entry.ProjectID, idempotencyKey)
	if err != nil {
		return false, err
	}
	*entry = *existing
	return false, nil
}

func (r *Repository) getByIdempotencyKey(ctx context.Context, scope repository.Scope, projectID, key string) (*domain.LogEntry, error) {
	query := `SELECT ` + logColumns + ` ` + ownedLogs + ` AND l.project_id = $3 AND l.idempotency_key = $4`
	return scanLogEntry(r.pool.QueryRow(ctx, query, scope.AppID, scope.UserID, projectID, key))
}

// GetLogEntry fetches one log entry.
func (r *Repository) GetLogEntry(ctx context.Context, scope repository.Scope, projectID, logID string) (*domain.LogEntry, error) {
	query := `SELECT ` + logColumns + ` ` + ownedLogs + ` AND l.project_id = $3 AND l.id = $4`
	return scanLogEntry(r.pool.QueryRow(ctx, query, scope.AppID, scope.UserID, projectID, logID))
}

// ListLogEntries returns a project's entries in creation order.
func (r *Repository) ListLogEntries(ctx context.Context, scope repository.Scope, projectID string) ([]domain.LogEntry, error) {
	query := `SELECT ` + logColumns + ` ` + ownedLogs + ` AND l.project_id = $3 ORDER BY l.created_at, l.id`
	rows, err := r.pool.Query(ctx, query, scope.AppID, scope.UserID, projectID)
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
	query := `UPDATE log_entries l
		SET status = $5,
			completed_at = $6,
			completion_notes = $7,
			version = l.version + 1
		FROM projects p
		WHERE p.id = l.project_id AND p.app_id = $1 AND p.user_id = $2
			AND l.project_id = $3 AND l.id = $4
			AND ($8::BIGINT IS NULL OR l.version = $8)
		RETURNING ` + logColumns
	row := r.pool.QueryRow(ctx, query,
		scope.AppID,
		scope.UserID,
		update.ProjectID,
		update.LogID,
		string(domain.StatusCompleted),
		time.Now().UTC(),
		emptyToNil(update.CompletionNotes),
		update.ExpectedVersion,
	)
	entry, err := scanLogEntry(row)
	if errors.Is(err, repository.ErrNotFound) && update.ExpectedVersion != nil {
		if _, getErr := r.GetLogEntry(ctx, scope, update.ProjectID, update.LogID); getErr == nil {
			return nil, repository.ErrVersionConflict
		}
	}
	return entry, err
}

// AppendNotes appends suffix to the stored notes in a single statement.
func (r *Repository) AppendNotes(ctx context.Context, scope repository.Scope, projectID, logID, suffix string) (*domain.LogEntry, error) {
	query := `UPDATE log_entries l
		SET notes = l.notes || $5,
			version = l.version + 1
		FROM projects p
		WHERE p.id = l.project_id AND p.app_id = $1 AND p.user_id = $2
			AND l.project_id = $3 AND l.id = $4
		RETURNING ` + logColumns
	return scanLogEntry(r.pool.QueryRow(ctx, query, scope.AppID, scope.UserID, projectID, logID, suffix))
}

func scanLogEntry(row pgx.Row) (*domain.LogEntry, error) {
	var (
		e               domain.LogEntry
		priority        string
		category        string
		status          string
		media           []byte
		images          []byte
		completedAt     *time.Time
		completionNotes *string
	)
	err := row.Scan(&e.ID, &e.ProjectID, &e.Notes, &priority, &category, &e.Assignee, &media, &images,
		&status, &e.Timestamp, &completedAt, &completionNotes, &e.Version)
	if err != nil {
		return nil, mapError(err)
	}
	e.Priority = domain.Priority(priority)
	e.Category = domain.Category(category)
	e.Status = domain.Status(status)
	if completedAt != nil {
		value := completedAt.UTC()
		e.CompletedAt = &value
	}
	if completionNotes != nil {
		e.CompletionNotes = *completionNotes
	}
	if len(media) > 0 {
		if err := json.Unmarshal(media, &e.Media); err != nil {
			return nil, fmt.Errorf("decode media: %w", err)
		}
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &e.ImageDataURLs); err != nil {
			return nil, fmt.Errorf("decode image data: %w", err)
		}
	}
	return &e, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02":
			return repository.ErrInvalidArgument
		case "23503":
			return repository.ErrNotFound
		case "23505":
			return repository.ErrInvalidArgument
		}
	}
	return err
}

func emptyToNil(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
