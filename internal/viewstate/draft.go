package viewstate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
)

// LogWriter creates log entries in the store.
type LogWriter interface {
	CreateLog(ctx context.Context, projectID string, draft domain.LogDraft, idempotencyKey string) (domain.LogEntry, error)
}

// Draft is the add-log form of one project. It doubles as the capture sink,
// so photos and finished videos land in it directly.
type Draft struct {
	projectID string
	writer    LogWriter
	logger    *slog.Logger

	mu         sync.Mutex
	fields     domain.LogDraft
	key        string
	submitting bool
}

// NewDraft returns an empty draft with default priority and category.
func NewDraft(projectID string, writer LogWriter, logger *slog.Logger) *Draft {
	d := &Draft{projectID: projectID, writer: writer, logger: logger}
	d.resetLocked()
	return d
}

func (d *Draft) resetLocked() {
	d.fields = domain.LogDraft{
		Priority: domain.DefaultPriority,
		Category: domain.DefaultCategory,
	}
	d.key = uuid.NewString()
}

func (d *Draft) SetNotes(notes string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fields.Notes = notes
}

func (d *Draft) SetPriority(p domain.Priority) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fields.Priority = p
}

func (d *Draft) SetCategory(c domain.Category) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fields.Category = c
}

func (d *Draft) SetAssignee(a string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fields.Assignee = a
}

// AddMedia appends a captured item.
func (d *Draft) AddMedia(ref domain.MediaRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fields.Media = append(d.fields.Media, ref)
}

// RemoveMedia drops every item with uri.
func (d *Draft) RemoveMedia(uri string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.fields.Media[:0]
	for _, m := range d.fields.Media {
		if m.URI != uri {
			kept = append(kept, m)
		}
	}
	d.fields.Media = kept
}

// Fields returns a copy of the form contents.
func (d *Draft) Fields() domain.LogDraft {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := d.fields
	f.Media = append([]domain.MediaRef(nil), d.fields.Media...)
	return f
}

// IdempotencyKey is the key the next Submit will send.
func (d *Draft) IdempotencyKey() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.key
}

// Submitting reports whether a submit is in flight.
func (d *Draft) Submitting() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submitting
}

// Submit validates locally and writes the entry once. Invalid drafts never
// reach the store. A failed write keeps the contents and the idempotency key
// so a retry cannot duplicate an entry whose acknowledgement was lost.
func (d *Draft) Submit(ctx context.Context) (domain.LogEntry, error) {
	d.mu.Lock()
	if d.submitting {
		d.mu.Unlock()
		return domain.LogEntry{}, ErrBusy
	}
	fields := d.fields.Normalize()
	if err := fields.Validate(); err != nil {
		d.mu.Unlock()
		return domain.LogEntry{}, err
	}
	fields.Media = append([]domain.MediaRef(nil), fields.Media...)
	key := d.key
	d.submitting = true
	d.mu.Unlock()

	entry, err := d.writer.CreateLog(ctx, d.projectID, fields, key)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitting = false
	if err != nil {
		d.logger.Warn("log entry submit failed", "project_id", d.projectID, "error", err)
		return domain.LogEntry{}, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	d.resetLocked()
	return entry, nil
}
