package domain

import (
	"fmt"
	"strings"
	"time"
)

// Priority ranks how urgently a snag needs attention.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Priorities lists priorities in rank order.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Rank orders priorities High(1) < Medium(2) < Low(3). Unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Color is the badge colour used in lists and reports.
func (p Priority) Color() string {
	switch p {
	case PriorityHigh:
		return "#ef4444"
	case PriorityMedium:
		return "#f59e0b"
	case PriorityLow:
		return "#22c55e"
	default:
		return "#888"
	}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Rank() < 4
}

// Category classifies the trade a snag belongs to.
type Category string

const (
	CategoryGeneral    Category = "General"
	CategoryCabinetry  Category = "Cabinetry"
	CategoryPlumbing   Category = "Plumbing"
	CategoryElectrical Category = "Electrical"
	CategoryPaintwork  Category = "Paintwork"
	CategoryAppliance  Category = "Appliance"
	CategoryFlooring   Category = "Flooring"
	CategoryTiling     Category = "Tiling"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryGeneral,
	CategoryCabinetry,
	CategoryPlumbing,
	CategoryElectrical,
	CategoryPaintwork,
	CategoryAppliance,
	CategoryFlooring,
	CategoryTiling,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Status is the two-state lifecycle of a log entry.
type Status string

const (
	StatusToDo      Status = "To Do"
	StatusCompleted Status = "Completed"
)

// Defaults applied to a fresh draft.
const (
	DefaultPriority = PriorityMedium
	DefaultCategory = CategoryGeneral
)

// LogEntry is a recorded snag on a project.
type LogEntry struct {
	ID              string     `json:"id"`
	ProjectID       string     `json:"projectId"`
	Notes           string     `json:"notes"`
	Priority        Priority   `json:"priority"`
	Category        Category   `json:"category"`
	Assignee        string     `json:"assignee"`
	Media           []MediaRef `json:"media"`
	Status          Status     `json:"status"`
	Timestamp       time.Time  `json:"timestamp"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	CompletionNotes string     `json:"completionNotes,omitempty"`
	ImageDataURLs   []string   `json:"imageDataUrls,omitempty"`
	Version         int64      `json:"version"`
}

// Completed reports whether the entry has been signed off.
func (e LogEntry) Completed() bool {
	return e.Status == StatusCompleted
}

// FirstVideo returns the first video attached to the entry.
func (e LogEntry) FirstVideo() (MediaRef, bool) {
	for _, m := range e.Media {
		if m.Type == MediaVideo {
			return m, true
		}
	}
	return MediaRef{}, false
}

// LogDraft holds the user supplied fields of a new entry.
type LogDraft struct {
	Notes    string     `json:"notes"`
	Priority Priority   `json:"priority"`
	Category Category   `json:"category"`
	Assignee string     `json:"assignee"`
	Media    []MediaRef `json:"media"`
}

// Normalize fills defaults and trims free text.
func (d LogDraft) Normalize() LogDraft {
	if strings.TrimSpace(string(d.Priority)) == "" {
		d.Priority = DefaultPriority
	}
	if strings.TrimSpace(string(d.Category)) == "" {
		d.Category = DefaultCategory
	}
	d.Assignee = strings.TrimSpace(d.Assignee)
	return d
}

// Validate enforces the creation invariant: notes and at least one media item.
func (d LogDraft) Validate() error {
	if strings.TrimSpace(d.Notes) == "" {
		return fmt.Errorf("%w: notes are required", ErrValidation)
	}
	if len(d.Media) == 0 {
		return fmt.Errorf("%w: at least one photo or video is required", ErrValidation)
	}
	if !d.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, d.Priority)
	}
	if !d.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, d.Category)
	}
	return ValidateMedia(d.Media)
}
