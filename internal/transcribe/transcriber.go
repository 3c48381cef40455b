package transcribe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
)

// Separator precedes transcription text appended to notes.
const Separator = "\n\n--- AI Transcription ---\n"

// VideoTranscriber turns a video into text.
type VideoTranscriber interface {
	Transcribe(ctx context.Context, video domain.MediaRef, contextNotes string) (string, error)
}

// NotesAppender appends text to an entry's notes in one write.
type NotesAppender interface {
	AppendNotes(ctx context.Context, projectID, logID, text string) (*domain.LogEntry, error)
}

// Transcriber transcribes an entry's video and appends the result to its notes.
type Transcriber struct {
	client VideoTranscriber
	notes  NotesAppender
	logger *slog.Logger
}

// NewTranscriber constructs a Transcriber.
func NewTranscriber(client VideoTranscriber, notes NotesAppender, logger *slog.Logger) Transcriber {
	return Transcriber{client: client, notes: notes, logger: logger}
}

// TranscribeEntry transcribes the first video of entry. On any failure the
// entry is left untouched.
func (t Transcriber) TranscribeEntry(ctx context.Context, entry domain.LogEntry) (*domain.LogEntry, error) {
	video, ok := entry.FirstVideo()
	if !ok {
		return nil, ErrNotVideo
	}
	text, err := t.client.Transcribe(ctx, video, entry.Notes)
	if err != nil {
		t.logger.Warn("transcription failed", "log_id", entry.ID, "error", err)
		return nil, err
	}
	updated, err := t.notes.AppendNotes(ctx, entry.ProjectID, entry.ID, Separator+text)
	if err != nil {
		return nil, fmt.Errorf("save transcription: %w", err)
	}
	t.logger.Info("transcription appended", "log_id", entry.ID, "chars", len(text))
	return updated, nil
}
