package transcribe

import (
	"context"
	"errors"
	"testing"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/pkg/logger"
)

type stubClient struct {
	text string
	err  error
}

func (s stubClient) Transcribe(context.Context, domain.MediaRef, string) (string, error) {
	return s.text, s.err
}

type recordingAppender struct {
	calls []string
}

func (r *recordingAppender) AppendNotes(_ context.Context, projectID, logID, text string) (*domain.LogEntry, error) {
	r.calls = append(r.calls, text)
	return &domain.LogEntry{ID: logID, ProjectID: projectID, Notes: "n" + text}, nil
}

var videoEntry = domain.LogEntry{
	ID:        "l1",
	ProjectID: "p1",
	Notes:     "Leak",
	Media: []domain.MediaRef{
		{URI: "file:///a.jpg", Type: domain.MediaPhoto},
		{URI: "file:///b.mp4", Type: domain.MediaVideo},
	},
}

func TestTranscribeEntryAppendsText(t *testing.T) {
	appender := &recordingAppender{}
	tr := NewTranscriber(stubClient{text: "Pipe joint dripping"}, appender, logger.Discard())
	if _, err := tr.TranscribeEntry(context.Background(), videoEntry); err != nil {
		t.Fatalf("transcribe entry: %v", err)
	}
	if len(appender.calls) != 1 || appender.calls[0] != "\n\n--- AI Transcription ---\nPipe joint dripping" {
		t.Fatalf("unexpected append calls %q", appender.calls)
	}
}

func TestTranscribeEntryFailureLeavesNotes(t *testing.T) {
	appender := &recordingAppender{}
	tr := NewTranscriber(stubClient{err: ErrEmptyResult}, appender, logger.Discard())
	if _, err := tr.TranscribeEntry(context.Background(), videoEntry); !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
	if len(appender.calls) != 0 {
		t.Fatalf("notes must not change on failure")
	}
}

func TestTranscribeEntryWithoutVideo(t *testing.T) {
	appender := &recordingAppender{}
	tr := NewTranscriber(stubClient{text: "x"}, appender, logger.Discard())
	entry := domain.LogEntry{Media: []domain.MediaRef{{URI: "file:///a.jpg", Type: domain.MediaPhoto}}}
	if _, err := tr.TranscribeEntry(context.Background(), entry); !errors.Is(err, ErrNotVideo) {
		t.Fatalf("expected ErrNotVideo, got %v", err)
	}
}
