package main

import (
	"context"
	"flag"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/viewstate"
)

func TestStringSliceCollectsRepeatedFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var photos stringSlice
	fs.Var(&photos, "photo", "")
	if err := fs.Parse([]string{"--photo", "a.jpg", "--photo", "b.jpg"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(photos) != 2 || photos[0] != "a.jpg" || photos[1] != "b.jpg" {
		t.Fatalf("unexpected photos %v", photos)
	}
	if photos.String() != "a.jpg,b.jpg" {
		t.Fatalf("unexpected string %q", photos.String())
	}
}

func TestTokenRoundTripsThroughConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)

	tokens := fileTokens{apiBase: "http://example.test"}
	if tok, err := tokens.LoadToken(); err != nil || tok != "" {
		t.Fatalf("expected empty token before save, got %q err %v", tok, err)
	}
	if err := tokens.SaveToken("abc"); err != nil {
		t.Fatalf("save: %v", err)
	}
	tok, err := tokens.LoadToken()
	if err != nil || tok != "abc" {
		t.Fatalf("expected abc, got %q err %v", tok, err)
	}
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.APIBaseURL != "http://example.test" {
		t.Fatalf("api base not persisted: %q", cfg.APIBaseURL)
	}
}

func TestLogLinesShowCompletionAndFlattenNotes(t *testing.T) {
	done := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	lines := logLines([]domain.LogEntry{
		{ID: "l1", Priority: domain.PriorityHigh, Category: domain.CategoryPlumbing, Status: domain.StatusToDo, Notes: "leak\nunder sink"},
		{ID: "l2", Priority: domain.PriorityLow, Category: domain.CategoryGeneral, Status: domain.StatusCompleted, CompletedAt: &done},
	})
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "leak under sink") {
		t.Fatalf("notes not flattened: %q", lines[0])
	}
	if !strings.Contains(lines[1], done.Local().Format(time.RFC3339)) {
		t.Fatalf("completion time missing: %q", lines[1])
	}
}

func TestWatchModelRefreshesOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 1)
	phase := viewstate.PhaseLoading
	rows := []watchRow(nil)
	m := newWatchModel(ctx, watchSource{
		Title:   "Logs: Kitchen",
		Changes: changes,
		Snapshot: func() (viewstate.Phase, error, []watchRow) {
			return phase, nil, rows
		},
	})
	if !strings.Contains(m.View(), "loading") {
		t.Fatalf("expected loading view, got %q", m.View())
	}

	phase = viewstate.PhaseReady
	rows = []watchRow{{Text: "l1\tHigh\tleak", Color: domain.PriorityHigh.Color()}}
	changes <- struct{}{}
	msg := m.wait()()
	if _, ok := msg.(changedMsg); !ok {
		t.Fatalf("expected changedMsg, got %T", msg)
	}
	m.Update(msg)
	if view := m.View(); !strings.Contains(view, "leak") || strings.Contains(view, "loading") {
		t.Fatalf("expected refreshed rows, got %q", view)
	}
}

func TestWatchModelQuitsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := newWatchModel(ctx, watchSource{
		Title:   "Projects",
		Changes: make(chan struct{}),
		Snapshot: func() (viewstate.Phase, error, []watchRow) {
			return viewstate.PhaseReady, nil, nil
		},
	})
	cancel()
	if _, ok := m.wait()().(tea.QuitMsg); !ok {
		t.Fatal("expected quit once the context is done")
	}
}
