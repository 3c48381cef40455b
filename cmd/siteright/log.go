package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/Richiestixx/SiteRightApp/internal/capture"
	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/transcribe"
	"github.com/Richiestixx/SiteRightApp/internal/viewstate"
	apiclient "github.com/Richiestixx/SiteRightApp/pkg/api/client"
)

type stringSlice []string

func (s *stringSlice) String() string { return strings.Join(*s, ",") }

func (s *stringSlice) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func commandLog(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: siteright log [list|add|complete|transcribe|watch]")
	}
	switch args[0] {
	case "list":
		return logList(ctx, args[1:])
	case "add":
		return logAdd(ctx, args[1:])
	case "complete":
		return logComplete(ctx, args[1:])
	case "transcribe":
		return logTranscribe(ctx, args[1:])
	case "watch":
		return logWatch(ctx, args[1:])
	default:
		return fmt.Errorf("unknown log command: %s", args[0])
	}
}

// openProject resolves the project and opens its live view.
func openProject(ctx context.Context, a *app, projectID string, opts ...viewstate.ViewOption) (*viewstate.ProjectView, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("--project is required")
	}
	project, err := a.client.GetProject(ctx, a.id.Token, projectID)
	if err != nil {
		return nil, err
	}
	return viewstate.OpenProjectView(ctx, project, a.store, a.log, opts...)
}

// awaitSnapshot blocks until the view has its first snapshot or failed.
func awaitSnapshot(ctx context.Context, view *viewstate.ProjectView) (viewstate.State[domain.LogEntry], error) {
	for {
		state := view.State()
		switch state.Phase {
		case viewstate.PhaseReady:
			return state, nil
		case viewstate.PhaseFailed:
			return state, state.Err
		}
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-view.Changes():
		}
	}
}

func logList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("log list", flag.ExitOnError)
	projectID := fs.String("project", "", "Project ID")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	if *projectID == "" {
		return errors.New("--project is required")
	}
	a, err := connect(ctx, "", *verbose)
	if err != nil {
		return err
	}
	entries, err := a.client.ListLogs(ctx, a.id.Token, *projectID)
	if err != nil {
		return err
	}
	for _, line := range logLines(entries) {
		fmt.Println(line)
	}
	return nil
}

func logAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("log add", flag.ExitOnError)
	projectID := fs.String("project", "", "Project ID")
	notes := fs.String("notes", "", "What needs doing")
	priority := fs.String("priority", string(domain.DefaultPriority), "High, Medium or Low")
	category := fs.String("category", string(domain.DefaultCategory), "Trade category")
	assignee := fs.String("assignee", "", "Who should fix it")
	var photos, videos stringSlice
	fs.Var(&photos, "photo", "Photo file to attach (repeatable)")
	fs.Var(&videos, "video", "Video file to attach (repeatable)")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	a, err := connect(ctx, "", *verbose)
	if err != nil {
		return err
	}
	view, err := openProject(ctx, a, *projectID)
	if err != nil {
		return err
	}
	defer view.Close()

	draft := view.Draft()
	draft.SetNotes(*notes)
	draft.SetPriority(domain.Priority(*priority))
	draft.SetCategory(domain.Category(*category))
	draft.SetAssignee(*assignee)

	if err := attachMedia(ctx, a, draft, photos, videos); err != nil {
		return err
	}

	entry, err := draft.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("log created: %s (%s, %s, %d media)\n", entry.ID, entry.Priority, entry.Category, len(entry.Media))
	return nil
}

// attachMedia runs each file through a capture screen so it lands in the
// draft exactly as camera captures would.
func attachMedia(ctx context.Context, a *app, draft *viewstate.Draft, photos, videos []string) error {
	if len(photos) == 0 && len(videos) == 0 {
		return nil
	}
	device := &capture.FileDevice{}
	screen, err := capture.NewScreen(device, capture.GrantAll(), draft, a.log)
	if err != nil {
		return err
	}
	for _, path := range photos {
		device.PhotoPath = path
		if _, err := screen.TakePhoto(ctx); err != nil {
			return err
		}
	}
	for _, path := range videos {
		device.VideoPath = path
		if err := screen.StartRecording(ctx); err != nil {
			return err
		}
		if err := screen.StopRecording(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-screen.Results():
			if res.Err != nil {
				return res.Err
			}
		}
	}
	return nil
}

func logComplete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("log complete", flag.ExitOnError)
	projectID := fs.String("project", "", "Project ID")
	logID := fs.String("log", "", "Log ID")
	notes := fs.String("notes", "", "Completion notes")
	expected := fs.Int64("expected-version", -1, "Reject the update unless the entry is at this version")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	if *projectID == "" || *logID == "" {
		return errors.New("--project and --log are required")
	}
	a, err := connect(ctx, "", *verbose)
	if err != nil {
		return err
	}

	var entry domain.LogEntry
	if *expected >= 0 {
		entry, err = a.client.CompleteLog(ctx, a.id.Token, *projectID, *logID, apiclient.CompleteInput{
			Notes:           *notes,
			ExpectedVersion: expected,
		})
	} else {
		var view *viewstate.ProjectView
		view, err = openProject(ctx, a, *projectID)
		if err != nil {
			return err
		}
		defer view.Close()
		entry, err = view.MarkComplete(ctx, *logID, *notes)
	}
	if err != nil {
		return err
	}
	fmt.Printf("log %s completed at %s\n", entry.ID, formatTime(entry.CompletedAt))
	return nil
}

func logTranscribe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("log transcribe", flag.ExitOnError)
	projectID := fs.String("project", "", "Project ID")
	logID := fs.String("log", "", "Log ID")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	if *logID == "" {
		return errors.New("--log is required")
	}
	a, err := connect(ctx, "", *verbose)
	if err != nil {
		return err
	}
	transcriber := transcribe.NewTranscriber(transcribe.NewClient(a.env, a.log), a.store, a.log)
	view, err := openProject(ctx, a, *projectID, viewstate.WithTranscriber(transcriber))
	if err != nil {
		return err
	}
	defer view.Close()

	if _, err := awaitSnapshot(ctx, view); err != nil {
		return err
	}
	updated, err := view.Transcribe(ctx, *logID)
	if err != nil {
		return err
	}
	fmt.Println(updated.Notes)
	return nil
}

func logWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("log watch", flag.ExitOnError)
	projectID := fs.String("project", "", "Project ID")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	a, err := connect(ctx, "", *verbose)
	if err != nil {
		return err
	}
	view, err := openProject(ctx, a, *projectID)
	if err != nil {
		return err
	}
	defer view.Close()

	return runWatch(ctx, watchSource{
		Title:   "Logs: " + view.Project().Name,
		Changes: view.Changes(),
		Snapshot: func() (viewstate.Phase, error, []watchRow) {
			state := view.State()
			lines := logLines(state.Items)
			rows := make([]watchRow, len(lines))
			for i, e := range state.Items {
				rows[i] = watchRow{Text: lines[i], Color: e.Priority.Color()}
			}
			return state.Phase, state.Err, rows
		},
	})
}

func logLines(entries []domain.LogEntry) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		status := string(e.Status)
		if e.Completed() {
			status += " " + formatTime(e.CompletedAt)
		}
		notes := strings.ReplaceAll(e.Notes, "\n", " ")
		lines = append(lines, fmt.Sprintf("%s\t%-6s\t%-11s\t%s\t%s", e.ID, e.Priority, e.Category, status, notes))
	}
	return lines
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}
