package report

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/pkg/logger"
)

func entry(id string, status domain.Status, priority domain.Priority) domain.LogEntry {
	return domain.LogEntry{ID: id, Notes: id, Status: status, Priority: priority, Category: domain.CategoryGeneral}
}

func TestSortOrdersOpenBeforeCompletedThenPriority(t *testing.T) {
	input := []domain.LogEntry{
		entry("low-done", domain.StatusCompleted, domain.PriorityLow),
		entry("high", domain.StatusToDo, domain.PriorityHigh),
		entry("low", domain.StatusToDo, domain.PriorityLow),
		entry("medium", domain.StatusToDo, domain.PriorityMedium),
	}
	got := Sort(input)
	want := []string{"high", "medium", "low", "low-done"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
	if input[0].ID != "low-done" {
		t.Fatalf("Sort must not modify its input")
	}
}

func TestSortIsStable(t *testing.T) {
	input := []domain.LogEntry{
		entry("a", domain.StatusToDo, domain.PriorityMedium),
		entry("b", domain.StatusToDo, domain.PriorityMedium),
		entry("odd", domain.StatusToDo, "Urgent"),
		entry("c", domain.StatusToDo, domain.PriorityMedium),
	}
	got := Sort(input)
	ids := []string{got[0].ID, got[1].ID, got[2].ID, got[3].ID}
	if strings.Join(ids, ",") != "a,b,c,odd" {
		t.Fatalf("unexpected order %v", ids)
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("Kitchen  Refit\tPhase 2"); got != "SiteRight_Report_Kitchen__Refit_Phase_2.pdf" {
		t.Fatalf("unexpected file name %s", got)
	}
}

func TestGenerateMarkup(t *testing.T) {
	done := entry("Replace <hinge>", domain.StatusCompleted, domain.PriorityLow)
	done.CompletionNotes = "Fitted new hinge"
	done.ImageDataURLs = []string{"data:image/png;base64,AAAA"}
	open := entry(strings.Repeat("x", 60), domain.StatusToDo, domain.PriorityHigh)
	open.Assignee = "Sam"
	open.ImageDataURLs = []string{"data:image/png;base64,BBBB", "javascript:alert(1)"}

	markup, err := Generate(domain.Project{Name: "Flat <4>"}, []domain.LogEntry{done, open}, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, want := range []string{
		"<h1>Site Right Report</h1>",
		"Project: Flat &lt;4&gt;",
		"Snagging List Summary",
		"Replace &lt;hinge&gt;",
		"Completion: Fitted new hinge",
		`<tr class="completed">`,
		"<td>N/A</td>",
		"<td>Sam</td>",
		"background-color: #ef4444",
		`<div class="page-break"></div>`,
		"Annotated Photos",
		"Item: " + strings.Repeat("x", 50) + "...",
		"data:image/png;base64,BBBB",
	} {
		if !strings.Contains(markup, want) {
			t.Fatalf("markup missing %q", want)
		}
	}
	if strings.Contains(markup, "AAAA") {
		t.Fatalf("completed entries must not appear in the gallery")
	}
	if strings.Contains(markup, "javascript:") {
		t.Fatalf("non image sources must be dropped")
	}
	if strings.Index(markup, "xxxxxxxxxx") > strings.Index(markup, "Replace &lt;hinge&gt;") {
		t.Fatalf("open entry should be listed before completed entry")
	}
}

func TestGalleryKeepsLinkedImages(t *testing.T) {
	linked := entry("Chipped worktop", domain.StatusToDo, domain.PriorityMedium)
	linked.ImageDataURLs = []string{"https://cdn.example.com/a.png", "file:///sdcard/b.jpg", " "}
	scripted := entry("Loose socket", domain.StatusToDo, domain.PriorityHigh)
	scripted.ImageDataURLs = []string{"javascript:alert(1)", "vbscript:x"}

	markup, err := Generate(domain.Project{Name: "Unit 9"}, []domain.LogEntry{linked, scripted}, time.Now())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, want := range []string{"Item: Chipped worktop...", `src="https://cdn.example.com/a.png"`, `src="file:///sdcard/b.jpg"`} {
		if !strings.Contains(markup, want) {
			t.Fatalf("markup missing %q", want)
		}
	}
	if strings.Contains(markup, "Item: Loose socket") || strings.Contains(markup, "script:") {
		t.Fatalf("entry with only unsafe sources must not get a gallery section")
	}
}

type stubRenderer struct {
	pdf []byte
	err error
}

func (s stubRenderer) Render(context.Context, string) ([]byte, error) { return s.pdf, s.err }

func TestExportWritesFile(t *testing.T) {
	dir := t.TempDir()
	exp := NewExporter(stubRenderer{pdf: []byte("%PDF-1.4")}, DirSharer{Dir: dir}, logger.Discard())
	uri, err := exp.Export(context.Background(), domain.Project{ID: "p1", Name: "Site A"}, []domain.LogEntry{entry("a", domain.StatusToDo, domain.PriorityHigh)})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	path := filepath.Join(dir, "SiteRight_Report_Site_A.pdf")
	if !strings.HasSuffix(uri, path) || !strings.HasPrefix(uri, "file://") {
		t.Fatalf("unexpected uri %s", uri)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "%PDF-1.4" {
		t.Fatalf("unexpected file contents %q err=%v", data, err)
	}
}

func TestExportFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	exp := NewExporter(stubRenderer{err: errors.New("engine crashed")}, DirSharer{Dir: dir}, logger.Discard())
	_, err := exp.Export(context.Background(), domain.Project{Name: "Site"}, []domain.LogEntry{entry("a", domain.StatusToDo, domain.PriorityHigh)})
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	files, _ := os.ReadDir(dir)
	if len(files) != 0 {
		t.Fatalf("expected no files, found %d", len(files))
	}
}

func TestExportRefusesEmptyProject(t *testing.T) {
	exp := NewExporter(stubRenderer{pdf: []byte("x")}, DirSharer{Dir: t.TempDir()}, logger.Discard())
	_, err := exp.Export(context.Background(), domain.Project{Name: "Empty"}, nil)
	if !errors.Is(err, ErrGeneration) || !errors.Is(err, ErrNoEntries) {
		t.Fatalf("expected ErrNoEntries, got %v", err)
	}
}

func TestGotenbergRenderer(t *testing.T) {
	var gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forms/chromium/convert/html" {
			http.NotFound(w, r)
			return
		}
		file, _, err := r.FormFile("files")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		gotFile = string(data)
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	pdf, err := NewGotenbergRenderer(srv.URL, time.Second).Render(context.Background(), "<html></html>")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(pdf) != "%PDF" || gotFile != "<html></html>" {
		t.Fatalf("unexpected exchange pdf=%q file=%q", pdf, gotFile)
	}
}

func TestGotenbergRendererError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewGotenbergRenderer(srv.URL, time.Second).Render(context.Background(), "<html></html>"); err == nil {
		t.Fatal("expected error")
	}
}
