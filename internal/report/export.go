package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	imrocreq "github.com/imroc/req/v3"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
)

var (
	// ErrGeneration wraps every failure to produce or hand over a report.
	ErrGeneration = errors.New("report generation failed")
	// ErrNoEntries is returned when a project has nothing to report.
	ErrNoEntries = errors.New("project has no log entries")
)

// Renderer turns report markup into a PDF document.
type Renderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// Sharer hands a finished document to the user and returns where it went.
type Sharer interface {
	Share(ctx context.Context, fileName string, pdf []byte) (string, error)
}

// GotenbergRenderer posts markup to a Gotenberg compatible HTML to PDF endpoint.
type GotenbergRenderer struct {
	baseURL string
	req     *imrocreq.Client
}

// NewGotenbergRenderer returns a renderer for the service at baseURL.
func NewGotenbergRenderer(baseURL string, timeout time.Duration) *GotenbergRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GotenbergRenderer{
		baseURL: strings.TrimRight(baseURL, "/"),
		req:     imrocreq.C().SetTimeout(timeout),
	}
}

// Render implements Renderer.
func (r *GotenbergRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	response, err := r.req.R().
		SetContext(ctx).
		SetFileReader("files", "index.html", strings.NewReader(html)).
		SetFormData(map[string]string{"printBackground": "true"}).
		Post(r.baseURL + "/forms/chromium/convert/html")
	if err != nil {
		return nil, fmt.Errorf("render request: %w", err)
	}
	if !response.IsSuccessState() {
		return nil, fmt.Errorf("renderer returned status %d: %s", response.StatusCode, strings.TrimSpace(response.String()))
	}
	pdf := response.Bytes()
	if len(pdf) == 0 {
		return nil, errors.New("renderer returned an empty document")
	}
	return pdf, nil
}

// DirSharer writes reports into a directory.
type DirSharer struct {
	Dir string
}

// Share writes pdf atomically and returns its file URI.
func (s DirSharer) Share(_ context.Context, fileName string, pdf []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, ".report-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(pdf); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close report: %w", err)
	}
	target := filepath.Join(s.Dir, fileName)
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("move report into place: %w", err)
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	return domain.FileURI(abs), nil
}

// Exporter runs the generate, render, share pipeline.
type Exporter struct {
	renderer Renderer
	sharer   Sharer
	logger   *slog.Logger
	now      func() time.Time
}

// NewExporter constructs an Exporter.
func NewExporter(renderer Renderer, sharer Sharer, logger *slog.Logger) *Exporter {
	return &Exporter{renderer: renderer, sharer: sharer, logger: logger, now: time.Now}
}

// Export produces the project's PDF and returns the shared file URI.
func (e *Exporter) Export(ctx context.Context, project domain.Project, entries []domain.LogEntry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: %w", ErrGeneration, ErrNoEntries)
	}
	markup, err := Generate(project, entries, e.now())
	if err != nil {
		return "", err
	}
	pdf, err := e.renderer.Render(ctx, markup)
	if err != nil {
		e.logger.Error("report render failed", "project_id", project.ID, "error", err)
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	uri, err := e.sharer.Share(ctx, FileName(project.Name), pdf)
	if err != nil {
		e.logger.Error("report share failed", "project_id", project.ID, "error", err)
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	e.logger.Info("report exported", "project_id", project.ID, "entries", len(entries), "uri", uri)
	return uri, nil
}
