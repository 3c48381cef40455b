package report

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
)

const galleryHeadingRunes = 50

// Sort orders entries for the report: open items before completed ones, then
// by priority rank. Equal keys keep their input order.
func Sort(entries []domain.LogEntry) []domain.LogEntry {
	sorted := append([]domain.LogEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := sorted[i].Completed(), sorted[j].Completed()
		if ci != cj {
			return !ci
		}
		return sorted[i].Priority.Rank() < sorted[j].Priority.Rank()
	})
	return sorted
}

var whitespace = regexp.MustCompile(`\s`)

// FileName is the exported PDF name for a project.
func FileName(projectName string) string {
	return "SiteRight_Report_" + whitespace.ReplaceAllString(projectName, "_") + ".pdf"
}

type row struct {
	Completed       bool
	DotStyle        template.CSS
	Priority        string
	Category        string
	Assignee        string
	Notes           string
	CompletionNotes string
}

type gallerySection struct {
	Heading string
	Images  []template.URL
}

type document struct {
	ProjectName string
	GeneratedAt string
	Rows        []row
	Gallery     []gallerySection
}

// Generate renders the report markup for project.
func Generate(project domain.Project, entries []domain.LogEntry, generatedAt time.Time) (string, error) {
	sorted := Sort(entries)
	doc := document{
		ProjectName: project.Name,
		GeneratedAt: generatedAt.Format("2 Jan 2006, 15:04:05 MST"),
		Rows: lo.Map(sorted, func(e domain.LogEntry, _ int) row {
			return row{
				Completed:       e.Completed(),
				DotStyle:        template.CSS("background-color: " + e.Priority.Color()),
				Priority:        string(e.Priority),
				Category:        string(e.Category),
				Assignee:        lo.Ternary(strings.TrimSpace(e.Assignee) == "", "N/A", e.Assignee),
				Notes:           e.Notes,
				CompletionNotes: e.CompletionNotes,
			}
		}),
		Gallery: lo.FilterMap(sorted, func(e domain.LogEntry, _ int) (gallerySection, bool) {
			if e.Completed() {
				return gallerySection{}, false
			}
			images := lo.FilterMap(e.ImageDataURLs, func(uri string, _ int) (template.URL, bool) {
				return imageSource(uri)
			})
			if len(images) == 0 {
				return gallerySection{}, false
			}
			return gallerySection{Heading: truncate(e.Notes, galleryHeadingRunes) + "...", Images: images}, true
		}),
	}
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("%w: render markup: %v", ErrGeneration, err)
	}
	return buf.String(), nil
}

// imageSource accepts inline image data and http, https or file URLs. Other
// schemes would run script in the renderer and are left out.
func imageSource(uri string) (template.URL, bool) {
	uri = strings.TrimSpace(uri)
	if strings.HasPrefix(strings.ToLower(uri), "data:image/") {
		return template.URL(uri), true
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "file":
		return template.URL(uri), true
	default:
		return "", false
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

var reportTemplate = template.Must(template.New("report").Parse(`<html>
  <head>
    <meta charset="utf-8">
    <style>
      body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; font-size: 12px; color: #333; }
      h1 { font-size: 24px; color: #1e40af; }
      h2 { font-size: 20px; border-bottom: 1px solid #eee; padding-bottom: 5px; }
      table { width: 100%; border-collapse: collapse; margin-top: 20px; }
      th, td { border: 1px solid #ddd; padding: 8px; text-align: left; word-break: break-word; }
      th { background-color: #1e40af; color: white; }
      .priority-dot { height: 10px; width: 10px; border-radius: 5px; display: inline-block; margin-right: 5px; }
      .completed { color: #888; background-color: #f9f9f9; }
      .completed td { text-decoration: line-through; }
      .page-break { page-break-after: always; }
      .image-section { margin-top: 20px; border-top: 1px solid #ccc; padding-top: 15px; }
      .image-container { display: flex; flex-wrap: wrap; }
      img { width: 100%; height: auto; margin-top: 10px; border: 1px solid #eee; }
    </style>
  </head>
  <body>
    <h1>Site Right Report</h1>
    <h2>Project: {{.ProjectName}}</h2>
    <p>Report generated on: {{.GeneratedAt}}</p>

    <h3>Snagging List Summary</h3>
    <table>
      <thead>
        <tr>
          <th>Priority</th>
          <th>Category</th>
          <th>Assigned To</th>
          <th>Notes</th>
        </tr>
      </thead>
      <tbody>
{{- range .Rows}}
        <tr class="{{if .Completed}}completed{{end}}">
          <td><span class="priority-dot" style="{{.DotStyle}}"></span> {{.Priority}}</td>
          <td>{{.Category}}</td>
          <td>{{.Assignee}}</td>
          <td>{{.Notes}}{{if .CompletionNotes}} <br><small><em>Completion: {{.CompletionNotes}}</em></small>{{end}}</td>
        </tr>
{{- end}}
      </tbody>
    </table>

    <div class="page-break"></div>

    <h2>Annotated Photos</h2>
{{- range .Gallery}}
    <div class="image-section">
      <h3>Item: {{.Heading}}</h3>
      <div class="image-container">{{range .Images}}<img src="{{.}}" alt="Annotated photo" />{{end}}</div>
    </div>
{{- end}}
  </body>
</html>
`))
