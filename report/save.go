package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/use-agent/qaprobe/models"
)

// Supported report formats.
const (
	FormatJSON     = "json"
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

var extensions = map[string]string{
	FormatJSON:     ".json",
	FormatHTML:     ".html",
	FormatMarkdown: ".md",
}

// NormalizeFormat maps user input to a supported format name, or "" if
// unsupported.
func NormalizeFormat(f string) string {
	switch strings.ToLower(strings.TrimSpace(f)) {
	case "json":
		return FormatJSON
	case "html", "htm":
		return FormatHTML
	case "markdown", "md":
		return FormatMarkdown
	}
	return ""
}

// Save writes r to dir once per requested format, named
// qa_report_YYYYMMDD_HHMMSS.<ext>. It returns the written paths. A format that
// fails is logged and skipped; an error is returned only when nothing was
// written.
func Save(r *models.Report, dir string, formats []string) ([]string, error) {
	return saveAt(r, dir, formats, time.Now())
}

func saveAt(r *models.Report, dir string, formats []string, now time.Time) ([]string, error) {
	if len(formats) == 0 {
		formats = []string{FormatJSON}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create dir: %w", err)
	}

	stem := "qa_report_" + now.Format("20060102_150405")
	var (
		paths   []string
		lastErr error
		seen    = make(map[string]bool)
	)
	for _, raw := range formats {
		format := NormalizeFormat(raw)
		if format == "" {
			slog.Warn("skipping unknown report format", "format", raw)
			continue
		}
		if seen[format] {
			continue
		}
		seen[format] = true

		data, err := Render(r, format)
		if err != nil {
			slog.Error("failed to render report", "format", format, "error", err)
			lastErr = err
			continue
		}
		path := filepath.Join(dir, stem+extensions[format])
		if err := os.WriteFile(path, data, 0o644); err != nil {
			slog.Error("failed to save report", "path", path, "error", err)
			lastErr = fmt.Errorf("report: write %s: %w", path, err)
			continue
		}
		slog.Info("report saved", "path", path)
		paths = append(paths, path)
	}

	if len(paths) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return paths, nil
}

// Render encodes r in the given format.
func Render(r *models.Report, format string) ([]byte, error) {
	switch NormalizeFormat(format) {
	case FormatJSON:
		return MarshalJSON(r)
	case FormatHTML:
		return renderHTML(r)
	case FormatMarkdown:
		return renderMarkdown(r)
	}
	return nil, fmt.Errorf("report: unsupported format %q", format)
}

// MarshalJSON encodes r with two-space indentation and without escaping
// HTML characters, so injected markup in descriptions stays readable.
func MarshalJSON(r *models.Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("report: encode json: %w", err)
	}
	return buf.Bytes(), nil
}

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"upper": func(s models.Severity) string { return strings.ToUpper(string(s)) },
	"inc":   func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>QA report for {{.TestInfo.TargetWebsite}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ddd; padding: 4px 8px; text-align: left; }
.critical { color: #b00020; } .high { color: #d9480f; } .medium { color: #b7791f; } .low { color: #2f855a; }
</style>
</head>
<body>
<h1>Comprehensive QA Testing Report</h1>
<p><strong>Target Website:</strong> {{.TestInfo.TargetWebsite}}<br>
<strong>Test Date:</strong> {{.TestInfo.TestDate}}<br>
<strong>Test Type:</strong> {{.TestInfo.TestType}}</p>
<h2>Summary</h2>
<table>
<tr><th>Total</th><th>Critical</th><th>High</th><th>Medium</th><th>Low</th></tr>
<tr><td>{{.Summary.TotalIssues}}</td><td>{{.Summary.CriticalIssues}}</td><td>{{.Summary.HighIssues}}</td><td>{{.Summary.MediumIssues}}</td><td>{{.Summary.LowIssues}}</td></tr>
</table>
{{- if .Analysis}}
<h2>Analysis</h2>
<p>{{.Analysis}}</p>
{{- end}}
<h2>Issues</h2>
{{- if .Issues}}
<table>
<tr><th>#</th><th>Severity</th><th>Type</th><th>Category</th><th>Description</th><th>Tester</th></tr>
{{- range $i, $is := .Issues}}
<tr><td>{{inc $i}}</td><td class="{{$is.Severity}}">{{upper $is.Severity}}</td><td>{{$is.Type}}</td><td>{{$is.Category}}</td><td>{{$is.Description}}</td><td>{{$is.Tester}}</td></tr>
{{- end}}
</table>
{{- else}}
<p>No issues found.</p>
{{- end}}
{{- if .Recommendations}}
<h2>Recommendations</h2>
{{- range .Recommendations}}
<h3>{{.Category}} ({{.Priority}} priority)</h3>
<p>{{.Description}}</p>
<ul>
{{- range .Actions}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- end}}
{{- end}}
</body>
</html>
`))

func renderHTML(r *models.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, r); err != nil {
		return nil, fmt.Errorf("report: render html: %w", err)
	}
	return buf.Bytes(), nil
}

var markdownConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(
			table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
		),
	),
)

// renderMarkdown renders the HTML report and converts it to Markdown.
func renderMarkdown(r *models.Report) ([]byte, error) {
	page, err := renderHTML(r)
	if err != nil {
		return nil, err
	}
	md, err := markdownConverter.ConvertString(string(page))
	if err != nil {
		return nil, fmt.Errorf("report: convert markdown: %w", err)
	}
	return []byte(md), nil
}
