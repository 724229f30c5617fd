// Package reports exports the targets of a workspace as JSON, YAML or Markdown.
package reports

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tldr-it-stepankutaj/reconkit/internal/target"
)

// Format is an export encoding.
type Format string

const (
	JSON     Format = "json"
	YAML     Format = "yaml"
	Markdown Format = "md"
)

// ParseFormat accepts the format names and their common aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "md", "markdown":
		return Markdown, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string { return string(f) }

// Report is an export of one workspace.
type Report struct {
	Title      string     `json:"title" yaml:"title"`
	Targets    []Entry    `json:"targets" yaml:"targets"`
	Statistics Statistics `json:"statistics" yaml:"statistics"`
	Metadata   Metadata   `json:"metadata" yaml:"metadata"`
}

// Entry is one exported target. Fields holds everything except name, type and parent.
type Entry struct {
	ID     int64             `json:"id" yaml:"id"`
	Type   string            `json:"type" yaml:"type"`
	Name   string            `json:"name" yaml:"name"`
	Parent int64             `json:"parent,omitempty" yaml:"parent,omitempty"`
	Groups []string          `json:"groups,omitempty" yaml:"groups,omitempty"`
	Fields map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

type TypeCount struct {
	Type  string `json:"type" yaml:"type"`
	Count int    `json:"count" yaml:"count"`
}

type Statistics struct {
	Total  int         `json:"total" yaml:"total"`
	ByType []TypeCount `json:"by_type" yaml:"by_type"`
}

type Metadata struct {
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	GeneratedBy string    `json:"generated_by" yaml:"generated_by"`
	Workspace   string    `json:"workspace" yaml:"workspace"`
}

// Builder helps construct reports.
type Builder struct {
	report *Report
}

func NewBuilder() *Builder {
	return &Builder{report: &Report{Targets: make([]Entry, 0)}}
}

func (b *Builder) SetTitle(title string) *Builder {
	b.report.Title = title
	return b
}

func (b *Builder) SetMetadata(meta Metadata) *Builder {
	b.report.Metadata = meta
	return b
}

// AddTarget appends t with the names of the groups it belongs to.
func (b *Builder) AddTarget(t target.Target, groups ...string) *Builder {
	fields := t.Fields()
	delete(fields, target.FieldName)
	delete(fields, target.FieldType)
	delete(fields, target.FieldParent)
	if len(fields) == 0 {
		fields = nil
	}
	var gs []string
	if len(groups) > 0 {
		gs = append(gs, groups...)
		sort.Strings(gs)
	}
	b.report.Targets = append(b.report.Targets, Entry{
		ID:     t.ID,
		Type:   t.Type.String(),
		Name:   t.Name,
		Parent: t.ParentID,
		Groups: gs,
		Fields: fields,
	})
	return b
}

// Build orders targets by id and fills the statistics.
func (b *Builder) Build() *Report {
	r := b.report
	sort.SliceStable(r.Targets, func(i, j int) bool { return r.Targets[i].ID < r.Targets[j].ID })

	counts := make(map[string]int)
	for _, e := range r.Targets {
		counts[e.Type]++
	}
	r.Statistics = Statistics{Total: len(r.Targets), ByType: make([]TypeCount, 0, len(counts))}
	for typ, n := range counts {
		r.Statistics.ByType = append(r.Statistics.ByType, TypeCount{Type: typ, Count: n})
	}
	sort.Slice(r.Statistics.ByType, func(i, j int) bool {
		return r.Statistics.ByType[i].Type < r.Statistics.ByType[j].Type
	})
	if r.Title == "" {
		r.Title = fmt.Sprintf("Reconnaissance report: %s", r.Metadata.Workspace)
	}
	return r
}

// Export writes the report to path in the given format.
func (r *Report) Export(path string, format Format) error {
	switch format {
	case JSON:
		return r.ExportJSON(path)
	case YAML:
		return r.ExportYAML(path)
	case Markdown:
		return r.ExportMarkdown(path)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func (r *Report) ExportJSON(path string) error {
	return writeFile(path, r.encodeJSON)
}

func (r *Report) ExportYAML(path string) error {
	return writeFile(path, r.encodeYAML)
}

func (r *Report) ExportMarkdown(path string) error {
	return writeFile(path, r.encodeMarkdown)
}

// RenderToString renders the report in the given format.
func (r *Report) RenderToString(format Format) (string, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case JSON:
		err = r.encodeJSON(&buf)
	case YAML:
		err = r.encodeYAML(&buf)
	case Markdown:
		err = r.encodeMarkdown(&buf)
	default:
		err = fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeFile(path string, encode func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := encode(w); err != nil {
		return err
	}
	return w.Flush()
}

func (r *Report) encodeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func (r *Report) encodeYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

const markdownTemplate = `# {{ .Title }}

**Workspace:** {{ .Metadata.Workspace }}
**Generated:** {{ .Metadata.GeneratedAt.Format "2006-01-02 15:04:05" }}
**Generated By:** {{ .Metadata.GeneratedBy }}

---

## Statistics

| Type | Targets |
|------|---------|
{{ range .Statistics.ByType }}| {{ .Type }} | {{ .Count }} |
{{ end }}| **Total** | {{ .Statistics.Total }} |

---

## Targets

{{ if .Targets }}| ID | Type | Name | Parent | Groups | Details |
|----|------|------|--------|--------|---------|
{{ range .Targets }}| {{ .ID }} | {{ .Type }} | {{ cell .Name }} | {{ if .Parent }}{{ .Parent }}{{ end }} | {{ cell (Join .Groups ", ") }} | {{ details .Fields }} |
{{ end }}{{ else }}No targets recorded.
{{ end }}
---

## Hierarchy

` + "```" + `
{{ tree }}` + "```" + `
`

func (r *Report) encodeMarkdown(w io.Writer) error {
	funcs := template.FuncMap{
		"Join":    strings.Join,
		"cell":    cell,
		"details": details,
		"tree":    func() string { return BuildTree(r.Targets).GenerateASCII() },
	}
	t, err := template.New("report").Funcs(funcs).Parse(markdownTemplate)
	if err != nil {
		return err
	}
	return t.Execute(w, r)
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func details(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fields[k])
	}
	return cell(strings.Join(parts, ", "))
}
