// Package report renders the trace of a synthesis run as text, markdown or
// csv, using text/template with the sprig function library.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/holysaw/holysaw"
	"github.com/holysaw/holysaw/meter"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type (
	Reporter struct {
		Template *template.Template
	}

	// Format selects the template a report is rendered with.
	Format int

	// Macros is the data the templates are executed with.
	Macros struct {
		Title      string
		Song       holysaw.Song
		Samples    int
		DurationMs float64
		Trace      holysaw.Trace
		Malformed  []*holysaw.MalformedCellError
		Recovered  int
		Level      meter.Level
		Loudness   meter.Decibel
		TruePeak   meter.Decibel
	}
)

const (
	Text Format = iota
	Markdown
	CSV
)

var formats = [...]struct{ name, template, ext string }{
	Text:     {"text", "text.tmpl", ".txt"},
	Markdown: {"markdown", "markdown.tmpl", ".md"},
	CSV:      {"csv", "csv.tmpl", ".csv"},
}

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

// ParseFormat converts "text", "markdown" (or "md") or "csv" to a Format.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(s)
	if s == "md" {
		return Markdown, nil
	}
	for i, f := range formats {
		if f.name == s {
			return Format(i), nil
		}
	}
	return Text, fmt.Errorf("unknown report format %q (want text, markdown or csv)", s)
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formats) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formats[f].name
}

// Extension returns the file extension of reports in this format.
func (f Format) Extension() string {
	if f < 0 || int(f) >= len(formats) {
		return ".txt"
	}
	return formats[f].ext
}

// New returns a reporter using the built-in templates.
func New() (*Reporter, error) {
	return newFromFS(defaultTemplates, "templates/*.tmpl")
}

// NewFromTemplates returns a reporter using the *.tmpl templates found in
// templateDirectory, e.g. to customize the report layout.
func NewFromTemplates(templateDirectory string) (*Reporter, error) {
	r, err := newFromFS(os.DirFS(templateDirectory), "*.tmpl")
	if err != nil {
		return nil, fmt.Errorf(`could not create template based on directory "%v": %w`, templateDirectory, err)
	}
	return r, nil
}

func newFromFS(fsys fs.FS, pattern string) (*Reporter, error) {
	tmpl, err := template.New("base").Funcs(sprig.TxtFuncMap()).Funcs(funcs).ParseFS(fsys, pattern)
	if err != nil {
		return nil, err
	}
	return &Reporter{Template: tmpl}, nil
}

// NewMacros collects what the templates need from a song and the result of
// synthesizing it.
func NewMacros(song holysaw.Song, res *holysaw.Result) *Macros {
	name := strings.TrimSpace(song.Name)
	if name == "" {
		name = "untitled"
	}
	return &Macros{
		Title:      cases.Title(language.English).String(name),
		Song:       song,
		Samples:    len(res.Samples),
		DurationMs: res.Samples.DurationMs(),
		Trace:      res.Trace,
		Malformed:  res.Malformed,
		Recovered:  res.Recovered,
		Level:      meter.Summary(res.Samples),
		Loudness:   meter.Loudness(res.Samples, meter.KWeighting),
		TruePeak:   meter.TruePeak(res.Samples),
	}
}

// Render executes the template of the given format.
func (r *Reporter) Render(format Format, macros *Macros) ([]byte, error) {
	if format < 0 || int(format) >= len(formats) {
		return nil, fmt.Errorf("unknown report format %v", format)
	}
	name := formats[format].template
	var b bytes.Buffer
	if err := r.Template.ExecuteTemplate(&b, name, macros); err != nil {
		return nil, fmt.Errorf(`could not execute template "%v": %w`, name, err)
	}
	return b.Bytes(), nil
}

var funcs = template.FuncMap{
	"steps": func(l holysaw.TraceLine) string {
		s := make([]string, len(l.Steps))
		for i, step := range l.Steps {
			s[i] = step.String()
		}
		return strings.Join(s, "; ")
	},
	"csvField": func(s string) string {
		if !strings.ContainsAny(s, "\",\n\r") {
			return s
		}
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	},
	"mdCell": func(s string) string {
		return strings.NewReplacer("|", `\|`, "\n", "<br>").Replace(s)
	},
}
