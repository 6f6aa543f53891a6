package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/mediabatch/mediabatch-agent/internal/jobs"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Fragment names accepted by RenderFragment.
const (
	FragmentTabs = "tabs"
)

type buttonData struct {
	ID     string
	Action string
	Button Button
}

type progressData struct {
	Prefix   string
	Progress Progress
}

type pageData struct {
	Token string
	State State
}

var templates = template.Must(template.New("view").Funcs(template.FuncMap{
	"percent": FormatPercent,
	"button": func(id, action string, b Button) buttonData {
		return buttonData{ID: id, Action: action, Button: b}
	},
	"progress": func(prefix string, p Progress) progressData {
		return progressData{Prefix: prefix, Progress: p}
	},
}).ParseFS(templatesFS, "templates/*.html"))

// IsActive reports whether id is the active tab.
func (s State) IsActive(id string) bool {
	return s.ActiveTab() == jobs.Feature(id)
}

// RenderPage writes the full control page. token is embedded so the page
// can call back into the authenticated API.
func RenderPage(w io.Writer, s State, token string) error {
	return render(w, "page", pageData{Token: token, State: s})
}

// RenderFragment writes one section of the page: the tab bar or a pane by
// feature name.
func RenderFragment(w io.Writer, name string, s State) error {
	switch name {
	case FragmentTabs:
		return render(w, "tabs", s)
	case string(jobs.FeatureBatch):
		if s.Batch == nil {
			break
		}
		return render(w, "batch", s.Batch)
	case string(jobs.FeatureMerge):
		if s.Merge == nil {
			break
		}
		return render(w, "merge", s.Merge)
	case string(jobs.FeatureVoice):
		if s.Voice == nil {
			break
		}
		return render(w, "voice", s.Voice)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFragment, name)
}

// render executes into a buffer first so a template error never leaves a
// half-written response.
func render(w io.Writer, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
