package ui

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
)

// indexPage is the data behind the dashboard page.
type indexPage struct {
	Environment string
	Models      []ModelView
	Rules       []RuleView
	Runs        []RunView
	Notice      string
}

func (s *Server) indexData() (indexPage, error) {
	models, err := s.modelViews()
	if err != nil {
		return indexPage{}, err
	}
	runs, err := s.runViews(defaultRunLimit)
	if err != nil {
		return indexPage{}, err
	}
	return indexPage{
		Environment: s.pipeline.Environment(),
		Models:      models,
		Rules:       s.ruleViews(),
		Runs:        runs,
	}, nil
}

// renderUpdate returns the fragment patched into the page for ev.
func (s *Server) renderUpdate(ev Event) (templ.Component, error) {
	if ev.Kind == EventRawChanged {
		return Notice(ev.Detail + " changed since the last run"), nil
	}
	runs, err := s.runViews(defaultRunLimit)
	if err != nil {
		return nil, err
	}
	return RunsTable(runs), nil
}

// html writes markup and keeps the first write error.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(parts ...string) {
	for _, p := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, p)
	}
}

func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *html) cell(class, s string) {
	if class != "" {
		h.raw(`<td class="`, templ.EscapeString(class), `">`)
	} else {
		h.raw("<td>")
	}
	h.text(s)
	h.raw("</td>")
}

func (h *html) header(cols ...string) {
	h.raw("<thead><tr>")
	for _, c := range cols {
		h.raw("<th>")
		h.text(c)
		h.raw("</th>")
	}
	h.raw("</tr></thead>")
}

const pageStyle = `body { font-family: system-ui, sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; margin-bottom: 2rem; }
th, td { padding: .3rem .8rem; border-bottom: 1px solid #ddd; text-align: left; }
.completed, .success { color: #1a7f37; }
.failed { color: #cf222e; }
.partial, .warn { color: #9a6700; }
#notice:not(:empty) { background: #fff8c5; padding: .5rem 1rem; margin-bottom: 1rem; }`

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.5/bundles/datastar.js"

// IndexPage renders the full dashboard.
func IndexPage(p indexPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>LeapFlow · `)
		h.text(p.Environment)
		h.raw(`</title><script type="module" src="`, datastarScript, `"></script><style>`, pageStyle, `</style></head>`)
		h.raw(`<body data-init="@get('/updates')"><h1>LeapFlow <small>`)
		h.text(p.Environment)
		h.raw(`</small></h1>`)
		if h.err != nil {
			return h.err
		}
		if err := Notice(p.Notice).Render(ctx, w); err != nil {
			return err
		}

		h.raw(`<button data-on:click="@post('/api/run')">Run pipeline</button><h2>Runs</h2><table>`)
		h.header("Run", "Status", "Started", "Duration", "Error")
		if h.err != nil {
			return h.err
		}
		if err := RunsTable(p.Runs).Render(ctx, w); err != nil {
			return err
		}
		h.raw(`</table>`)

		h.raw(`<h2>Models</h2><table>`)
		h.header("Model", "Layer", "Reads", "Depends on", "Cast policy")
		h.raw("<tbody>")
		for _, m := range p.Models {
			h.raw("<tr>")
			h.cell("", m.Name)
			h.cell("", m.Layer)
			h.cell("", strings.Join(m.Reads, ", "))
			h.cell("", strings.Join(m.DependsOn, ", "))
			h.cell("", m.CastPolicy)
			h.raw("</tr>")
		}
		h.raw("</tbody></table>")

		h.raw(`<h2>Rules</h2><table>`)
		h.header("Rule", "Table", "Kind", "Severity")
		h.raw("<tbody>")
		for _, r := range p.Rules {
			h.raw(`<tr><td title="`, templ.EscapeString(r.Description), `">`)
			h.text(r.Name)
			h.raw("</td>")
			h.cell("", r.Table)
			h.cell("", r.Kind)
			h.cell(r.Severity, r.Severity)
			h.raw("</tr>")
		}
		h.raw("</tbody></table></body></html>")
		return h.err
	})
}

// Notice renders the banner shown when raw inputs change.
func Notice(text string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<div id="notice">`)
		h.text(text)
		h.raw(`</div>`)
		return h.err
	})
}

// RunsTable renders the body of the runs table, newest first.
func RunsTable(runs []RunView) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<tbody id="runs">`)
		if len(runs) == 0 {
			h.raw(`<tr><td colspan="5">No runs yet</td></tr>`)
		}
		for _, run := range runs {
			h.raw(`<tr><td><a href="`, templ.EscapeString(string(templ.URL("/api/runs/"+run.ID))), `">`)
			h.text(run.ID)
			h.raw("</a></td>")
			h.cell(run.Status, run.Status)
			h.cell("", ago(run.StartedAt))
			h.cell("", runDuration(run))
			h.cell("", run.Error)
			h.raw("</tr>")
		}
		h.raw("</tbody>")
		return h.err
	})
}

func ago(t time.Time) string {
	return time.Since(t).Round(time.Second).String() + " ago"
}

func runDuration(run RunView) string {
	if run.CompletedAt == nil {
		return ""
	}
	ms := run.CompletedAt.Sub(run.StartedAt).Milliseconds()
	return strconv.FormatInt(ms, 10) + "ms"
}
