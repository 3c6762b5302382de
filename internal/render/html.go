package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/fundboard/internal/analytics"
)

const panelTemplate = `{{define "panel"}}<section class="panel" id="panel-{{.View.Panel}}" data-state="{{.View.State}}">
<h2>{{.View.Title}}</h2>
{{- if eq .Kind "message"}}
<p class="message">{{.View.Message}}</p>
{{- else if eq .Kind "error"}}
<p class="error" style="color: red">{{.View.Message}}</p>
{{- else if eq .Kind "table"}}
<table style="width: 100%; border-collapse: collapse">
<thead><tr>{{range .View.Table.Headers}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>{{range .View.Table.Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}
</tbody>
</table>
{{- else if eq .Kind "chart"}}
<div class="chart">{{.SVG}}</div>
{{- else if eq .Kind "card"}}
<div class="card" style="max-width: 400px; border: 1px solid #ddd; border-radius: 4px; padding: 16px">
<h3>{{.View.Card.Title}}</h3>
<p>{{range $i, $f := .View.Card.Fields}}{{if $i}}<br>{{end}}<strong>{{$f.Label}}:</strong> {{$f.Value}}{{end}}</p>
</div>
{{- end}}
</section>{{end}}`

const pageTemplate = `{{define "page"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 1100px; margin: 0 auto; padding: 20px; }
.panels { display: grid; grid-template-columns: repeat(auto-fit, minmax(480px, 1fr)); gap: 24px; }
.panel[data-state="loading"] { opacity: 0.6; }
th, td { border-bottom: 1px solid #eee; padding: 4px 8px; text-align: right; }
th:first-child, td:first-child { text-align: left; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<form id="selection" method="get" action="/">
<label>Symbol <input name="symbol" value="{{.Selection.Symbol}}" required></label>
<label>Strategy <select name="strategy">{{range .Strategies}}
<option value="{{.}}"{{if eq . $.Selection.Strategy}} selected{{end}}>{{.}}</option>{{end}}
</select></label>
<button type="submit">Show</button>
</form>
<div class="panels">
{{range .Panels}}{{.}}
{{end}}</div>
{{if .LiveUpdates}}<script>
(function () {
  var form = document.getElementById("selection");
  if (!window.WebSocket || !form) { return; }
  var proto = location.protocol === "https:" ? "wss:" : "ws:";
  var ws = new WebSocket(proto + "//" + location.host + "/ws" + location.search);
  function send() {
    ws.send(JSON.stringify({ symbol: form.symbol.value, strategy: form.strategy.value }));
  }
  ws.onopen = send;
  ws.onmessage = function (ev) {
    var msg = JSON.parse(ev.data);
    var el = document.getElementById("panel-" + msg.panel);
    if (el) { el.outerHTML = msg.html; }
  };
  form.addEventListener("submit", function (e) {
    e.preventDefault();
    if (ws.readyState !== WebSocket.OPEN) { form.submit(); return; }
    send();
    history.replaceState(null, "", "?symbol=" + encodeURIComponent(form.symbol.value) +
      "&strategy=" + encodeURIComponent(form.strategy.value));
  });
  form.strategy.addEventListener("change", function () {
    if (ws.readyState === WebSocket.OPEN) { send(); }
  });
})();
</script>{{end}}
</body>
</html>{{end}}`

var templates = template.Must(template.New("fundboard").Parse(panelTemplate + pageTemplate))

// PageData is the dashboard shell document
type PageData struct {
	Title       string
	Selection   analytics.Selection
	Strategies  []string
	Panels      []template.HTML
	LiveUpdates bool
}

type panelData struct {
	View View
	Kind string
	SVG  template.HTML
}

// PanelHTML renders one panel as an HTML fragment. A chart that cannot be
// drawn degrades to an error message inside the same panel.
func PanelHTML(v View) (template.HTML, error) {
	data := panelData{View: v, Kind: v.Kind.String()}

	if v.Kind == KindChart {
		svg, err := ChartSVG(v.Chart)
		if err != nil {
			log.Warn().Err(err).Str("panel", v.Panel).Msg("Chart rendering failed")
			data.Kind = KindError.String()
			data.View.Message = errorPrefix + err.Error()
		} else {
			// SVG is generated locally from sanitized labels and numeric values
			data.SVG = template.HTML(svg)
		}
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "panel", data); err != nil {
		return "", fmt.Errorf("render panel %s: %w", v.Panel, err)
	}
	return template.HTML(buf.String()), nil
}

// WritePanelHTML writes one panel fragment to w
func WritePanelHTML(w io.Writer, v View) error {
	h, err := PanelHTML(v)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, string(h))
	return err
}

// WritePageHTML renders the full dashboard document
func WritePageHTML(w io.Writer, page PageData) error {
	if page.Title == "" {
		page.Title = "Trading Fund Dashboard"
	}
	return templates.ExecuteTemplate(w, "page", page)
}

// PagePanels renders views to fragments, keeping page order
func PagePanels(views []View) ([]template.HTML, error) {
	out := make([]template.HTML, 0, len(views))
	for _, v := range views {
		h, err := PanelHTML(v)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
