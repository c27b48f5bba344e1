// Package report groups findings per watched person and renders the alert.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
)

// DefaultSubject is used when the renderer is configured without one.
const DefaultSubject = "Alerta de Monitoramento - Diário Oficial RN"

const timestampLayout = "02/01/2006 às 15:04:05"

// Aggregate groups findings by full name, keeping first-seen order for both
// groups and the findings within them.
func Aggregate(runID string, generatedAt time.Time, findings []gazette.Finding) gazette.Report {
	rep := gazette.Report{RunID: runID, GeneratedAt: generatedAt, Total: len(findings)}
	index := make(map[string]int)
	for _, f := range findings {
		i, ok := index[f.Person.FullName]
		if !ok {
			i = len(rep.Groups)
			index[f.Person.FullName] = i
			rep.Groups = append(rep.Groups, gazette.Group{FullName: f.Person.FullName})
		}
		rep.Groups[i].Findings = append(rep.Groups[i].Findings, f)
	}
	return rep
}

// Renderer turns a report into an HTML message.
type Renderer struct {
	subject  string
	location *time.Location
	tmpl     *template.Template
}

// NewRenderer builds a renderer. An empty subject uses DefaultSubject and a nil
// location renders timestamps in UTC.
func NewRenderer(subject string, location *time.Location) *Renderer {
	if subject == "" {
		subject = DefaultSubject
	}
	if location == nil {
		location = time.UTC
	}
	return &Renderer{
		subject:  subject,
		location: location,
		tmpl:     template.Must(template.New("alert").Funcs(template.FuncMap{"labels": labels}).Parse(alertTemplate)),
	}
}

// Render produces the notification message for rep.
func (r *Renderer) Render(rep gazette.Report) (gazette.Message, error) {
	var buf bytes.Buffer
	data := struct {
		gazette.Report
		Timestamp string
	}{
		Report:    rep,
		Timestamp: rep.GeneratedAt.In(r.location).Format(timestampLayout),
	}
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return gazette.Message{}, fmt.Errorf("render report: %w", err)
	}
	return gazette.Message{Subject: r.subject, HTMLBody: buf.String(), Report: rep}, nil
}

func labels(f gazette.Finding) string {
	return strings.Join(f.Labels(), ", ")
}

const alertTemplate = `<h1>Alerta de Monitoramento do Diário Oficial RN</h1>
<p><strong>Data/Hora:</strong> {{.Timestamp}}</p>
<p>Encontramos {{.Total}} resultado(s) novo(s):</p>
{{- range .Groups}}
<hr><h2>Resultados para: {{.FullName}}</h2>
{{- range .Findings}}
<div style="background: #f5f5f5; padding: 15px; margin: 10px 0; border-left: 4px solid #007cba;">
<p><strong>Fonte:</strong> {{.Document.Title}}</p>
<p><strong>Itens Encontrados:</strong> {{labels .}}</p>
<p><strong>Página:</strong> {{.Page}}</p>
<p><strong>Link:</strong> <a href="{{.Document.Location}}" target="_blank">Abrir Diário Oficial</a></p>
</div>
{{- end}}
{{- end}}
<hr><p><em>Este é um alerta automático do sistema de monitoramento.</em></p>
`
