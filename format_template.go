package plog

import (
	"fmt"
	"text/template"
	"time"

	"github.com/valyala/bytebufferpool"
)

// DefaultTemplate reproduces the PlainText layout as a template.
const DefaultTemplate = `{{.Time}} [{{.Level}}]: {{.Message}}`

// Template renders records through text/template. Available data:
// .Level .Time .When .Task .File .Line .Function .Message .Fields and
// {{.Field "key"}} for a single field value.
type Template struct {
	layout   string
	def      *template.Template
	perLevel map[Level]*template.Template
}

// NewTemplate parses text. A parse error is a configuration error.
func NewTemplate(text string) (*Template, error) {
	return NewLevelTemplate(text, nil)
}

// NewLevelTemplate parses a default template plus per-level overrides.
func NewLevelTemplate(text string, perLevel map[Level]string) (*Template, error) {
	def, err := parseTemplate("format", text)
	if err != nil {
		return nil, err
	}
	t := &Template{def: def}
	if len(perLevel) > 0 {
		t.perLevel = make(map[Level]*template.Template, len(perLevel))
		for lvl, txt := range perLevel {
			tmpl, err := parseTemplate(fmt.Sprintf("format[%s]", lvl), txt)
			if err != nil {
				return nil, err
			}
			t.perLevel[ClampLevel(lvl)] = tmpl
		}
	}
	return t, nil
}

// WithTimeLayout sets the layout used for .Time and time-valued fields.
func (t *Template) WithTimeLayout(layout string) *Template {
	t.layout = layout
	return t
}

func parseTemplate(field, text string) (*template.Template, error) {
	tmpl, err := template.New(field).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, &ConfigError{Field: field, Reason: "failed to parse template", Err: err}
	}
	return tmpl, nil
}

// templateData is the value templates execute against.
type templateData struct {
	Level    string
	Time     string
	When     time.Time
	Task     string
	File     string
	Line     int
	Function string
	Message  string
	Fields   string

	rec    *Record
	layout string
}

// Field renders the value of the first field with key k, or "" if absent.
func (d templateData) Field(k string) string {
	f, ok := d.rec.Field(k)
	if !ok {
		return ""
	}
	return string(renderWith(func(buf *bytebufferpool.ByteBuffer) {
		appendTextValue(buf, &f, d.layout)
	}))
}

func (t *Template) Render(r *Record) []byte {
	tmpl := t.def
	if lt, ok := t.perLevel[r.Level]; ok {
		tmpl = lt
	}
	layout := t.layout
	if layout == "" {
		layout = time.RFC3339Nano
	}
	data := templateData{
		Level:   r.Level.String(),
		Time:    r.Time.Wall.Format(layout),
		When:    r.Time.Wall,
		Task:    r.Task,
		Message: r.Message,
		rec:     r,
		layout:  layout,
	}
	if loc := r.Location; loc != nil {
		data.File, data.Line, data.Function = loc.File, loc.Line, loc.Function
	}
	if len(r.Fields) > 0 {
		data.Fields = string(renderWith(func(buf *bytebufferpool.ByteBuffer) {
			for i := range r.Fields {
				if i > 0 {
					buf.B = append(buf.B, ' ')
				}
				buf.B = append(buf.B, r.Fields[i].K...)
				buf.B = append(buf.B, '=')
				appendTextValue(buf, &r.Fields[i], layout)
			}
		}))
	}

	buf := renderPool.Get()
	defer renderPool.Put(buf)
	if err := tmpl.Execute(buf, data); err != nil {
		return PlainText{TimeLayout: t.layout}.Render(r)
	}
	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out
}
