package changelog

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// ErrFormat is matched by all errors returned from formatting a change
// record.
var ErrFormat = errors.New("formatting changelog failed")

// FormatError is returned when a change record can not be formatted.
// Formatting is not retried.
type FormatError struct {
	RecordID string
	Err      error
}

func newFormatError(rec *ChangeRecord, err error) *FormatError {
	return &FormatError{RecordID: rec.ID, Err: err}
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("formatting change record %q failed: %s", e.RecordID, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// Formatter renders a single change record as changelog line.
type Formatter interface {
	Format(*ChangeRecord) (string, error)
}

// DefaultItemTemplate is the template for a change record if none is
// configured.
const DefaultItemTemplate = `- {{ .Title }}{{ with .ID }} ({{ . }}){{ end }}{{ with .AuthorRef }} by @{{ . }}{{ end }}`

var templateFuncs = template.FuncMap{
	"firstline": firstLine,
	"trim":      strings.TrimSpace,
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}

	return strings.TrimSpace(s)
}

// TemplateFormatter renders change records with a text/template.
// The template is executed with the *ChangeRecord as data, missing keys
// are errors.
type TemplateFormatter struct {
	tmpl *template.Template
}

func NewTemplateFormatter(itemTemplate string) (*TemplateFormatter, error) {
	tmpl, err := template.New("changelog_item").
		Funcs(templateFuncs).
		Option("missingkey=error").
		Parse(itemTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing changelog item template failed: %w", err)
	}

	return &TemplateFormatter{tmpl: tmpl}, nil
}

// DefaultFormatter returns a TemplateFormatter using DefaultItemTemplate.
func DefaultFormatter() *TemplateFormatter {
	f, err := NewTemplateFormatter(DefaultItemTemplate)
	if err != nil {
		panic(err)
	}

	return f
}

func (f *TemplateFormatter) Format(rec *ChangeRecord) (string, error) {
	var out bytes.Buffer

	if err := f.tmpl.Execute(&out, rec); err != nil {
		return "", err
	}

	return out.String(), nil
}
