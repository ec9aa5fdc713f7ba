package autorelease

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"text/template"

	"github.com/itchyny/gojq"

	"github.com/simplesurance/autorelease/internal/release"
)

// DefaultTriggerQuery matches webhook events of pull requests that were
// merged.
const DefaultTriggerQuery = `.action == "closed" and .pull_request.merged == true`

// Trigger decides via a jq query if a webhook event starts a release run.
type Trigger struct {
	filterQuery *gojq.Query
}

func NewTrigger(jqQuery string) (*Trigger, error) {
	query, err := gojq.Parse(jqQuery)
	if err != nil {
		return nil, fmt.Errorf("parsing trigger query failed: %w", err)
	}

	return &Trigger{filterQuery: query}, nil
}

func goJQIterToSlice(iter gojq.Iter) ([]any, []error) {
	var result []any
	var errors []error

	for {
		res, ok := iter.Next()
		if !ok {
			return result, errors
		}

		if err, isErr := res.(error); isErr {
			errors = append(errors, err)
			continue
		}

		result = append(result, res)
	}
}

func errString(errs []error) string {
	var result strings.Builder

	for i, err := range errs {
		if i > 0 {
			result.WriteString("; ")
		}

		result.WriteString(fmt.Sprintf("error %d: %s", i, err))
	}

	return result.String()
}

// Match returns Match if the query of the trigger evaluates to true for
// the JSON payload of an event and TriggerMismatch if it evaluates to false.
// An error is returned if the query does not evaluate to exactly one bool
// value.
func (t *Trigger) Match(ctx context.Context, eventJSON []byte) (MatchResult, error) {
	var evUn any

	if len(eventJSON) == 0 {
		return MatchResultUndefined, errors.New("event json is empty")
	}

	err := json.Unmarshal(eventJSON, &evUn)
	if err != nil {
		return MatchResultUndefined, fmt.Errorf("unmarshaling json failed: %w", err)
	}

	result, errs := goJQIterToSlice(t.filterQuery.RunWithContext(ctx, evUn))
	if len(errs) != 0 {
		return MatchResultUndefined, fmt.Errorf("json query returned errors, query: %q, errors: %s", t.filterQuery.String(), errString(errs))
	}

	if len(result) == 0 {
		return MatchResultUndefined, fmt.Errorf("json query returned 0 results, expected 1, query: %q", t.filterQuery.String())
	}

	if len(result) > 1 {
		return MatchResultUndefined, fmt.Errorf("json query returned multiple results, expected 1, query: %q, result: '%+v'", t.filterQuery.String(), result)
	}

	val, ok := result[0].(bool)
	if !ok {
		return MatchResultUndefined, fmt.Errorf(
			"json query returned non-bool result: %+v (%T), query: %q",
			result[0], result[0], t.filterQuery.String(),
		)
	}

	if val {
		return Match, nil
	}

	return TriggerMismatch, nil
}

func (t *Trigger) String() string {
	return t.filterQuery.String()
}

// DefaultCommentTemplate is the template for comments on the merged pull
// request that triggered a release.
const DefaultCommentTemplate = `{{- if .Result.Err -}}
autorelease: releasing failed: {{ .Result.Err }}
{{- else -}}
autorelease: released version {{ .Result.Version }} in {{ .Result.PullRequest }}
{{- end -}}`

var templateFuncs = template.FuncMap{
	"queryescape": url.QueryEscape,
}

// commentTemplateContext is the data that is accessible in comment
// templates.
type commentTemplateContext struct {
	Event  *Event
	Result *release.Result
}

func parseCommentTemplate(text string) (*template.Template, error) {
	return template.New("comment").Funcs(templateFuncs).Parse(text)
}

func renderComment(templ *template.Template, ev *Event, res *release.Result) (string, error) {
	var out bytes.Buffer

	err := templ.Execute(&out, &commentTemplateContext{
		Event:  ev,
		Result: res,
	})
	if err != nil {
		return "", err
	}

	return out.String(), nil
}
