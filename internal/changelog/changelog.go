// Package changelog generates changelog sections for releases and maintains
// the changelog document.
package changelog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/simplesurance/autorelease/internal/version"
)

// NoChangesMarker is the body of an entry for a release without any
// recorded changes.
const NoChangesMarker = "No changes."

// DateFormat is the format of the release date in section headings.
const DateFormat = "2006-01-02"

// ChangeRecord describes a change that was merged since the last release.
type ChangeRecord struct {
	// ID identifies the change, e.g. the pull request number "#12".
	ID        string
	Title     string
	AuthorRef string
	MergedAt  time.Time
	BodyText  string
}

// SortRecords orders records chronologically by their merge time, oldest
// first. Records merged at the same time are ordered by their ID.
func SortRecords(records []*ChangeRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].MergedAt.Equal(records[j].MergedAt) {
			return records[i].ID < records[j].ID
		}

		return records[i].MergedAt.Before(records[j].MergedAt)
	})
}

// Entry is the changelog section of a single release.
type Entry struct {
	Version     version.Version
	GeneratedAt time.Time
	Body        string
}

// Heading returns the markdown heading of the entry.
func (e *Entry) Heading() string {
	return fmt.Sprintf("## [%s] - %s", e.Version, e.GeneratedAt.UTC().Format(DateFormat))
}

// Section returns the entry as markdown section, it ends with a newline.
func (e *Entry) Section() string {
	return e.Heading() + "\n\n" + strings.TrimRight(e.Body, "\n") + "\n"
}

// Generator creates changelog entries.
type Generator struct {
	formatter Formatter
}

// NewGenerator returns a Generator that renders records with formatter.
// If formatter is nil, the default template formatter is used.
func NewGenerator(formatter Formatter) *Generator {
	if formatter == nil {
		formatter = DefaultFormatter()
	}

	return &Generator{formatter: formatter}
}

// Generate creates the changelog entry for version.
// The records are rendered in the passed order, callers pass them
// chronologically ordered. When records is empty the entry body is
// NoChangesMarker.
// Errors of the formatter are returned as *FormatError.
func (g *Generator) Generate(records []*ChangeRecord, ver version.Version, now time.Time) (*Entry, error) {
	entry := Entry{
		Version:     ver,
		GeneratedAt: now,
	}

	if len(records) == 0 {
		entry.Body = NoChangesMarker
		return &entry, nil
	}

	lines := make([]string, 0, len(records))

	for _, rec := range records {
		line, err := g.formatter.Format(rec)
		if err != nil {
			return nil, newFormatError(rec, err)
		}

		line = strings.TrimRight(line, "\n")
		if line == "" {
			continue
		}

		lines = append(lines, line)
	}

	if len(lines) == 0 {
		entry.Body = NoChangesMarker
		return &entry, nil
	}

	entry.Body = strings.Join(lines, "\n")

	return &entry, nil
}
