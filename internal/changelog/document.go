package changelog

import (
	"strings"
)

// DefaultHeader is the header of a newly created changelog document.
const DefaultHeader = "# Changelog\n\nAll notable changes to this project are documented in this file.\n"

const sectionPrefix = "## "

// Document is the persisted changelog.
// It consists of a header followed by the release sections, the newest
// release first. Existing sections are never modified.
type Document struct {
	header string
	body   string
}

// ParseDocument splits content into the header and the release sections.
// Everything before the first line starting with "## " is the header.
// For empty content a document with DefaultHeader is returned.
func ParseDocument(content string) *Document {
	if strings.TrimSpace(content) == "" {
		return &Document{header: DefaultHeader}
	}

	idx := sectionStart(content)
	if idx < 0 {
		return &Document{header: content}
	}

	return &Document{
		header: content[:idx],
		body:   content[idx:],
	}
}

func sectionStart(content string) int {
	if strings.HasPrefix(content, sectionPrefix) {
		return 0
	}

	idx := strings.Index(content, "\n"+sectionPrefix)
	if idx < 0 {
		return -1
	}

	return idx + 1
}

// Prepend returns a new document with entry as first section.
func (d *Document) Prepend(entry *Entry) *Document {
	body := entry.Section()
	if d.body != "" {
		body += "\n" + d.body
	}

	return &Document{
		header: d.header,
		body:   body,
	}
}

// Latest returns the heading of the newest section, an empty string is
// returned if the document has no sections.
func (d *Document) Latest() string {
	if d.body == "" {
		return ""
	}

	line, _, _ := strings.Cut(d.body, "\n")
	return line
}

func (d *Document) String() string {
	if strings.TrimSpace(d.header) == "" {
		return d.body
	}

	header := strings.TrimRight(d.header, "\n") + "\n"
	if d.body == "" {
		return header
	}

	return header + "\n" + d.body
}
