package changelog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/simplesurance/autorelease/internal/version"
)

func TestDocumentPrependToEmpty(t *testing.T) {
	entry := Entry{Version: version.New(0, 5, 0), GeneratedAt: testNow, Body: "- a"}

	doc := ParseDocument("").Prepend(&entry)

	assert.Equal(t,
		DefaultHeader+"\n## [0.5.0] - 2026-10-17\n\n- a\n",
		doc.String(),
	)
	assert.Equal(t, "## [0.5.0] - 2026-10-17", doc.Latest())
}

func TestDocumentNewestFirst(t *testing.T) {
	e1 := Entry{Version: version.New(0, 5, 0), GeneratedAt: testNow, Body: "- a"}
	e2 := Entry{Version: version.New(0, 6, 0), GeneratedAt: testNow.Add(24 * time.Hour), Body: "- b"}

	content := ParseDocument("").Prepend(&e1).String()
	content = ParseDocument(content).Prepend(&e2).String()

	assert.Equal(t,
		DefaultHeader+
			"\n## [0.6.0] - 2026-10-18\n\n- b\n"+
			"\n## [0.5.0] - 2026-10-17\n\n- a\n",
		content,
	)
}

func TestDocumentExistingSectionsAreKept(t *testing.T) {
	existing := "# Changes\n\nintro\n\n## [1.0.0] - 2020-01-01\n\n* handwritten\n   with odd   spacing\n"
	entry := Entry{Version: version.New(1, 0, 1), GeneratedAt: testNow, Body: NoChangesMarker}

	doc := ParseDocument(existing).Prepend(&entry)

	assert.Equal(t,
		"# Changes\n\nintro\n\n## [1.0.1] - 2026-10-17\n\nNo changes.\n\n## [1.0.0] - 2020-01-01\n\n* handwritten\n   with odd   spacing\n",
		doc.String(),
	)
}

func TestDocumentWithoutSections(t *testing.T) {
	doc := ParseDocument("# Release Notes\n")
	assert.Equal(t, "", doc.Latest())
	assert.Equal(t, "# Release Notes\n", doc.String())
}

func TestDocumentStartingWithSection(t *testing.T) {
	doc := ParseDocument("## [0.1.0] - 2020-01-01\n\n- x\n")
	assert.Equal(t, "## [0.1.0] - 2020-01-01", doc.Latest())
}
