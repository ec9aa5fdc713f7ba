package autorelease

import (
	"embed"
	"html/template"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/autorelease/internal/release"
)

// DefHistorySize is the number of release runs that are kept in the
// History.
const DefHistorySize = 50

// HistoryEntry describes a finished release run.
type HistoryEntry struct {
	Time       time.Time
	Repository string
	// PullRequest is the number of the merged pull request that
	// triggered the run.
	PullRequest int
	Result      *release.Result
}

// History keeps the most recent release runs in memory.
type History struct {
	lock    sync.Mutex
	entries []*HistoryEntry
	size    int
	logger  *zap.Logger
}

func NewHistory(size int) *History {
	return &History{
		size:   size,
		logger: zap.L().Named(loggerName).Named("history"),
	}
}

// Add appends an entry, if the history is full the oldest entry is
// removed.
func (h *History) Add(e *HistoryEntry) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.size <= 0 {
		return
	}

	if len(h.entries) >= h.size {
		h.entries = append(h.entries[:0], h.entries[len(h.entries)-h.size+1:]...)
	}

	h.entries = append(h.entries, e)
}

// Entries returns the entries, the newest first.
func (h *History) Entries() []*HistoryEntry {
	h.lock.Lock()
	defer h.lock.Unlock()

	result := make([]*HistoryEntry, 0, len(h.entries))
	for i := len(h.entries) - 1; i >= 0; i-- {
		result = append(result, h.entries[i])
	}

	return result
}

// templFS contains the web pages.
//
//go:embed pages/templates/*
var templFS embed.FS

var historyTemplFuncs = template.FuncMap{
	"add": func(a, b int) int {
		return a + b
	},
}

var historyTemplates = template.Must(
	template.New("").
		Funcs(historyTemplFuncs).
		ParseFS(templFS, "pages/templates/*"),
)

// httpListData is used as template data when rendering the release list
// page.
type httpListData struct {
	Entries []*HistoryEntry
	// CreatedAt is the time when this datastructure was created.
	CreatedAt time.Time
}

// HTTPHandlerList renders the history as html page.
func (h *History) HTTPHandlerList(respWr http.ResponseWriter, _ *http.Request) {
	data := httpListData{
		Entries:   h.Entries(),
		CreatedAt: time.Now(),
	}

	respWr.Header().Set("Content-Type", "text/html; charset=utf-8")

	err := historyTemplates.ExecuteTemplate(respWr, "list.html.tmpl", &data)
	if err != nil {
		h.logger.Info("applying template and sending back result failed", zap.Error(err))
		http.Error(respWr, err.Error(), http.StatusInternalServerError)
		return
	}
}
