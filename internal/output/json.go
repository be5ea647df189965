package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/spiffcs/langstats/internal/duration"
	"github.com/spiffcs/langstats/internal/model"
	"github.com/spiffcs/langstats/internal/service"
)

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Pretty bool
}

func (f *JSONFormatter) encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}

// FormatSeries outputs the series as the same JSON array the HTTP API serves.
func (f *JSONFormatter) FormatSeries(language string, series []model.LanguagePoint, w io.Writer) error {
	if series == nil {
		series = []model.LanguagePoint{}
	}
	return f.encode(w, series)
}

// FormatSummary outputs the per-language summaries as JSON
func (f *JSONFormatter) FormatSummary(summaries []LanguageSummary, w io.Writer) error {
	if summaries == nil {
		summaries = []LanguageSummary{}
	}
	return f.encode(w, summaries)
}

type statusJSON struct {
	Username       string     `json:"username"`
	TTL            string     `json:"ttl"`
	RefreshPolicy  string     `json:"refreshPolicy"`
	Schedule       string     `json:"schedule,omitempty"`
	LastComputedAt *time.Time `json:"lastComputedAt"`
	Refreshing     bool       `json:"refreshing"`
	Stale          bool       `json:"stale"`
	Languages      int        `json:"languages"`
}

// FormatStatus outputs the service status as JSON
func (f *JSONFormatter) FormatStatus(st service.Status, w io.Writer) error {
	out := statusJSON{
		Username:      st.Username,
		TTL:           duration.Format(st.TTL),
		RefreshPolicy: st.RefreshPolicy,
		Schedule:      st.Schedule,
		Refreshing:    st.Refreshing,
		Stale:         st.Stale,
		Languages:     st.Languages,
	}
	if !st.LastComputedAt.IsZero() {
		at := st.LastComputedAt.UTC()
		out.LastComputedAt = &at
	}
	return f.encode(w, out)
}
