package output

import (
	"cmp"
	"io"
	"slices"

	"github.com/spiffcs/langstats/internal/model"
	"github.com/spiffcs/langstats/internal/service"
)

// Format represents the output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// LanguageSummary is the latest cumulative state of one language.
type LanguageSummary struct {
	Language  string     `json:"language"`
	Points    int        `json:"points"`
	First     model.Date `json:"first,omitempty"`
	Last      model.Date `json:"last,omitempty"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
}

// Net returns additions minus deletions.
func (s LanguageSummary) Net() int {
	return s.Additions - s.Deletions
}

// Summarize reduces each series to its final cumulative values, ordered by
// net lines descending then by name. names maps keys to display names;
// missing keys are shown as-is.
func Summarize(series model.LanguageSeries, names map[string]string) []LanguageSummary {
	out := make([]LanguageSummary, 0, len(series))
	for key, points := range series {
		name := key
		if n, ok := names[key]; ok && n != "" {
			name = n
		}
		s := LanguageSummary{Language: name, Points: len(points)}
		if len(points) > 0 {
			first, last := points[0], points[len(points)-1]
			s.First = first.Date
			s.Last = last.Date
			s.Additions = last.Additions
			s.Deletions = last.Deletions
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b LanguageSummary) int {
		if c := cmp.Compare(b.Net(), a.Net()); c != 0 {
			return c
		}
		return cmp.Compare(a.Language, b.Language)
	})
	return out
}

// Formatter defines the interface for output formatters
type Formatter interface {
	FormatSeries(language string, series []model.LanguagePoint, w io.Writer) error
	FormatSummary(summaries []LanguageSummary, w io.Writer) error
	FormatStatus(st service.Status, w io.Writer) error
}

// NewFormatter creates a formatter for the specified format
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Pretty: true}
	default:
		return &TableFormatter{}
	}
}
