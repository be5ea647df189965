package model

import (
	"strings"
	"time"
)

// DateLayout is the calendar-day format used for commit dates and series points.
const DateLayout = "2006-01-02"

// Date is a UTC calendar day in DateLayout form. Its string ordering matches
// chronological ordering, which the aggregator relies on when sorting.
type Date string

// DateOf returns the UTC calendar day of t.
func DateOf(t time.Time) Date {
	return Date(t.UTC().Format(DateLayout))
}

// TrackedLanguage is a language the site owner wants statistics for.
type TrackedLanguage struct {
	Name  string `json:"name" yaml:"name"`
	Alias string `json:"alias,omitempty" yaml:"alias,omitempty"`
}

// LookupName returns the name used to build the cache key: the alias when
// set, otherwise the display name.
func (l TrackedLanguage) LookupName() string {
	if alias := strings.TrimSpace(l.Alias); alias != "" {
		return alias
	}
	return l.Name
}

// Repository identifies a repository owned by or accessible to the tracked account.
type Repository struct {
	FullName string `json:"full_name"`
	Owner    string `json:"owner"`
	Name     string `json:"name"`
}

// LanguageWeights maps a lower-cased language name to its fraction of a
// repository's bytes. Values sum to 1.0; an empty map means "unknown".
type LanguageWeights map[string]float64

// CommitContribution is one commit attributed to the tracked user, with line
// counts already clamped.
type CommitContribution struct {
	Date      Date
	Additions int
	Deletions int
}

// LanguagePoint is one point of a cumulative per-language series.
type LanguagePoint struct {
	Date      Date `json:"date"`
	Additions int  `json:"additions"`
	Deletions int  `json:"deletions"`
}

// LanguageSeries maps a lookup key to its cumulative series.
type LanguageSeries map[string][]LanguagePoint
