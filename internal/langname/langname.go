// Package langname maps the many spellings of a programming language
// ("golang", "c#", "js", "Jupyter Notebook") onto one canonical linguist
// name so cache keys from skills and from GitHub line up.
package langname

import (
	"strings"

	"github.com/src-d/enry/v2"
)

// Canonical returns the linguist name for s, or s itself (trimmed) when
// enry does not recognise it.
func Canonical(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if lang, ok := enry.GetLanguageByAlias(s); ok {
		return lang
	}
	return s
}

// Key returns the case-insensitive lookup key for s.
func Key(s string) string {
	return strings.ToLower(Canonical(s))
}
