// Package skills reads the list of languages the site owner tracks. The
// list is owned by the surrounding application; this package only reads it.
package skills

import (
	"context"
	"strings"

	"github.com/spiffcs/langstats/internal/model"
)

// Skill is one entry of the owner's skill list.
type Skill struct {
	Name  string `yaml:"name" json:"name"`
	Track bool   `yaml:"track" json:"track"`
	Alias string `yaml:"alias,omitempty" json:"alias,omitempty"`
}

// Source lists skills. It is read once per refresh.
type Source interface {
	Skills(ctx context.Context) ([]Skill, error)
}

// Trackable keeps the skills flagged for tracking that have a usable name.
func Trackable(skills []Skill) []model.TrackedLanguage {
	var out []model.TrackedLanguage
	for _, s := range skills {
		name := strings.TrimSpace(s.Name)
		if !s.Track || name == "" {
			continue
		}
		out = append(out, model.TrackedLanguage{Name: name, Alias: strings.TrimSpace(s.Alias)})
	}
	return out
}

// Static is a fixed in-memory skill list.
type Static []Skill

// Skills returns the list.
func (s Static) Skills(ctx context.Context) ([]Skill, error) {
	return s, nil
}
