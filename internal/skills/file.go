package skills

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileSource reads skills from a YAML file. JSON is accepted too since it
// is a subset of YAML. The file holds either a bare list or a document with
// a top-level "skills" list:
//
//	skills:
//	  - name: Go
//	    track: true
//	  - name: .NET
//	    alias: C#
//	    track: true
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type skillsDocument struct {
	Skills []Skill `yaml:"skills"`
}

// Skills reads and parses the file on every call so edits are picked up by
// the next refresh.
func (f *FileSource) Skills(ctx context.Context) ([]Skill, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read skills file: %w", err)
	}
	return parseSkills(data)
}

func parseSkills(data []byte) ([]Skill, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse skills file: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var list []Skill
		if err := root.Decode(&list); err != nil {
			return nil, fmt.Errorf("failed to parse skills file: %w", err)
		}
		return list, nil
	case yaml.MappingNode:
		var doc skillsDocument
		if err := root.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse skills file: %w", err)
		}
		return doc.Skills, nil
	default:
		return nil, fmt.Errorf("failed to parse skills file: expected a list or a skills document")
	}
}
