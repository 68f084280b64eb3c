package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownStructure is returned for files that are neither a list of
// questions nor an object with a questions list.
var ErrUnknownStructure = errors.New("unrecognized question file structure")

// rawQuestion is one item as found in an export file. Field names follow the
// common exporter formats; explicit provider, certification, category and
// difficulty values take precedence over the text heuristics.
type rawQuestion struct {
	ID             any         `json:"id" yaml:"id"`
	Question       string      `json:"question" yaml:"question"`
	Text           string      `json:"text" yaml:"text"`
	Options        []rawOption `json:"options" yaml:"options"`
	Explanation    string      `json:"explanation" yaml:"explanation"`
	CorrectAnswer  *int        `json:"correctAnswer" yaml:"correctAnswer"`
	CorrectAnswers []int       `json:"correctAnswers" yaml:"correctAnswers"`

	Provider      string `json:"provider" yaml:"provider"`
	Certification string `json:"certification" yaml:"certification"`
	Category      string `json:"category" yaml:"category"`
	Difficulty    string `json:"difficulty" yaml:"difficulty"`
}

func (q *rawQuestion) text() string {
	if strings.TrimSpace(q.Question) != "" {
		return strings.TrimSpace(q.Question)
	}
	return strings.TrimSpace(q.Text)
}

// rawOption accepts either a bare string or an object.
type rawOption struct {
	Label   string
	Text    string
	Correct bool
}

type optionObject struct {
	Label     string `json:"label" yaml:"label"`
	Text      string `json:"text" yaml:"text"`
	IsCorrect bool   `json:"isCorrect" yaml:"isCorrect"`
	Correct   bool   `json:"correct" yaml:"correct"`
}

func (o *rawOption) fromObject(obj optionObject) {
	o.Label = strings.TrimSpace(obj.Label)
	o.Text = strings.TrimSpace(obj.Text)
	o.Correct = obj.IsCorrect || obj.Correct
}

func (o *rawOption) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		o.Text = strings.TrimSpace(s)
		return nil
	}
	var obj optionObject
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	o.fromObject(obj)
	return nil
}

func (o *rawOption) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		var s string
		if err := n.Decode(&s); err != nil {
			return err
		}
		o.Text = strings.TrimSpace(s)
		return nil
	}
	var obj optionObject
	if err := n.Decode(&obj); err != nil {
		return err
	}
	o.fromObject(obj)
	return nil
}

type questionFile struct {
	Questions []rawQuestion `json:"questions" yaml:"questions"`
}

// isYAML reports whether the file should be decoded as YAML.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// decode parses a question file in either supported layout.
func decode(path string, data []byte) ([]rawQuestion, error) {
	if isYAML(path) {
		return decodeYAML(data)
	}
	return decodeJSON(data)
}

func decodeJSON(data []byte) ([]rawQuestion, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrUnknownStructure
	}

	switch data[0] {
	case '[':
		var list []rawQuestion
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return list, nil
	case '{':
		var f questionFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		if f.Questions == nil {
			return nil, ErrUnknownStructure
		}
		return f.Questions, nil
	}
	return nil, ErrUnknownStructure
}

func decodeYAML(data []byte) ([]rawQuestion, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, ErrUnknownStructure
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var list []rawQuestion
		if err := root.Decode(&list); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		return list, nil
	case yaml.MappingNode:
		var f questionFile
		if err := root.Decode(&f); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		if f.Questions == nil {
			return nil, ErrUnknownStructure
		}
		return f.Questions, nil
	}
	return nil, ErrUnknownStructure
}
