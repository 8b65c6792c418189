package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"adaptive-quiz-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// Source fetches a raw question set (JSON or YAML) from a backing store.
type Source interface {
	LoadQuestions(ctx context.Context) ([]byte, error)
}

// Load fetches a question set from src and parses it.
func Load(ctx context.Context, src Source) (*Bank, error) {
	data, err := src.LoadQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return Parse(data)
}

// LoadFile parses the question set stored at path.
func LoadFile(path string) (*Bank, error) {
	return Load(context.Background(), FileSource{Path: path})
}

// FileSource reads a question set from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) LoadQuestions(_ context.Context) ([]byte, error) {
	return os.ReadFile(s.Path)
}

// record mirrors one entry of the question-set document.
type record struct {
	ID         recordID `json:"id" yaml:"id"`
	Question   string   `json:"question" yaml:"question"`
	Options    []string `json:"options" yaml:"options"`
	Answer     string   `json:"answer" yaml:"answer"`
	Topic      string   `json:"topic" yaml:"topic"`
	Difficulty int      `json:"difficulty" yaml:"difficulty"`
}

type document struct {
	Questions []record `json:"questions" yaml:"questions"`
}

// recordID accepts both string and integer ids.
type recordID string

func (r *recordID) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: id must be a string or integer", n.Line)
	}
	*r = recordID(strings.TrimSpace(n.Value))
	return nil
}

func (r *recordID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*r = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = recordID(strings.TrimSpace(s))
	case b[0] == '{' || b[0] == '[':
		return fmt.Errorf("id must be a string or integer")
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*r = recordID(n.String())
	}
	return nil
}

// Parse decodes a question set. The document is either a list of question
// records or a mapping with a "questions" list; JSON and YAML are accepted.
func Parse(data []byte) (*Bank, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, domain.ErrEmptyQuestionSet
	}

	var (
		records []record
		err     error
	)
	if trimmed[0] == '[' || trimmed[0] == '{' {
		records, err = decodeJSON(trimmed)
	} else {
		records, err = decodeYAML(trimmed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedQuestionSet, err)
	}

	questions := make([]domain.Question, 0, len(records))
	for _, rec := range records {
		questions = append(questions, domain.Question{
			ID:         string(rec.ID),
			Prompt:     rec.Question,
			Options:    rec.Options,
			Answer:     rec.Answer,
			Topic:      rec.Topic,
			Difficulty: domain.Difficulty(rec.Difficulty),
		})
	}
	return New(questions)
}

func decodeJSON(data []byte) ([]record, error) {
	if data[0] == '[' {
		var records []record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Questions, nil
}

func decodeYAML(data []byte) ([]record, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	node := root.Content[0]
	switch node.Kind {
	case yaml.SequenceNode:
		var records []record
		if err := node.Decode(&records); err != nil {
			return nil, err
		}
		return records, nil
	case yaml.MappingNode:
		var doc document
		if err := node.Decode(&doc); err != nil {
			return nil, err
		}
		return doc.Questions, nil
	default:
		return nil, fmt.Errorf("line %d: expected a list of questions", node.Line)
	}
}
