// Package corpus holds the static comment texts shown on the overlay.
package corpus

import (
	"embed"
	"errors"
	"fmt"
	"math/rand/v2"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFiles embed.FS

const (
	regularFile = "data/comments.yaml"
	burstFile   = "data/burst.yaml"
)

// ErrEmpty is returned when a collection has no texts
var ErrEmpty = errors.New("corpus is empty")

// Corpus is a read-only list of comment texts
type Corpus struct {
	name  string
	texts []string
}

type document struct {
	Comments []string `yaml:"comments"`
}

// Parse builds a corpus from a YAML document with a top-level comments list
func Parse(name string, data []byte) (*Corpus, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s corpus: %w", name, err)
	}

	texts := make([]string, 0, len(doc.Comments))
	for _, t := range doc.Comments {
		if t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
	}

	return &Corpus{name: name, texts: texts}, nil
}

func load(name, file string) (*Corpus, error) {
	data, err := dataFiles.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded %s corpus: %w", name, err)
	}
	return Parse(name, data)
}

// Regular loads the corpus used for periodic comments
func Regular() (*Corpus, error) {
	return load("regular", regularFile)
}

// Burst loads the corpus used when the microphone spikes
func Burst() (*Corpus, error) {
	return load("burst", burstFile)
}

// Pick returns one text chosen uniformly at random
func (c *Corpus) Pick(r *rand.Rand) string {
	return c.texts[r.IntN(len(c.texts))]
}

func (c *Corpus) Name() string { return c.name }

func (c *Corpus) Len() int { return len(c.texts) }

// Contains reports whether text belongs to the corpus
func (c *Corpus) Contains(text string) bool {
	for _, t := range c.texts {
		if t == text {
			return true
		}
	}
	return false
}
