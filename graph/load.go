package graph

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/validation"
)

// Document representations.
const (
	RepresentationJSON = "json"
	RepresentationYAML = "yaml"
)

// LoadOptions control how a Source is read.
type LoadOptions struct {
	// Representation forces "json" or "yaml". Empty detects it from the
	// file extension, then from the content.
	Representation string `mapstructure:"representation" yaml:"representation" validate:"omitempty,oneof=json yaml"`
	// RootDir resolves relative File paths.
	RootDir string `mapstructure:"root_dir" yaml:"root_dir"`
}

// Source provides a task graph.
type Source interface {
	Load(opts LoadOptions) (*Graph, error)
}

// Load returns a copy of the graph, so callers can inject inputs freely.
func (g *Graph) Load(LoadOptions) (*Graph, error) {
	if g == nil {
		return nil, errors.InvalidInput("graph", "nil graph")
	}
	return g.Clone(), nil
}

// File is a graph document on disk.
type File string

// Load reads and parses the file.
func (f File) Load(opts LoadOptions) (*Graph, error) {
	path := string(f)
	if opts.RootDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(opts.RootDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.InvalidInput("graph", "cannot read "+path).WithCause(err)
	}
	representation := opts.Representation
	if representation == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			representation = RepresentationJSON
		case ".yml", ".yaml":
			representation = RepresentationYAML
		}
	}
	return Parse(data, representation)
}

type bytesSource struct {
	data           []byte
	representation string
}

// Bytes is an in-memory graph document. An empty representation detects
// JSON by a leading '{'.
func Bytes(data []byte, representation string) Source {
	return bytesSource{data: data, representation: representation}
}

func (b bytesSource) Load(opts LoadOptions) (*Graph, error) {
	representation := b.representation
	if representation == "" {
		representation = opts.Representation
	}
	return Parse(b.data, representation)
}

// Parse decodes and validates a graph document.
func Parse(data []byte, representation string) (*Graph, error) {
	if representation == "" {
		representation = RepresentationYAML
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
			representation = RepresentationJSON
		}
	}

	var g Graph
	switch representation {
	case RepresentationJSON:
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, errors.InvalidInput("graph", "malformed JSON document").WithCause(err)
		}
	case RepresentationYAML:
		if err := yaml.Unmarshal(data, &g); err != nil {
			return nil, errors.InvalidInput("graph", "malformed YAML document").WithCause(err)
		}
	default:
		return nil, errors.InvalidInput("representation", "unknown graph representation "+representation)
	}

	if err := validation.Validate(g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Load reads src and injects inputs into the loaded copy.
func Load(src Source, opts LoadOptions, inputs []InputSpec) (*Graph, error) {
	if src == nil {
		return nil, errors.InvalidInput("graph", "no graph source")
	}
	if err := validation.Validate(opts); err != nil {
		return nil, err
	}
	g, err := src.Load(opts)
	if err != nil {
		return nil, err
	}
	if err := ApplyInputs(g, inputs); err != nil {
		return nil, err
	}
	return g, nil
}
