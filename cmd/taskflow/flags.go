package main

import (
	"fmt"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/taskflow/graph"
)

// parseValue reads a command line value as a YAML scalar, so "3" is a
// number, "true" a bool and "[1, 2]" a list. Anything else is a string.
func parseValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	return v
}

// parseKeyValues parses repeated key=value flags.
func parseKeyValues(flag string, pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--%s %q: expected key=value", flag, pair)
		}
		out[key] = parseValue(value)
	}
	return out, nil
}

// parseResources parses repeated TAG=quantity flags. A bare TAG counts one.
func parseResources(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		tag, qty, ok := strings.Cut(pair, "=")
		if tag == "" {
			return nil, fmt.Errorf("--resource %q: empty tag", pair)
		}
		if !ok {
			out[tag] = 1
			continue
		}
		n, err := strconv.ParseFloat(qty, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("--resource %q: quantity must be a non-negative number", pair)
		}
		out[tag] = n
	}
	return out, nil
}

// parseOutputs parses repeated id[:name[:new_name]] flags. "*" requests
// every node.
func parseOutputs(specs []string) ([]graph.Output, error) {
	outputs := make([]graph.Output, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, ":", 3)
		if parts[0] == "" {
			return nil, fmt.Errorf("--output %q: empty node id", spec)
		}
		var out graph.Output
		if parts[0] == "*" {
			out.All = true
		} else {
			out.ID = parts[0]
		}
		if len(parts) > 1 {
			out.Name = parts[1]
		}
		if len(parts) > 2 {
			out.NewName = parts[2]
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// parseInputs parses repeated [node:]name=value flags. Without a node the
// input goes to the start nodes.
func parseInputs(specs []string) ([]graph.InputSpec, error) {
	inputs := make([]graph.InputSpec, 0, len(specs))
	for _, spec := range specs {
		target, value, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("--input %q: expected [node:]name=value", spec)
		}
		in := graph.InputSpec{Value: parseValue(value)}
		if node, name, found := strings.Cut(target, ":"); found {
			in.ID, in.Name = node, name
		} else {
			in.Name = target
		}
		if in.Name == "" {
			return nil, fmt.Errorf("--input %q: empty input name", spec)
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}
