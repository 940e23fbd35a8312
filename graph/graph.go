package graph

import "maps"

// Graph is a task graph. Node and link order is significant: it breaks
// ties in topological ordering and fixes predecessor order.
type Graph struct {
	ID    string `yaml:"id,omitempty" json:"id,omitempty"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
	Nodes []Node `yaml:"nodes" json:"nodes" validate:"dive"`
	Links []Link `yaml:"links,omitempty" json:"links,omitempty" validate:"dive"`
}

// Node is one unit of work.
type Node struct {
	ID             string             `yaml:"id" json:"id" validate:"required"`
	Label          string             `yaml:"label,omitempty" json:"label,omitempty"`
	TaskType       string             `yaml:"task_type" json:"task_type" validate:"required"`
	TaskIdentifier string             `yaml:"task_identifier,omitempty" json:"task_identifier,omitempty"`
	DefaultInputs  []Input            `yaml:"default_inputs,omitempty" json:"default_inputs,omitempty" validate:"dive"`
	Parameters     map[string]any     `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Resources      map[string]float64 `yaml:"resources,omitempty" json:"resources,omitempty"`
}

// Input is a named static input value of a node.
type Input struct {
	Name  string `yaml:"name" json:"name" validate:"required"`
	Value any    `yaml:"value" json:"value"`
}

// Link is a data dependency: Target runs after Source and receives
// Source's outputs as selected by MapAllData and DataMapping.
type Link struct {
	Source      string        `yaml:"source" json:"source" validate:"required"`
	Target      string        `yaml:"target" json:"target" validate:"required"`
	MapAllData  bool          `yaml:"map_all_data,omitempty" json:"map_all_data,omitempty"`
	DataMapping []DataMapping `yaml:"data_mapping,omitempty" json:"data_mapping,omitempty" validate:"dive"`
	Conditions  []Condition   `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	OnError     bool          `yaml:"on_error,omitempty" json:"on_error,omitempty"`
	Required    bool          `yaml:"required,omitempty" json:"required,omitempty"`
}

// DataMapping copies one source output to one target input.
type DataMapping struct {
	SourceOutput string `yaml:"source_output" json:"source_output" validate:"required"`
	TargetInput  string `yaml:"target_input" json:"target_input" validate:"required"`
}

// Condition gates a link on a source output value.
type Condition struct {
	SourceOutput string `yaml:"source_output" json:"source_output"`
	Value        any    `yaml:"value" json:"value"`
}

// IsConditional reports whether the link only fires on a condition or on
// an upstream error.
func (l Link) IsConditional() bool {
	return len(l.Conditions) > 0 || l.OnError
}

// DisplayLabel returns the node label, or its id when unlabelled.
func (n Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// HasResources reports whether the node declares resource requirements.
func (n Node) HasResources() bool {
	return len(n.Resources) > 0
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// NodeIDs returns the node ids in declaration order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// Clone returns a copy whose node inputs can be modified without touching g.
func (g *Graph) Clone() *Graph {
	c := &Graph{ID: g.ID, Label: g.Label}
	c.Nodes = make([]Node, len(g.Nodes))
	for i, n := range g.Nodes {
		n.DefaultInputs = append([]Input(nil), n.DefaultInputs...)
		n.Parameters = maps.Clone(n.Parameters)
		n.Resources = maps.Clone(n.Resources)
		c.Nodes[i] = n
	}
	c.Links = append([]Link(nil), g.Links...)
	return c
}
