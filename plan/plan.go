package plan

import (
	"encoding/json"
	"fmt"

	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/graph"
)

// Record is everything needed to execute one node. SourceIDs and LinkAttrs
// have the same length and order.
type Record struct {
	NodeID      string         `json:"node_id"`
	NodeLabel   string         `json:"node_label"`
	NodeAttrs   graph.Node     `json:"node_attrs"`
	SourceIDs   []string       `json:"source_ids"`
	LinkAttrs   []graph.Link   `json:"link_attrs"`
	VarInfo     map[string]any `json:"varinfo,omitempty"`
	ExecInfo    map[string]any `json:"execinfo,omitempty"`
	TaskOptions map[string]any `json:"task_options,omitempty"`
}

// Entry is a plan slot: the serialized record and the nodes whose results
// are passed, in order, to the invocation.
type Entry struct {
	Record  []byte
	Sources []string
}

// Plan maps node ids to entries.
type Plan struct {
	Entries map[string]Entry
	// NodeIDs is a topological order, stable across runs.
	NodeIDs []string
	// SinkIDs are the nodes without successors, in declaration order.
	SinkIDs []string
}

// Params is the per-execution context copied into every record.
type Params struct {
	VarInfo     map[string]any
	ExecInfo    map[string]any
	TaskOptions map[string]any
}

// Build creates the plan of a validated graph.
func Build(g *graph.Graph, params Params) (*Plan, error) {
	order, ok := g.TopologicalOrder()
	if !ok {
		return nil, errors.GraphShape("graph contains a cycle")
	}

	p := &Plan{
		Entries: make(map[string]Entry, len(g.Nodes)),
		NodeIDs: order,
		SinkIDs: g.Sinks(),
	}
	for _, n := range g.Nodes {
		sources := g.Predecessors(n.ID)
		links := make([]graph.Link, len(sources))
		for i, src := range sources {
			links[i], _ = g.LinkBetween(src, n.ID)
		}

		rec := Record{
			NodeID:      n.ID,
			NodeLabel:   n.DisplayLabel(),
			NodeAttrs:   n,
			SourceIDs:   sources,
			LinkAttrs:   links,
			VarInfo:     params.VarInfo,
			ExecInfo:    params.ExecInfo,
			TaskOptions: params.TaskOptions,
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, errors.InvalidInput("node "+n.ID, "record is not serializable").WithCause(err)
		}
		p.Entries[n.ID] = Entry{Record: data, Sources: sources}
	}
	return p, nil
}

// DecodeRecord parses serialized record bytes.
func DecodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Internal(fmt.Errorf("decode record: %w", err))
	}
	if len(rec.SourceIDs) != len(rec.LinkAttrs) {
		return nil, errors.InternalConsistency("record of node %q has %d sources but %d links",
			rec.NodeID, len(rec.SourceIDs), len(rec.LinkAttrs))
	}
	return &rec, nil
}

// Entry returns the entry of a node or an InternalConsistency error.
func (p *Plan) Entry(nodeID string) (Entry, error) {
	e, ok := p.Entries[nodeID]
	if !ok {
		return Entry{}, errors.InternalConsistency("plan has no entry for node %q", nodeID)
	}
	return e, nil
}

// Resources returns the resource requirements declared by a node.
func (p *Plan) Resources(nodeID string) (map[string]float64, error) {
	e, err := p.Entry(nodeID)
	if err != nil {
		return nil, err
	}
	rec, err := DecodeRecord(e.Record)
	if err != nil {
		return nil, err
	}
	return rec.NodeAttrs.Resources, nil
}

// HasResources reports whether any node declares resources.
func (p *Plan) HasResources() (bool, error) {
	for _, id := range p.NodeIDs {
		res, err := p.Resources(id)
		if err != nil {
			return false, err
		}
		if len(res) > 0 {
			return true, nil
		}
	}
	return false, nil
}
