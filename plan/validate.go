package plan

import (
	"strings"

	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/graph"
)

// Validate rejects graphs the plan builder cannot schedule: duplicate
// node ids, links to unknown nodes, cycles and conditional links. It has
// no side effects.
func Validate(g *graph.Graph) error {
	if g == nil {
		return errors.GraphShape("no graph")
	}

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if seen[n.ID] {
			return errors.GraphShape("duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
	}

	for _, l := range g.Links {
		if !seen[l.Source] {
			return errors.GraphShape("link %s -> %s references unknown node %q", l.Source, l.Target, l.Source)
		}
		if !seen[l.Target] {
			return errors.GraphShape("link %s -> %s references unknown node %q", l.Source, l.Target, l.Target)
		}
	}

	if cycle := g.FindCycle(); cycle != nil {
		return errors.GraphShape("graph contains a cycle: %s", strings.Join(cycle, " -> ")).
			WithDetail("cycle", cycle)
	}

	if links := g.ConditionalLinks(); len(links) > 0 {
		l := links[0]
		return errors.GraphShape("conditional link %s -> %s cannot be scheduled", l.Source, l.Target).
			WithDetail("link", l.Source+" -> "+l.Target)
	}
	return nil
}
