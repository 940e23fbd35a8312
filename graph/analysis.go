package graph

import "slices"

// index maps node ids to their declaration position. Links to unknown nodes
// are ignored by every analysis below.
func (g *Graph) index() map[string]int {
	idx := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if _, dup := idx[n.ID]; !dup {
			idx[n.ID] = i
		}
	}
	return idx
}

func (g *Graph) knownLink(idx map[string]int, l Link) bool {
	_, s := idx[l.Source]
	_, t := idx[l.Target]
	return s && t
}

// Predecessors returns the distinct sources of links into id, in link
// declaration order.
func (g *Graph) Predecessors(id string) []string {
	idx := g.index()
	seen := make(map[string]bool)
	var out []string
	for _, l := range g.Links {
		if l.Target != id || !g.knownLink(idx, l) || seen[l.Source] {
			continue
		}
		seen[l.Source] = true
		out = append(out, l.Source)
	}
	return out
}

// Successors returns the distinct targets of links out of id, in link
// declaration order.
func (g *Graph) Successors(id string) []string {
	idx := g.index()
	seen := make(map[string]bool)
	var out []string
	for _, l := range g.Links {
		if l.Source != id || !g.knownLink(idx, l) || seen[l.Target] {
			continue
		}
		seen[l.Target] = true
		out = append(out, l.Target)
	}
	return out
}

// LinkBetween returns the link from source to target. A repeated pair
// collapses into one edge: each later link overrides the attributes it
// sets, so a later data_mapping replaces an earlier one.
func (g *Graph) LinkBetween(source, target string) (Link, bool) {
	var (
		out   Link
		found bool
	)
	for _, l := range g.Links {
		if l.Source != source || l.Target != target {
			continue
		}
		if !found {
			out, found = l, true
			continue
		}
		out = out.overriddenBy(l)
	}
	return out, found
}

func (l Link) overriddenBy(later Link) Link {
	if later.MapAllData {
		l.MapAllData = true
	}
	if later.DataMapping != nil {
		l.DataMapping = later.DataMapping
	}
	if later.Conditions != nil {
		l.Conditions = later.Conditions
	}
	if later.OnError {
		l.OnError = true
	}
	if later.Required {
		l.Required = true
	}
	return l
}

// Sinks returns the nodes without successors, in declaration order.
func (g *Graph) Sinks() []string {
	idx := g.index()
	hasOut := make(map[string]bool)
	for _, l := range g.Links {
		if g.knownLink(idx, l) {
			hasOut[l.Source] = true
		}
	}
	var out []string
	for _, n := range g.Nodes {
		if !hasOut[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out
}

// StartNodes returns the nodes without predecessors, in declaration order.
func (g *Graph) StartNodes() []string {
	idx := g.index()
	hasIn := make(map[string]bool)
	for _, l := range g.Links {
		if g.knownLink(idx, l) {
			hasIn[l.Target] = true
		}
	}
	var out []string
	for _, n := range g.Nodes {
		if !hasIn[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out
}

// ConditionalLinks returns the links that are conditional.
func (g *Graph) ConditionalLinks() []Link {
	var out []Link
	for _, l := range g.Links {
		if l.IsConditional() {
			out = append(out, l)
		}
	}
	return out
}

// FindCycle returns one cycle as a node path whose first and last elements
// are equal, or nil when the graph is acyclic.
func (g *Graph) FindCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.Nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		stack = append(stack, id)
		for _, next := range g.Successors(id) {
			switch color[next] {
			case grey:
				for i, s := range stack {
					if s == next {
						cycle = append(append([]string(nil), stack[i:]...), next)
						return true
					}
				}
			case white:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, n := range g.Nodes {
		if color[n.ID] == white && visit(n.ID) {
			return cycle
		}
	}
	return nil
}

// TopologicalOrder orders the nodes with Kahn's algorithm. Within a level
// nodes keep their declaration order. ok is false when the graph has a cycle.
func (g *Graph) TopologicalOrder() (order []string, ok bool) {
	idx := g.index()
	inDegree := make(map[string]int, len(idx))
	for id := range idx {
		inDegree[id] = len(g.Predecessors(id))
	}
	inLevel := func(ready map[string]bool) []string {
		var level []string
		for _, n := range g.Nodes {
			if ready[n.ID] && !slices.Contains(level, n.ID) {
				level = append(level, n.ID)
			}
		}
		return level
	}

	ready := make(map[string]bool)
	for id, deg := range inDegree {
		if deg == 0 {
			ready[id] = true
		}
	}
	level := inLevel(ready)

	for len(level) > 0 {
		order = append(order, level...)
		ready = make(map[string]bool)
		for _, id := range level {
			for _, next := range g.Successors(id) {
				inDegree[next]--
				if inDegree[next] == 0 {
					ready[next] = true
				}
			}
		}
		level = inLevel(ready)
	}
	return order, len(order) == len(idx)
}
