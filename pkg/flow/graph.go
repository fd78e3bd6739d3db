package flow

import "sort"

// Graph is the derived scheduling view of a node/edge collection. It is
// built per execution request and never persisted.
type Graph struct {
	Adjacency map[string][]string // source → targets
	InDegree  map[string]int
	Upstream  map[string][]string // target → sources
	NodeIndex map[string]*Node
}

// Build filters edges to those whose endpoints exist in nodes and derives
// adjacency, in-degree and upstream maps. Edges referencing an absent node
// are dropped rather than erroring. O(V+E).
func Build(nodes []*Node, edges []Edge) *Graph {
	g := &Graph{
		Adjacency: make(map[string][]string, len(nodes)),
		InDegree:  make(map[string]int, len(nodes)),
		Upstream:  make(map[string][]string, len(nodes)),
		NodeIndex: make(map[string]*Node, len(nodes)),
	}
	for _, n := range nodes {
		g.NodeIndex[n.ID] = n
		g.InDegree[n.ID] = 0
	}
	for _, e := range edges {
		if _, ok := g.NodeIndex[e.Source]; !ok {
			continue
		}
		if _, ok := g.NodeIndex[e.Target]; !ok {
			continue
		}
		g.Adjacency[e.Source] = append(g.Adjacency[e.Source], e.Target)
		g.Upstream[e.Target] = append(g.Upstream[e.Target], e.Source)
		g.InDegree[e.Target]++
	}
	return g
}

// Size returns the number of nodes in the graph.
func (g *Graph) Size() int { return len(g.NodeIndex) }

// HasCycle runs Kahn's algorithm: the graph has a cycle iff fewer than
// Size() nodes can be dequeued at zero in-degree.
func (g *Graph) HasCycle() bool {
	indeg := make(map[string]int, len(g.InDegree))
	for id, d := range g.InDegree {
		indeg[id] = d
	}
	queue := make([]string, 0, len(indeg))
	for id, d := range indeg {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range g.Adjacency[id] {
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return visited < g.Size()
}

// SortVisual orders ids by canvas position: ascending y, tie-broken by
// ascending x, finally by id for full determinism. This is the policy that
// decides which of several simultaneously ready nodes runs first.
func (g *Graph) SortVisual(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := g.NodeIndex[ids[i]], g.NodeIndex[ids[j]]
		if a == nil || b == nil {
			return ids[i] < ids[j]
		}
		if a.Position.Y != b.Position.Y {
			return a.Position.Y < b.Position.Y
		}
		if a.Position.X != b.Position.X {
			return a.Position.X < b.Position.X
		}
		return a.ID < b.ID
	})
}
