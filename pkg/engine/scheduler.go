package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ananyarao/canvasflow/pkg/flow"
)

// Scheduler executes a (sub)graph with bounded concurrency. Nodes run in
// topological order; among simultaneously ready nodes, canvas visual order
// (top-to-bottom, left-to-right) decides who goes first.
type Scheduler struct {
	Exec        *Executor
	Concurrency int
}

// runState is the mutable bookkeeping of one RunGraph call. All fields are
// guarded by mu; cond signals the join whenever done advances.
type runState struct {
	mu      sync.Mutex
	cond    *sync.Cond
	indeg   map[string]int
	ready   []string
	blocked map[string]bool
	done    int
	running int
}

// RunGraph drives every in-scope node to a terminal disposition and
// returns only once all of them got there. A failing node blocks its
// entire downstream closure without aborting sibling branches; blocked
// nodes are never executed and keep their queued status.
//
// only, when non-empty, restricts execution to that node subset; edges
// with an endpoint outside the subset are ignored.
func (s *Scheduler) RunGraph(ctx context.Context, nodes []*flow.Node, edges []flow.Edge, only map[string]bool) error {
	scoped := nodes
	if len(only) > 0 {
		scoped = make([]*flow.Node, 0, len(only))
		for _, n := range nodes {
			if only[n.ID] {
				scoped = append(scoped, n)
			}
		}
	}
	g := flow.Build(scoped, edges)
	if g.Size() == 0 {
		return nil
	}

	// No partial execution on a cyclic subgraph.
	if g.HasCycle() {
		for id := range g.NodeIndex {
			s.Exec.Store.SetNodeStatus(id, flow.StatusError, func(d *flow.NodeData) {
				d.LastError = "cycle detected"
			})
		}
		return errors.New("cycle detected")
	}

	st := &runState{
		indeg:   make(map[string]int, g.Size()),
		blocked: make(map[string]bool),
	}
	st.cond = sync.NewCond(&st.mu)

	for id, d := range g.InDegree {
		st.indeg[id] = d
		// Run tokens exist from the moment a node is queued so a cancel
		// issued before dispatch is not lost.
		s.Exec.Store.BeginRunToken(id)
		s.Exec.Store.SetNodeStatus(id, flow.StatusQueued, func(nd *flow.NodeData) {
			nd.Progress = 0
			nd.LastError = ""
		})
		if d == 0 {
			st.ready = append(st.ready, id)
		}
	}
	g.SortVisual(st.ready)
	slog.Info("run started", "nodes", g.Size(), "concurrency", s.concurrency())

	st.mu.Lock()
	s.pump(ctx, g, st)
	for st.done < g.Size() {
		st.cond.Wait()
	}
	st.mu.Unlock()

	s.Exec.Store.SilentSave()
	slog.Info("run finished", "nodes", g.Size())
	return nil
}

func (s *Scheduler) concurrency() int {
	if s.Concurrency < 1 {
		return 1
	}
	return s.Concurrency
}

// pump dispatches ready nodes until the concurrency bound is hit or the
// ready list drains. Caller must hold st.mu.
func (s *Scheduler) pump(ctx context.Context, g *flow.Graph, st *runState) {
	for st.running < s.concurrency() && len(st.ready) > 0 {
		id := st.ready[0]
		st.ready = st.ready[1:]

		if st.blocked[id] {
			// An ancestor failed: no execution, no status transition. The
			// node still counts as done and releases its children.
			s.Exec.Store.EndRunToken(id)
			s.Exec.Store.AppendLog(id, "skipped: upstream node did not succeed")
			slog.Info("node blocked", "node", id)
			s.release(g, st, id, true)
			st.done++
			st.cond.Broadcast()
			continue
		}

		st.running++
		go func(id string) {
			s.Exec.ExecuteNode(ctx, g, id)

			n, _ := s.Exec.Store.Node(id)
			failed := n.Data.Status != flow.StatusSuccess

			st.mu.Lock()
			st.running--
			st.done++
			s.release(g, st, id, failed)
			s.pump(ctx, g, st)
			st.cond.Broadcast()
			st.mu.Unlock()
		}(id)
	}
}

// release decrements every direct child's in-degree, pushing those that
// reach zero onto the ready list in visual order. When markBlocked is set
// the children inherit the blocked mark first.
func (s *Scheduler) release(g *flow.Graph, st *runState, id string, markBlocked bool) {
	var freed []string
	for _, child := range g.Adjacency[id] {
		if markBlocked {
			st.blocked[child] = true
		}
		st.indeg[child]--
		if st.indeg[child] == 0 {
			freed = append(freed, child)
		}
	}
	if len(freed) > 0 {
		g.SortVisual(freed)
		st.ready = append(st.ready, freed...)
	}
}

// RunNode queues and executes a single node outside of a graph run.
func (s *Scheduler) RunNode(ctx context.Context, nodes []*flow.Node, edges []flow.Edge, id string) {
	g := flow.Build(nodes, edges)
	s.Exec.Store.BeginRunToken(id)
	s.Exec.Store.SetNodeStatus(id, flow.StatusQueued, func(d *flow.NodeData) {
		d.Progress = 0
		d.LastError = ""
	})
	s.Exec.ExecuteNode(ctx, g, id)
}
