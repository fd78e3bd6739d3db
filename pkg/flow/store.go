package flow

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Store is the narrow mutation contract the engine depends on. The engine
// never touches nodes directly; every state change flows through here so
// the engine is testable without a UI or persistence layer.
type Store interface {
	// Node returns a snapshot copy of the node, or false if absent.
	Node(id string) (Node, bool)
	// SetNodeStatus sets the node's status and applies patch (may be nil)
	// to its data under the store's lock.
	SetNodeStatus(id string, status Status, patch func(*NodeData))
	// AppendLog records a human-readable execution log line on the node.
	AppendLog(id, line string)
	// BeginRunToken creates a fresh run token for the node, superseding
	// (and canceling) any prior live token. At most one live token exists
	// per node id.
	BeginRunToken(id string) string
	// EndRunToken clears the node's live run token. Safe to call twice.
	EndRunToken(id string)
	// Cancel requests cooperative cancellation of the node's live token.
	// Canceling a node with no live token is a no-op.
	Cancel(id string)
	// IsCanceled reports whether the node's live token has been canceled.
	IsCanceled(id string) bool
	// SilentSave invokes the persistence hook, if any, so in-flight task
	// ids survive a reload. Failures are logged, never fatal.
	SilentSave()
}

// runToken is the per-node cancellation/liveness handle.
type runToken struct {
	id       string
	canceled bool
}

// MemStore is the in-memory Store used by the CLI and tests.
type MemStore struct {
	mu     sync.Mutex
	nodes  map[string]*Node
	tokens map[string]*runToken

	// SaveFunc, when set, receives a snapshot of all nodes on SilentSave.
	SaveFunc func([]Node) error
}

// NewMemStore builds a MemStore over the given nodes. The store owns the
// node values from this point on.
func NewMemStore(nodes []*Node) *MemStore {
	s := &MemStore{
		nodes:  make(map[string]*Node, len(nodes)),
		tokens: make(map[string]*runToken),
	}
	for _, n := range nodes {
		s.nodes[n.ID] = n
	}
	return s
}

func (s *MemStore) Node(id string) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns a snapshot of all nodes.
func (s *MemStore) Nodes() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, *n)
	}
	return out
}

func (s *MemStore) SetNodeStatus(id string, status Status, patch func(*NodeData)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	n.Data.Status = status
	if patch != nil {
		patch(&n.Data)
	}
}

func (s *MemStore) AppendLog(id, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	n.Data.Logs = append(n.Data.Logs, line)
}

func (s *MemStore) BeginRunToken(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prior, ok := s.tokens[id]; ok {
		// A stale run must never hold the node hostage: supersede it.
		prior.canceled = true
	}
	tok := &runToken{id: uuid.NewString()}
	s.tokens[id] = tok
	return tok.id
}

func (s *MemStore) EndRunToken(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, id)
}

func (s *MemStore) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok, ok := s.tokens[id]; ok {
		tok.canceled = true
	}
}

func (s *MemStore) IsCanceled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[id]
	return ok && tok.canceled
}

func (s *MemStore) SilentSave() {
	s.mu.Lock()
	save := s.SaveFunc
	var snap []Node
	if save != nil {
		snap = make([]Node, 0, len(s.nodes))
		for _, n := range s.nodes {
			snap = append(snap, *n)
		}
	}
	s.mu.Unlock()

	if save == nil {
		return
	}
	if err := save(snap); err != nil {
		slog.Warn("silent save failed", "error", err)
	}
}

// FindNode is a convenience lookup that errors instead of returning false.
func (s *MemStore) FindNode(id string) (Node, error) {
	n, ok := s.Node(id)
	if !ok {
		return Node{}, fmt.Errorf("node %q not found", id)
	}
	return n, nil
}
