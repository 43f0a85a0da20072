package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chuk-ai/toolgraph/internal/ids"
)

// Store is the typed node/edge store interface. Pluggable (e.g. persistent)
// implementations must provide the same query semantics as the in-memory
// reference implementation: indexed lookup by id, by src, by dst, and by
// (kind, src)/(kind, dst).
type Store interface {
	// AddNode inserts a new node, generating an id if n.ID is empty. Returns
	// the stored node (with id populated).
	AddNode(n Node) (Node, error)
	// UpdateNode replaces the attribute bag of an existing node, preserving
	// its id and kind. Returns an error if the node does not exist.
	UpdateNode(id string, attrs Attrs) error
	// GetNode returns the node with the given id, or ok=false if absent.
	GetNode(id string) (Node, bool)
	// AddEdge inserts a new edge, generating an id if e.ID is empty. Returns
	// an error if either endpoint does not exist.
	AddEdge(e Edge) (Edge, error)
	// GetEdges returns edges matching the given filters. A zero-value
	// (empty string) filter is treated as "don't care". At least one of
	// src/dst should normally be provided for an indexed lookup; passing
	// neither scans all edges.
	GetEdges(src, dst string, kind EdgeKind) []Edge
}

// InMemoryStore is the reference Store implementation: a mutex-guarded map of
// nodes plus edges indexed three ways (by src, by dst, and by (kind, src) /
// (kind, dst)) so GetEdges never needs a full scan in the common case.
type InMemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]Node
	edges map[string]Edge

	bySrc     map[string][]string // node id -> edge ids
	byDst     map[string][]string
	byKindSrc map[string][]string // "kind|src" -> edge ids
	byKindDst map[string][]string // "kind|dst" -> edge ids
}

// NewInMemoryStore constructs an empty in-memory graph store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nodes:     make(map[string]Node),
		edges:     make(map[string]Edge),
		bySrc:     make(map[string][]string),
		byDst:     make(map[string][]string),
		byKindSrc: make(map[string][]string),
		byKindDst: make(map[string][]string),
	}
}

var _ Store = (*InMemoryStore)(nil)

// AddNode implements Store.
func (s *InMemoryStore) AddNode(n Node) (Node, error) {
	if n.ID == "" {
		n.ID = idForKind(n.Kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[n.ID]; exists {
		return Node{}, fmt.Errorf("graph: node %q already exists", n.ID)
	}
	stored := n.Clone()
	s.nodes[n.ID] = stored
	return stored.Clone(), nil
}

// UpdateNode implements Store.
func (s *InMemoryStore) UpdateNode(id string, attrs Attrs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("graph: node %q not found", id)
	}
	n.Attrs = Attrs{}
	for k, v := range attrs {
		n.Attrs[k] = v
	}
	s.nodes[id] = n
	return nil
}

// GetNode implements Store.
func (s *InMemoryStore) GetNode(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.Clone(), true
}

// AddEdge implements Store.
func (s *InMemoryStore) AddEdge(e Edge) (Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[e.Src]; !ok {
		return Edge{}, fmt.Errorf("graph: edge src %q does not exist", e.Src)
	}
	if _, ok := s.nodes[e.Dst]; !ok {
		return Edge{}, fmt.Errorf("graph: edge dst %q does not exist", e.Dst)
	}
	if e.ID == "" {
		e.ID = ids.Edge()
	}
	s.edges[e.ID] = e
	s.bySrc[e.Src] = append(s.bySrc[e.Src], e.ID)
	s.byDst[e.Dst] = append(s.byDst[e.Dst], e.ID)
	s.byKindSrc[kindSrcKey(e.Kind, e.Src)] = append(s.byKindSrc[kindSrcKey(e.Kind, e.Src)], e.ID)
	s.byKindDst[kindDstKey(e.Kind, e.Dst)] = append(s.byKindDst[kindDstKey(e.Kind, e.Dst)], e.ID)
	return e, nil
}

// GetEdges implements Store. Filters combine with logical AND; an empty
// string for src/dst and an empty EdgeKind mean "don't care" for that field.
func (s *InMemoryStore) GetEdges(src, dst string, kind EdgeKind) []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidateIDs []string
	switch {
	case src != "" && kind != "":
		candidateIDs = s.byKindSrc[kindSrcKey(kind, src)]
	case dst != "" && kind != "":
		candidateIDs = s.byKindDst[kindDstKey(kind, dst)]
	case src != "":
		candidateIDs = s.bySrc[src]
	case dst != "":
		candidateIDs = s.byDst[dst]
	default:
		candidateIDs = make([]string, 0, len(s.edges))
		for id := range s.edges {
			candidateIDs = append(candidateIDs, id)
		}
	}

	out := make([]Edge, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		e, ok := s.edges[id]
		if !ok {
			continue
		}
		if src != "" && e.Src != src {
			continue
		}
		if dst != "" && e.Dst != dst {
			continue
		}
		if kind != "" && e.Kind != kind {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func kindSrcKey(kind EdgeKind, src string) string { return string(kind) + "|" + src }
func kindDstKey(kind EdgeKind, dst string) string { return string(kind) + "|" + dst }

func idForKind(kind NodeKind) string {
	switch kind {
	case KindSession:
		return ids.Session()
	case KindPlan:
		return ids.Plan()
	case KindPlanStep:
		return ids.Step()
	case KindToolCall:
		return ids.ToolCall()
	default:
		return ids.New("node")
	}
}
