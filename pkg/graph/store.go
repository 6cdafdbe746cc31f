package graph

import "fmt"

// Store is an append-only, content-addressed node and edge set that
// remembers first-seen order. It is not safe for concurrent use.
type Store struct {
	nodeIndex map[uint64]int
	nodes     []Node
	edgeIndex map[uint64]struct{}
	edges     []Edge
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		nodeIndex: make(map[uint64]int),
		nodes:     make([]Node, 0),
		edgeIndex: make(map[uint64]struct{}),
		edges:     make([]Edge, 0),
	}
}

// AddNode inserts n if its id is new. When the node already exists, only
// attribute keys not yet present are copied over. It reports whether the
// node was new.
func (s *Store) AddNode(n Node) bool {
	if i, ok := s.nodeIndex[n.ID]; ok {
		for k, v := range n.Attributes {
			if _, exists := s.nodes[i].Attributes[k]; !exists {
				s.nodes[i].SetAttr(k, v)
			}
		}
		return false
	}
	if n.Attributes != nil {
		attrs := make(map[string]string, len(n.Attributes))
		for k, v := range n.Attributes {
			attrs[k] = v
		}
		n.Attributes = attrs
	}
	s.nodeIndex[n.ID] = len(s.nodes)
	s.nodes = append(s.nodes, n)
	return true
}

// AddEdge inserts e if its id is new and reports whether it was.
func (s *Store) AddEdge(e Edge) bool {
	if _, ok := s.edgeIndex[e.ID]; ok {
		return false
	}
	s.edgeIndex[e.ID] = struct{}{}
	s.edges = append(s.edges, e)
	return true
}

// Node returns the node with the given id.
func (s *Store) Node(id uint64) (Node, bool) {
	i, ok := s.nodeIndex[id]
	if !ok {
		return Node{}, false
	}
	return s.nodes[i], true
}

// HasNode reports whether a node with the given id exists.
func (s *Store) HasNode(id uint64) bool {
	_, ok := s.nodeIndex[id]
	return ok
}

// HasEdge reports whether an edge with the given id exists.
func (s *Store) HasEdge(id uint64) bool {
	_, ok := s.edgeIndex[id]
	return ok
}

// Nodes returns the nodes in insertion order.
func (s *Store) Nodes() []Node {
	return s.nodes
}

// Edges returns the edges in insertion order.
func (s *Store) Edges() []Edge {
	return s.edges
}

// NodeCount returns the number of distinct nodes.
func (s *Store) NodeCount() int {
	return len(s.nodes)
}

// EdgeCount returns the number of distinct edges.
func (s *Store) EdgeCount() int {
	return len(s.edges)
}

// Merge appends every node and edge of other, keeping this store's order
// for anything already present.
func (s *Store) Merge(other *Store) {
	for _, n := range other.nodes {
		s.AddNode(n)
	}
	for _, e := range other.edges {
		s.AddEdge(e)
	}
}

// RowIndex assigns each node a dense zero-based row in insertion order.
func (s *Store) RowIndex() map[uint64]int {
	rows := make(map[uint64]int, len(s.nodes))
	for i, n := range s.nodes {
		rows[n.ID] = i
	}
	return rows
}

// Validate checks that every edge endpoint is a known node.
func (s *Store) Validate() error {
	for _, e := range s.edges {
		if !s.HasNode(e.From) {
			return fmt.Errorf("%w: edge %d source %d missing", ErrInconsistentGraph, e.ID, e.From)
		}
		if !s.HasNode(e.To) {
			return fmt.Errorf("%w: edge %d target %d missing", ErrInconsistentGraph, e.ID, e.To)
		}
	}
	return nil
}
