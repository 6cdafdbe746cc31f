package graph

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// RankedNode is a node with its PageRank score.
type RankedNode struct {
	Name     string  `json:"name" toon:"name"`
	Label    Label   `json:"label" toon:"label"`
	PageRank float64 `json:"pagerank" toon:"pagerank"`
	InDegree int     `json:"in_degree" toon:"in_degree"`
}

// Summary describes the shape of a knowledge graph.
type Summary struct {
	Nodes            int            `json:"nodes" toon:"nodes"`
	Edges            int            `json:"edges" toon:"edges"`
	ByLabel          map[string]int `json:"by_label" toon:"by_label"`
	ByRelation       map[string]int `json:"by_relation" toon:"by_relation"`
	Components       int            `json:"components" toon:"components"`
	LargestComponent int            `json:"largest_component" toon:"largest_component"`
	LinkedControls   int            `json:"linked_controls" toon:"linked_controls"`
	TopRanked        []RankedNode   `json:"top_ranked,omitempty" toon:"top_ranked,omitempty"`
}

// Summarize computes counts, weakly connected components and the topK nodes
// by PageRank.
func Summarize(s *Store, topK int) *Summary {
	sum := &Summary{
		Nodes:      s.NodeCount(),
		Edges:      s.EdgeCount(),
		ByLabel:    make(map[string]int),
		ByRelation: make(map[string]int),
	}
	for _, n := range s.nodes {
		sum.ByLabel[n.Label.String()]++
	}

	linked := make(map[uint64]bool)
	inDegree := make(map[uint64]int)
	for _, e := range s.edges {
		sum.ByRelation[e.Relation.String()]++
		inDegree[e.To]++
		if e.Relation == RelFind || e.Relation == RelUse || e.Relation == RelEvent {
			linked[e.From] = true
		}
	}
	sum.LinkedControls = len(linked)

	g := toUndirected(s)
	components := topo.ConnectedComponents(g.undirected)
	sum.Components = len(components)
	for _, c := range components {
		if len(c) > sum.LargestComponent {
			sum.LargestComponent = len(c)
		}
	}

	if topK > 0 && len(s.nodes) > 0 {
		ranks := sparsePageRank(s, 0.85, 1e-6)
		ranked := make([]RankedNode, 0, len(s.nodes))
		for i, n := range s.nodes {
			ranked = append(ranked, RankedNode{
				Name:     n.Name,
				Label:    n.Label,
				PageRank: ranks[i],
				InDegree: inDegree[n.ID],
			})
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].PageRank > ranked[j].PageRank
		})
		if len(ranked) > topK {
			ranked = ranked[:topK]
		}
		sum.TopRanked = ranked
	}
	return sum
}

type gonumGraph struct {
	undirected *simple.UndirectedGraph
	rows       map[uint64]int64
}

func toUndirected(s *Store) *gonumGraph {
	g := &gonumGraph{
		undirected: simple.NewUndirectedGraph(),
		rows:       make(map[uint64]int64, len(s.nodes)),
	}
	for i, n := range s.nodes {
		id := int64(i)
		g.rows[n.ID] = id
		g.undirected.AddNode(simple.Node(id))
	}
	// Simple graphs reject self-loops and parallel edges.
	for _, e := range s.edges {
		from, fromOK := g.rows[e.From]
		to, toOK := g.rows[e.To]
		if !fromOK || !toOK || from == to {
			continue
		}
		if !g.undirected.HasEdgeBetween(from, to) {
			g.undirected.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
		}
	}
	return g
}

// sparsePageRank runs power iteration over the edge list, O(E) per round.
func sparsePageRank(s *Store, damping, tolerance float64) []float64 {
	n := len(s.nodes)
	rows := s.RowIndex()

	outNeighbors := make([][]int, n)
	for _, e := range s.edges {
		from, fromOK := rows[e.From]
		to, toOK := rows[e.To]
		if fromOK && toOK {
			outNeighbors[from] = append(outNeighbors[from], to)
		}
	}

	rank := make([]float64, n)
	next := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / float64(n)
	}
	teleport := (1.0 - damping) / float64(n)

	for iter := 0; iter < 100; iter++ {
		dangling := 0.0
		for i := range next {
			next[i] = teleport
		}
		for i := 0; i < n; i++ {
			if len(outNeighbors[i]) == 0 {
				dangling += damping * rank[i] / float64(n)
				continue
			}
			contrib := damping * rank[i] / float64(len(outNeighbors[i]))
			for _, j := range outNeighbors[i] {
				next[j] += contrib
			}
		}

		diff := 0.0
		for i := range next {
			next[i] += dangling
			d := next[i] - rank[i]
			if d < 0 {
				d = -d
			}
			diff += d
		}
		rank, next = next, rank
		if diff < tolerance {
			break
		}
	}
	return rank
}
