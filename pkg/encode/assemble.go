// Package encode unions the call graph, the layout graph and the extracted
// links into one graph and writes it, and the side tables, to disk.
package encode

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/droidkg/droidkg/pkg/analyzer/link"
	"github.com/droidkg/droidkg/pkg/callgraph"
	"github.com/droidkg/droidkg/pkg/events"
	"github.com/droidkg/droidkg/pkg/graph"
)

// Input is everything one application contributes to its graph. Any part
// may be nil.
type Input struct {
	Calls  *graph.Store
	Layout *graph.Store
	Links  *link.Result
	Events *events.Mapping
	Logger *log.Logger
}

// Stats counts the link edges added on top of the two base graphs.
type Stats struct {
	Nodes    int `json:"nodes"`
	Edges    int `json:"edges"`
	Finds    int `json:"finds"`
	Uses     int `json:"uses"`
	Events   int `json:"events"`
	Dangling int `json:"dangling"`
}

// Assemble builds the final graph: call nodes and edges first, then layout
// nodes and edges, then FIND, USE and EVENT edges from every layout node
// carrying the view id to the method. Links to a method outside the call
// graph are dropped.
func Assemble(in Input) (*graph.Store, Stats, error) {
	logger := in.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	out := graph.NewStore()
	if in.Calls != nil {
		out.Merge(in.Calls)
	}
	if in.Layout != nil {
		out.Merge(in.Layout)
	}

	views := viewsByID(out)
	var stats Stats

	linkAll := func(uid, method string, rel graph.Relation) int {
		target := callgraph.MethodNode(method)
		if !out.HasNode(target.ID) {
			stats.Dangling++
			logger.Debug("link target not in call graph", "uid", uid, "method", method, "relation", rel)
			return 0
		}
		added := 0
		for _, v := range views[uid] {
			if out.AddEdge(graph.NewEdgeByID(v, target.ID, rel)) {
				added++
			}
		}
		return added
	}

	if in.Links != nil {
		for _, uid := range sortedKeys(in.Links.Finds) {
			for _, m := range in.Links.Finds[uid] {
				stats.Finds += linkAll(uid, m, graph.RelFind)
			}
		}
		for _, uid := range sortedKeys(in.Links.Uses) {
			for _, m := range in.Links.Uses[uid] {
				stats.Uses += linkAll(uid, m, graph.RelUse)
			}
		}
	}
	if in.Events != nil {
		for _, ev := range in.Events.Events {
			stats.Events += linkAll(ev.UID, ev.Handler, graph.RelEvent)
		}
	}

	if err := out.Validate(); err != nil {
		return nil, stats, fmt.Errorf("assembling graph: %w", err)
	}
	stats.Nodes = out.NodeCount()
	stats.Edges = out.EdgeCount()
	return out, stats, nil
}

// viewsByID maps each view id to the layout nodes carrying it, in store
// order.
func viewsByID(s *graph.Store) map[string][]uint64 {
	out := make(map[string][]uint64)
	for _, n := range s.Nodes() {
		if !n.Label.IsUI() {
			continue
		}
		if id, ok := n.Attr(graph.AttrID); ok && id != "" {
			out[id] = append(out[id], n.ID)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
