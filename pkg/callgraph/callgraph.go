// Package callgraph loads the caller/callee pairs emitted by the bytecode
// front end and turns them into classified method nodes.
package callgraph

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/droidkg/droidkg/pkg/graph"
	"github.com/droidkg/droidkg/pkg/ir"
)

// File is the call graph file inside an application work directory.
const File = "callgraph.csv"

var (
	frameworkPrefixes = []string{"android.", "androidx.", "com.android.", "com.google.android."}
	javaPrefixes      = []string{"java.", "javax.", "sun.", "com.sun.", "kotlin.", "kotlinx."}
)

// Edge is one caller/callee pair.
type Edge struct {
	Caller string
	Callee string
}

// Graph is the materialized call graph in file order.
type Graph struct {
	Edges []Edge
}

// LoadFile reads callgraph.csv.
func LoadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Load reads caller,callee rows. A leading header row is skipped.
func Load(r io.Reader) (*Graph, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	g := &Graph{}
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", File, err)
		}
		if line == 1 && strings.EqualFold(rec[0], "caller") {
			continue
		}
		e, ok := splitRecord(rec)
		if !ok {
			return nil, fmt.Errorf("read %s: line %d: cannot split %d columns into caller and callee", File, line, len(rec))
		}
		g.Edges = append(g.Edges, e)
	}
	return g, nil
}

// splitRecord recovers the pair from rows where unquoted parameter lists
// added extra columns.
func splitRecord(rec []string) (Edge, bool) {
	if len(rec) == 2 {
		return Edge{Caller: rec[0], Callee: rec[1]}, true
	}
	if len(rec) < 2 {
		return Edge{}, false
	}
	joined := strings.Join(rec, ",")
	i := strings.Index(joined, ">,<")
	if i < 0 {
		return Edge{}, false
	}
	return Edge{Caller: joined[:i+1], Callee: joined[i+2:]}, true
}

// Classify labels a method by the package of its declaring class.
func Classify(signature string) graph.Label {
	class := ir.ClassOf(signature)
	for _, p := range frameworkPrefixes {
		if strings.HasPrefix(class, p) {
			return graph.LabelFramework
		}
	}
	for _, p := range javaPrefixes {
		if strings.HasPrefix(class, p) {
			return graph.LabelJava
		}
	}
	return graph.LabelMethod
}

// IsLibraryClass reports whether a class belongs to the platform or the Java
// runtime rather than to the application.
func IsLibraryClass(class string) bool {
	sig := "<" + class + ":"
	return Classify(sig) != graph.LabelMethod
}

// MethodNode builds the node for a method signature.
func MethodNode(signature string) graph.Node {
	n := graph.NewNode(signature, Classify(signature))
	if class := ir.ClassOf(signature); class != "" {
		n.SetAttr(graph.AttrClass, class)
	}
	return n
}

// Build adds every method of the call graph to a store, callers before
// callees in file order, plus one CALL edge per pair. The returned index maps
// signatures to their nodes.
func (g *Graph) Build() (*graph.Store, map[string]graph.Node) {
	store := graph.NewStore()
	index := make(map[string]graph.Node)
	node := func(sig string) graph.Node {
		if n, ok := index[sig]; ok {
			return n
		}
		n := MethodNode(sig)
		index[sig] = n
		store.AddNode(n)
		return n
	}
	for _, e := range g.Edges {
		from := node(e.Caller)
		to := node(e.Callee)
		store.AddEdge(graph.NewEdge(from, to, graph.RelCall))
	}
	return store, index
}
