package encode

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/droidkg/droidkg/pkg/graph"
	"github.com/droidkg/droidkg/pkg/uiid"
)

// Output locations relative to the work directory.
const (
	Dir      = "encoding"
	NodeFile = "node.csv"
	EdgeFile = "edge.csv"
)

// ErrPlaceholder is returned when the edge file records an earlier failure.
var ErrPlaceholder = errors.New("edge file is an error placeholder")

var (
	nodeHeader = []string{"", "Name", "Hash", "Java", "Android", "UI", "Class", "XML", "UId"}
	edgeHeader = []string{"", "From", "To", "Type"}
)

const missing = "-1"

// WriteNodes writes the node table. Rows are numbered in store order.
func WriteNodes(w io.Writer, s *graph.Store) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(nodeHeader); err != nil {
		return err
	}
	for i, n := range s.Nodes() {
		row := []string{
			strconv.Itoa(i),
			n.Name,
			strconv.FormatUint(n.ID, 10),
			flag(n.Label == graph.LabelJava),
			flag(n.Label == graph.LabelFramework),
			flag(n.Label.IsUI()),
			attrOr(n, graph.AttrClass),
			attrOr(n, graph.AttrXML),
			uidColumn(n),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEdges writes the edge table with endpoints as node row numbers.
func WriteEdges(w io.Writer, s *graph.Store) error {
	rows := s.RowIndex()
	cw := csv.NewWriter(w)
	if err := cw.Write(edgeHeader); err != nil {
		return err
	}
	for i, e := range s.Edges() {
		from, ok := rows[e.From]
		if !ok {
			return fmt.Errorf("%w: edge %d source missing", graph.ErrInconsistentGraph, e.ID)
		}
		to, ok := rows[e.To]
		if !ok {
			return fmt.Errorf("%w: edge %d target missing", graph.ErrInconsistentGraph, e.ID)
		}
		row := []string{strconv.Itoa(i), strconv.Itoa(from), strconv.Itoa(to), strconv.Itoa(int(e.Relation))}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteGraph writes node.csv and then edge.csv under <workDir>/encoding. The
// edge file goes last so that its presence marks a finished run.
func WriteGraph(workDir string, s *graph.Store) error {
	if err := s.Validate(); err != nil {
		return err
	}
	dir := filepath.Join(workDir, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, NodeFile), func(w io.Writer) error { return WriteNodes(w, s) }); err != nil {
		return fmt.Errorf("writing nodes: %w", err)
	}
	if err := writeFile(filepath.Join(dir, EdgeFile), func(w io.Writer) error { return WriteEdges(w, s) }); err != nil {
		return fmt.Errorf("writing edges: %w", err)
	}
	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := fn(bw); err != nil {
		_ = f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WritePlaceholder leaves "error: <msg>" in the edge file of a failed run so
// later runs can skip the application. An existing edge file is kept.
func WritePlaceholder(workDir, msg string) error {
	path := EdgePath(workDir)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("error: "+msg+"\n"), 0o644)
}

// EdgePath is the edge file location for a work directory.
func EdgePath(workDir string) string {
	return filepath.Join(workDir, Dir, EdgeFile)
}

// NodePath is the node file location for a work directory.
func NodePath(workDir string) string {
	return filepath.Join(workDir, Dir, NodeFile)
}

// ReadEdgeHeader returns the first line of an edge file.
func ReadEdgeHeader(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// HasValidEdges reports whether a finished run left a real edge table.
func HasValidEdges(workDir string) bool {
	line, err := ReadEdgeHeader(EdgePath(workDir))
	return err == nil && strings.HasPrefix(line, ",From")
}

// ReadGraph loads node.csv and edge.csv back into a store. CONTROL and
// CONTAINER are told apart by tag name since the table only keeps a UI flag.
func ReadGraph(workDir string) (*graph.Store, error) {
	if line, err := ReadEdgeHeader(EdgePath(workDir)); err == nil && strings.HasPrefix(line, "error:") {
		return nil, fmt.Errorf("%w: %s", ErrPlaceholder, strings.TrimSpace(strings.TrimPrefix(line, "error:")))
	}

	nodes, err := readRecords(NodePath(workDir), len(nodeHeader))
	if err != nil {
		return nil, fmt.Errorf("reading nodes: %w", err)
	}
	s := graph.NewStore()
	ids := make([]uint64, len(nodes))
	for i, rec := range nodes {
		id, err := strconv.ParseUint(rec[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("node row %d: %w", i, err)
		}
		n := graph.Node{ID: id, Name: rec[1], Label: labelFromRow(rec)}
		if v := rec[6]; v != missing && v != "" {
			n.SetAttr(graph.AttrClass, v)
		}
		if v := rec[7]; v != missing && v != "" {
			n.SetAttr(graph.AttrXML, v)
		}
		if v := rec[8]; v != missing && v != "" {
			if id, err := uiid.Parse(v); err == nil {
				v = id
			}
			n.SetAttr(graph.AttrID, v)
		}
		ids[i] = id
		s.AddNode(n)
	}

	edges, err := readRecords(EdgePath(workDir), len(edgeHeader))
	if err != nil {
		return nil, fmt.Errorf("reading edges: %w", err)
	}
	for i, rec := range edges {
		var from, to, rel int
		if from, err = strconv.Atoi(rec[1]); err == nil {
			if to, err = strconv.Atoi(rec[2]); err == nil {
				rel, err = strconv.Atoi(rec[3])
			}
		}
		if err != nil {
			return nil, fmt.Errorf("edge row %d: %w", i, err)
		}
		if from < 0 || from >= len(ids) || to < 0 || to >= len(ids) {
			return nil, fmt.Errorf("%w: edge row %d out of range", graph.ErrInconsistentGraph, i)
		}
		s.AddEdge(graph.NewEdgeByID(ids[from], ids[to], graph.Relation(rel)))
	}
	return s, nil
}

func readRecords(path string, width int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = width
	recs, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s: no header", filepath.Base(path))
	}
	return recs[1:], nil
}

func labelFromRow(rec []string) graph.Label {
	switch {
	case rec[3] == "1":
		return graph.LabelJava
	case rec[4] == "1":
		return graph.LabelFramework
	case rec[5] == "1":
		t := strings.ToLower(rec[1])
		if strings.HasSuffix(t, "layout") || strings.HasSuffix(t, "container") {
			return graph.LabelContainer
		}
		return graph.LabelControl
	default:
		return graph.LabelMethod
	}
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func attrOr(n graph.Node, key string) string {
	if v, ok := n.Attr(key); ok && v != "" {
		return v
	}
	return missing
}

// uidColumn writes canonical view ids in decimal, which is what downstream
// readers parse. Unresolved symbolic ids are written as found.
func uidColumn(n graph.Node) string {
	v, ok := n.Attr(graph.AttrID)
	if !ok || v == "" {
		return missing
	}
	if uiid.IsCanonical(v) {
		return uiid.Decimal(v)
	}
	return v
}
