// Package graph holds the content-addressed node and edge types shared by the
// call graph, the layout graph and the link extractors.
package graph

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ErrInconsistentGraph is returned when an edge references a node that was
// never added to the store.
var ErrInconsistentGraph = errors.New("inconsistent graph")

// Label classifies a node.
type Label string

const (
	LabelMethod    Label = "METHOD"
	LabelJava      Label = "JAVA_LIBRARY"
	LabelFramework Label = "FRAMEWORK_LIBRARY"
	LabelControl   Label = "CONTROL"
	LabelContainer Label = "CONTAINER"
)

// String returns the string representation.
func (l Label) String() string {
	return string(l)
}

// IsUI reports whether the label belongs to a layout element.
func (l Label) IsUI() bool {
	return l == LabelControl || l == LabelContainer
}

// Relation is the type of an edge. The ordinal is the serialized value.
type Relation int

const (
	RelCall Relation = iota
	RelFind
	RelHold
	RelUse
	RelEvent
)

var relationNames = [...]string{"CALL", "FIND", "HOLD", "USE", "EVENT"}

// String returns the string representation.
func (r Relation) String() string {
	if r < 0 || int(r) >= len(relationNames) {
		return fmt.Sprintf("Relation(%d)", int(r))
	}
	return relationNames[r]
}

// Well-known attribute keys.
const (
	AttrClass      = "class"
	AttrXML        = "xml"
	AttrID         = "id"
	AttrText       = "text"
	AttrHint       = "hint"
	AttrLayout     = "layout"
	AttrSrc        = "src"
	AttrBackground = "background"
)

// Node is a method, UI control or UI container. Identity is carried by ID
// alone; Attributes never take part in equality.
type Node struct {
	ID         uint64            `json:"id,string" toon:"id"`
	Name       string            `json:"name" toon:"name"`
	Label      Label             `json:"label" toon:"label"`
	Attributes map[string]string `json:"attributes,omitempty" toon:"attributes,omitempty"`
}

// NewNode creates a node keyed on its name and label.
func NewNode(name string, label Label) Node {
	return Node{
		ID:    hashKey(name + string(label)),
		Name:  name,
		Label: label,
	}
}

// NewSaltedNode creates a node keyed on its name and a disambiguation salt.
func NewSaltedNode(name string, label Label, salt string) Node {
	return Node{
		ID:    hashKey(name + salt),
		Name:  name,
		Label: label,
	}
}

// Attr returns an attribute value.
func (n Node) Attr(key string) (string, bool) {
	v, ok := n.Attributes[key]
	return v, ok
}

// SetAttr sets an attribute, allocating the map on first use.
func (n *Node) SetAttr(key, value string) {
	if n.Attributes == nil {
		n.Attributes = make(map[string]string)
	}
	n.Attributes[key] = value
}

// Edge is a directed typed relation between two node ids.
type Edge struct {
	ID       uint64   `json:"id,string" toon:"id"`
	From     uint64   `json:"from,string" toon:"from"`
	To       uint64   `json:"to,string" toon:"to"`
	Relation Relation `json:"relation" toon:"relation"`
}

// NewEdge creates an edge between two identified nodes.
func NewEdge(from, to Node, rel Relation) Edge {
	return NewEdgeByID(from.ID, to.ID, rel)
}

// NewEdgeByID creates an edge from raw node ids. The hash input is ordered so
// a->b and b->a are distinct edges.
func NewEdgeByID(from, to uint64, rel Relation) Edge {
	return Edge{
		ID:       hashKey(fmt.Sprintf("%d>%d:%d", from, to, int(rel))),
		From:     from,
		To:       to,
		Relation: rel,
	}
}

func hashKey(key string) uint64 {
	return xxhash.Sum64String(key)
}
