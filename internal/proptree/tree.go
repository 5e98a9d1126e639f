// Package proptree turns the flat qualified-name mappings of a feature type
// into a parent-linked tree for hierarchical display.
package proptree

import (
	"encoding/json"

	"github.com/RoaringBitmap/roaring"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/agentic-research/wfsproxy-manager/internal/qname"
)

// Node is one entry of the property tree.
type Node struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Parent     *string `json:"parent"`
	Expandable bool    `json:"expandable,omitempty"`
}

// IsRoot reports whether n is the feature type root.
func (n Node) IsRoot() bool {
	return n.Parent == nil
}

// ParentID returns the parent id, or "" for the root.
func (n Node) ParentID() string {
	if n.Parent == nil {
		return ""
	}
	return *n.Parent
}

// Root identifies the feature type the tree is built for.
type Root struct {
	ID string
	QN string
}

// Tree is the built property tree. Nodes[0] is always the root.
// A Tree is never modified after Build returns.
type Tree struct {
	Nodes []Node

	index    map[string]int  // node id -> position of first occurrence
	expanded *roaring.Bitmap // positions of expanded nodes
}

// Build derives the property tree of root from mappings, an insertion-ordered
// map of property id to qualified name. The entry whose id equals root.ID is
// the feature type's own mapping and is skipped. Labels are rendered with ns.
//
// Build never fails: names without a recognizable namespace marker become
// flat leaves under the root.
func Build(root Root, mappings *orderedmap.OrderedMap[string, string], ns qname.Namespaces) *Tree {
	t := &Tree{
		index:    make(map[string]int),
		expanded: roaring.New(),
	}
	t.add(Node{ID: root.ID, Title: ns.LabelOf(root.QN), Expandable: true}, true)

	if mappings == nil {
		return t
	}
	for pair := mappings.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == root.ID {
			continue
		}
		parent := root.ID
		steps, tail := qname.Walk(pair.Value)
		for _, step := range steps {
			if _, exists := t.index[step.ID]; !exists {
				t.add(Node{
					ID:         step.ID,
					Title:      ns.Label(step.Segment),
					Parent:     ptr(parent),
					Expandable: true,
				}, true)
			}
			parent = step.ID
		}
		t.add(Node{
			ID:     pair.Key,
			Title:  ns.Label(tail),
			Parent: ptr(parent),
		}, false)
	}
	return t
}

func (t *Tree) add(n Node, expanded bool) {
	pos := len(t.Nodes)
	t.Nodes = append(t.Nodes, n)
	if _, ok := t.index[n.ID]; !ok {
		t.index[n.ID] = pos
	}
	if expanded {
		t.expanded.Add(uint32(pos))
	}
}

// Root returns the feature type node.
func (t *Tree) Root() Node {
	return t.Nodes[0]
}

// Len returns the number of nodes including the root.
func (t *Tree) Len() int {
	return len(t.Nodes)
}

// Node looks up a node by id.
func (t *Tree) Node(id string) (Node, bool) {
	pos, ok := t.index[id]
	if !ok {
		return Node{}, false
	}
	return t.Nodes[pos], true
}

// Children returns the direct children of id in tree order.
func (t *Tree) Children(id string) []Node {
	var out []Node
	for _, n := range t.Nodes {
		if n.Parent != nil && *n.Parent == id {
			out = append(out, n)
		}
	}
	return out
}

// Expanded returns the ids of the nodes rendered expanded, root first,
// then intermediates in creation order.
func (t *Tree) Expanded() []string {
	out := make([]string, 0, t.expanded.GetCardinality())
	it := t.expanded.Iterator()
	for it.HasNext() {
		out = append(out, t.Nodes[it.Next()].ID)
	}
	return out
}

// IsExpanded reports whether id is in the expanded set.
func (t *Tree) IsExpanded(id string) bool {
	pos, ok := t.index[id]
	return ok && t.expanded.Contains(uint32(pos))
}

// Depth returns the number of ancestors of id, or -1 if id is unknown.
func (t *Tree) Depth(id string) int {
	n, ok := t.Node(id)
	if !ok {
		return -1
	}
	depth := 0
	for !n.IsRoot() {
		n, ok = t.Node(*n.Parent)
		if !ok {
			break
		}
		depth++
	}
	return depth
}

type treeJSON struct {
	Tree     []Node   `json:"tree"`
	Expanded []string `json:"expanded"`
}

// MarshalJSON renders the tree and its expanded set.
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(treeJSON{Tree: t.Nodes, Expanded: t.Expanded()})
}

// MarshalYAML renders the same shape as MarshalJSON.
func (t *Tree) MarshalYAML() (any, error) {
	return treeJSON{Tree: t.Nodes, Expanded: t.Expanded()}, nil
}

func ptr(s string) *string { return &s }
