// Package export lays out the property trees of a service as a directory
// hierarchy: one directory per feature type and intermediate path segment,
// one JSON file per property mapping.
package export

import (
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/agentic-research/wfsproxy-manager/internal/proptree"
	"github.com/agentic-research/wfsproxy-manager/internal/qname"
	"github.com/agentic-research/wfsproxy-manager/internal/store"
	"github.com/agentic-research/wfsproxy-manager/internal/view"
)

const (
	// ServiceFile holds the service entity at the layout root.
	ServiceFile = "_service.json"
	// MappingFile holds the mapping of a node rendered as a directory.
	MappingFile = "_mapping.json"
)

// Entry is one file or directory of a layout.
type Entry struct {
	Path string
	Dir  bool
	Data []byte
	// NodeID is the property tree node the entry renders, if any.
	NodeID string
}

// Name returns the last path element.
func (e *Entry) Name() string {
	if e.Path == "/" {
		return "/"
	}
	return path.Base(e.Path)
}

// Layout is an immutable directory tree.
type Layout struct {
	ModTime time.Time

	entries  map[string]*Entry
	children map[string][]string
	order    []string
}

func newLayout() *Layout {
	l := &Layout{
		ModTime:  time.Now(),
		entries:  make(map[string]*Entry),
		children: make(map[string][]string),
	}
	l.entries["/"] = &Entry{Path: "/", Dir: true}
	return l
}

// Clean normalizes p to a clean absolute path.
func Clean(p string) string {
	return path.Clean("/" + p)
}

// Lookup returns the entry at p.
func (l *Layout) Lookup(p string) (*Entry, bool) {
	e, ok := l.entries[Clean(p)]
	return e, ok
}

// Children returns the entries directly below directory p, in layout order.
func (l *Layout) Children(p string) []*Entry {
	kids := l.children[Clean(p)]
	out := make([]*Entry, 0, len(kids))
	for _, k := range kids {
		out = append(out, l.entries[k])
	}
	return out
}

// Paths returns every path except the root, parents before children.
func (l *Layout) Paths() []string {
	return append([]string(nil), l.order...)
}

// Len returns the number of entries, the root included.
func (l *Layout) Len() int {
	return len(l.entries)
}

func (l *Layout) add(parent, name string, e *Entry) *Entry {
	e.Path = l.unique(parent, name)
	l.entries[e.Path] = e
	l.children[parent] = append(l.children[parent], e.Path)
	l.order = append(l.order, e.Path)
	return e
}

// unique returns parent/name, suffixed with ~N when a sibling holds the name.
func (l *Layout) unique(parent, name string) string {
	p := path.Join(parent, name)
	if _, taken := l.entries[p]; !taken {
		return p
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		p = path.Join(parent, base+"~"+strconv.Itoa(n)+ext)
		if _, taken := l.entries[p]; !taken {
			return p
		}
	}
}

var nameReplacer = strings.NewReplacer("/", "_", "\x00", "")

func sanitize(title string) string {
	name := nameReplacer.Replace(title)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

func marshal(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Service lays out all feature types of service id found in s.
// extra supplies namespace prefixes the service does not declare.
func Service(s store.State, id string, extra qname.Namespaces) (*Layout, error) {
	svc, ok := store.ServiceByID(s, id)
	if !ok {
		return nil, fmt.Errorf("service %s: %w", id, store.ErrNotFound)
	}
	ns := view.Namespaces(svc, extra)

	l := newLayout()
	data, err := marshal(svc)
	if err != nil {
		return nil, fmt.Errorf("encode service %s: %w", id, err)
	}
	l.add("/", ServiceFile, &Entry{Data: data})

	for _, ft := range store.FeatureTypes(s, id) {
		mappings := store.MappingsOf(s, id, ft.ID)
		if err := l.addTree(sanitize(ft.ID), view.Tree(ft, mappings, ns), mappings); err != nil {
			return nil, fmt.Errorf("lay out %s/%s: %w", id, ft.ID, err)
		}
	}
	return l, nil
}

func (l *Layout) addTree(dir string, t *proptree.Tree, mappings *orderedmap.OrderedMap[string, *store.Mapping]) error {
	paths := make(map[string]string, t.Len())
	for _, n := range t.Nodes {
		parent := "/"
		name := dir
		if !n.IsRoot() {
			p, ok := paths[n.ParentID()]
			if !ok {
				return fmt.Errorf("node %s: parent %s not laid out", n.ID, n.ParentID())
			}
			parent = p
			name = sanitize(n.Title)
		}

		m, hasMapping := mappings.Get(n.ID)
		if !n.Expandable {
			data := []byte("{}\n")
			if hasMapping {
				var err error
				if data, err = marshal(m.Targets); err != nil {
					return fmt.Errorf("encode mapping %s: %w", n.ID, err)
				}
			}
			e := l.add(parent, name+".json", &Entry{Data: data, NodeID: n.ID})
			paths[n.ID] = e.Path
			continue
		}

		e := l.add(parent, name, &Entry{Dir: true, NodeID: n.ID})
		paths[n.ID] = e.Path
		if hasMapping {
			data, err := marshal(m.Targets)
			if err != nil {
				return fmt.Errorf("encode mapping %s: %w", n.ID, err)
			}
			l.add(e.Path, MappingFile, &Entry{Data: data, NodeID: n.ID})
		}
	}
	return nil
}

// Write materializes the layout into fs.
func (l *Layout) Write(fs billy.Filesystem) error {
	for _, p := range l.order {
		e := l.entries[p]
		rel := strings.TrimPrefix(p, "/")
		if e.Dir {
			if err := fs.MkdirAll(rel, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", rel, err)
			}
			continue
		}
		if err := util.WriteFile(fs, rel, e.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
	}
	return nil
}
