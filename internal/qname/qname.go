// Package qname parses the qualified property names used in WFS proxy
// mapping configurations.
//
// A qualified name is a chain of segments. Each segment starts with a
// namespace URI beginning with the "http:" marker, followed by ':' and a
// local part, for example
//
//	http://ns1:address:http://ns2:city
//
// The marker doubles as the segment delimiter, so a local part containing
// the literal "http:" is split wrongly. Callers work on the parsed Steps
// and Segments instead of scanning raw strings themselves.
package qname

import "strings"

// Marker starts every namespace segment.
const Marker = "http:"

// DefaultPrefix is rendered for namespaces missing from the prefix table.
const DefaultPrefix = "ns1"

// Segment is one namespace/local pair of a qualified name.
type Segment struct {
	Raw       string
	Namespace string
	Local     string
	// Qualified is false when Raw has no ':' at all.
	Qualified bool
}

// Parse splits a single segment into namespace and local part.
// The namespace is the text from the last marker up to the last ':'.
func Parse(raw string) Segment {
	colon := strings.LastIndex(raw, ":")
	if colon < 0 {
		return Segment{Raw: raw, Local: raw}
	}
	start := strings.LastIndex(raw, Marker)
	if start < 0 || start > colon {
		start = 0
	}
	return Segment{
		Raw:       raw,
		Namespace: raw[start:colon],
		Local:     raw[colon+1:],
		Qualified: true,
	}
}

// Step is one intermediate segment of a qualified name walk.
type Step struct {
	// ID identifies the intermediate node. It is the segment itself, so the
	// same segment reached through different parents shares one node.
	ID string
	// Segment is this segment alone.
	Segment string
}

// Walk splits qn into its intermediate steps and the trailing segment.
// A name with at most one marker has no steps.
func Walk(qn string) ([]Step, string) {
	var steps []Step
	path := qn
	for strings.Count(path, Marker) > 1 {
		i := strings.Index(path[1:], Marker) + 1
		seg := strings.TrimSuffix(path[:i], ":")
		steps = append(steps, Step{ID: seg, Segment: seg})
		path = path[i:]
	}
	return steps, path
}

// Namespaces maps namespace URIs to display prefixes.
type Namespaces map[string]string

// Prefix returns the prefix registered for uri, or DefaultPrefix.
func (n Namespaces) Prefix(uri string) string {
	if p, ok := n[uri]; ok && p != "" {
		return p
	}
	return DefaultPrefix
}

// Merge returns a new table holding n overlaid with over.
func (n Namespaces) Merge(over Namespaces) Namespaces {
	out := make(Namespaces, len(n)+len(over))
	for k, v := range n {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Label renders a segment as prefix:local for display.
// Attribute segments (containing '@') are rendered with a single leading '@'.
// A segment without ':' is returned as is.
func (n Namespaces) Label(raw string) string {
	return n.render(raw, strings.Contains(raw, "@"))
}

// LabelOf renders the last segment of a full qualified name. The '@'
// prefix applies when any segment of qn is an attribute.
func (n Namespaces) LabelOf(qn string) string {
	_, tail := Walk(qn)
	return n.render(tail, strings.Contains(qn, "@"))
}

func (n Namespaces) render(raw string, attribute bool) string {
	if raw == "" {
		return ""
	}
	seg := Parse(raw)
	label := raw
	if seg.Qualified {
		label = n.Prefix(seg.Namespace) + ":" + seg.Local
	}
	if attribute {
		label = "@" + strings.Replace(label, "@", "", 1)
	}
	return label
}
