package qname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw      string
		wantNS   string
		wantLoc  string
		wantQual bool
	}{
		{"http://www.opengis.net/gml:name", "http://www.opengis.net/gml", "name", true},
		{"http://a:@id", "http://a", "@id", true},
		{"gml:id", "gml", "id", true},
		{"plain", "", "plain", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			seg := Parse(tt.raw)
			assert.Equal(t, tt.wantNS, seg.Namespace)
			assert.Equal(t, tt.wantLoc, seg.Local)
			assert.Equal(t, tt.wantQual, seg.Qualified)
		})
	}
}

func TestWalk(t *testing.T) {
	t.Run("single segment has no steps", func(t *testing.T) {
		steps, tail := Walk("http://a:name")
		assert.Empty(t, steps)
		assert.Equal(t, "http://a:name", tail)
	})

	t.Run("two segments", func(t *testing.T) {
		steps, tail := Walk("http://a:p1:http://a:child")
		assert.Equal(t, []Step{{ID: "http://a:p1", Segment: "http://a:p1"}}, steps)
		assert.Equal(t, "http://a:child", tail)
	})

	t.Run("step ids are the segments", func(t *testing.T) {
		steps, tail := Walk("http://a:x:http://b:p:http://c:leaf")
		assert.Equal(t, []Step{
			{ID: "http://a:x", Segment: "http://a:x"},
			{ID: "http://b:p", Segment: "http://b:p"},
		}, steps)
		assert.Equal(t, "http://c:leaf", tail)
	})

	t.Run("no marker", func(t *testing.T) {
		steps, tail := Walk("name")
		assert.Empty(t, steps)
		assert.Equal(t, "name", tail)
	})
}

func TestNamespaces_Label(t *testing.T) {
	ns := Namespaces{"http://www.opengis.net/gml": "gml", "http://example.org/app": "app"}

	assert.Equal(t, "gml:name", ns.Label("http://www.opengis.net/gml:name"))
	assert.Equal(t, "ns1:name", ns.Label("http://unknown.org:name"))
	assert.Equal(t, "@gml:id", ns.Label("http://www.opengis.net/gml:@id"))
	assert.Equal(t, "plain", ns.Label("plain"))
	assert.Equal(t, "", ns.Label(""))
	assert.Equal(t, "app:city", ns.LabelOf("http://example.org/app:address:http://example.org/app:city"))
}

func TestNamespaces_LabelOfAttributePath(t *testing.T) {
	ns := Namespaces{"http://example.org/app": "app"}

	assert.Equal(t, "@app:id", ns.LabelOf("http://example.org/app:a:http://example.org/app:@id"))
	// an attribute anywhere in the name marks the label
	assert.Equal(t, "@app:value", ns.LabelOf("http://example.org/app:@ref:http://example.org/app:value"))
	assert.Equal(t, "app:value", ns.Label("http://example.org/app:value"))
}

func TestNamespaces_Merge(t *testing.T) {
	base := Namespaces{"http://a": "a", "http://b": "b"}
	merged := base.Merge(Namespaces{"http://b": "bee"})

	assert.Equal(t, "a", merged.Prefix("http://a"))
	assert.Equal(t, "bee", merged.Prefix("http://b"))
	assert.Equal(t, "b", base.Prefix("http://b"), "merge must not modify the receiver")
	assert.Equal(t, DefaultPrefix, Namespaces(nil).Prefix("http://a"))
}
