package export

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/agentic-research/wfsproxy-manager/api"
	"github.com/agentic-research/wfsproxy-manager/internal/proptree"
	"github.com/agentic-research/wfsproxy-manager/internal/store"
)

func fixtureState(t *testing.T) store.State {
	t.Helper()
	raw, err := os.ReadFile("../store/testdata/service.json")
	require.NoError(t, err)
	var cfg api.ServiceConfig
	require.NoError(t, json.Unmarshal(raw, &cfg))
	s := store.NewStore()
	s.Put(&cfg)
	return s.Snapshot()
}

func TestServiceLayout(t *testing.T) {
	l, err := Service(fixtureState(t), "inspire", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/_service.json",
		"/building",
		"/building/_mapping.json",
		"/building/app:Building",
		"/building/app:Building/@gml:id.json",
		"/building/app:Building/app:address",
		"/building/app:Building/app:address/app:street.json",
		"/building/app:Building/app:address/app:city.json",
		"/building/app:Building/app:height.json",
		"/parcel",
	}, l.Paths())

	e, ok := l.Lookup("building/app:Building/app:address/app:street.json")
	require.True(t, ok)
	assert.False(t, e.Dir)
	assert.Equal(t, "building_2", e.NodeID)
	assert.Equal(t, "app:street.json", e.Name())

	var targets api.MimeMappings
	require.NoError(t, json.Unmarshal(e.Data, &targets))
	assert.Equal(t, "Street", targets["text/html"][0].Name)

	var names []string
	for _, c := range l.Children("/building/app:Building") {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"@gml:id.json", "app:address", "app:height.json"}, names)
}

func TestServiceLayoutUnknown(t *testing.T) {
	_, err := Service(fixtureState(t), "nope", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAddTreeSiblingCollision(t *testing.T) {
	qns := orderedmap.New[string, string]()
	qns.Set("m1", "http://a:x")
	qns.Set("m2", "http://b:x")
	tree := proptree.Build(proptree.Root{ID: "ft", QN: "http://a:ft"}, qns, nil)

	l := newLayout()
	require.NoError(t, l.addTree("ft", tree, orderedmap.New[string, *store.Mapping]()))
	assert.Equal(t, []string{"/ft", "/ft/ns1:x.json", "/ft/ns1:x~2.json"}, l.Paths())
}

func TestWrite(t *testing.T) {
	l, err := Service(fixtureState(t), "inspire", nil)
	require.NoError(t, err)

	fs := memfs.New()
	require.NoError(t, l.Write(fs))

	info, err := fs.Stat("parcel")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	data, err := util.ReadFile(fs, "building/_mapping.json")
	require.NoError(t, err)
	var targets api.MimeMappings
	require.NoError(t, json.Unmarshal(data, &targets))
	assert.Equal(t, "{{id}}", targets["text/html"][0].Name)

	data, err = util.ReadFile(fs, "_service.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id": "inspire"`)
}
