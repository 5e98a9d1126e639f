package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/wfsproxy-manager/api"
	"github.com/agentic-research/wfsproxy-manager/internal/mappingedit"
	"github.com/agentic-research/wfsproxy-manager/internal/store"
	"github.com/agentic-research/wfsproxy-manager/internal/view"
)

const streetQN = "http://example.org/app:Building:http://example.org/app:address:http://example.org/app:street"

func fixtureStore(t *testing.T) *store.Store {
	t.Helper()
	raw, err := os.ReadFile("../internal/store/testdata/service.json")
	require.NoError(t, err)
	var cfg api.ServiceConfig
	require.NoError(t, json.Unmarshal(raw, &cfg))
	s := store.NewStore()
	s.Put(&cfg)
	return s
}

func fixtureState(t *testing.T) store.State {
	t.Helper()
	return fixtureStore(t).Snapshot()
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"name=a=b", "enabled=false", "itemProp="})
	require.NoError(t, err)
	assert.Equal(t, []assignment{
		{Field: mappingedit.FieldName, Value: "a=b"},
		{Field: mappingedit.FieldEnabled, Value: "false"},
		{Field: mappingedit.FieldItemProp, Value: ""},
	}, got)

	for _, bad := range []string{"name", "=x"} {
		_, err := parseAssignments([]string{bad})
		assert.ErrorIs(t, err, errUsage, bad)
	}
}

func TestBuildChange_Property(t *testing.T) {
	st := fixtureState(t)
	edits := []assignment{{Field: mappingedit.FieldName, Value: "Road"}}

	change, err := buildChange(st, nil, "inspire", "building", "building_2", mappingedit.MimeHTML, edits)
	require.NoError(t, err)
	assert.Equal(t, streetQN, change.QN)
	assert.Equal(t, api.MimeMappings{
		mappingedit.MimeHTML: {{Enabled: true, Name: "Road", ShowInCollection: true}},
	}, change.Mappings)

	// addressing by qualified name gives the same change
	byQN, err := buildChange(st, nil, "inspire", "building", streetQN, mappingedit.MimeHTML, edits)
	require.NoError(t, err)
	assert.Equal(t, change, byQN)
}

func TestBuildChange_FeatureType(t *testing.T) {
	st := fixtureState(t)
	change, err := buildChange(st, nil, "inspire", "building", "-", mappingedit.MimeHTML,
		[]assignment{{Field: mappingedit.FieldItemType, Value: "http://schema.org/House"}})
	require.NoError(t, err)
	assert.Empty(t, change.QN)
	assert.Equal(t, api.MimeMappings{
		mappingedit.MimeHTML: {{Enabled: true, Name: "{{id}}", ItemType: "http://schema.org/House"}},
	}, change.Mappings)
}

func TestBuildChange_Errors(t *testing.T) {
	st := fixtureState(t)

	_, err := buildChange(st, nil, "inspire", "missing", "-", "general", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = buildChange(st, nil, "inspire", "building", "building_9", "general", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = buildChange(st, nil, "inspire", "building", "building_1", "general",
		[]assignment{{Field: mappingedit.FieldType, Value: mappingedit.TypeString}})
	assert.ErrorIs(t, err, mappingedit.ErrReadOnly)

	_, err = buildChange(st, nil, "inspire", "building", "building_4", "general",
		[]assignment{{Field: mappingedit.FieldEnabled, Value: "maybe"}})
	assert.ErrorIs(t, err, mappingedit.ErrInvalidValue)
}

func TestWriteShow(t *testing.T) {
	s := fixtureStore(t)
	s.SelectService("inspire")
	s.SelectFeatureType("building")
	s.SelectProperty("building_2")
	show, err := view.BuildFeatureTypeShow(s.Snapshot(), nil)
	require.NoError(t, err)

	var text bytes.Buffer
	require.NoError(t, writeShow(&text, show, "text"))
	lines := strings.Split(text.String(), "\n")
	assert.Equal(t, "- app:Building", lines[0])
	assert.Equal(t, "  - app:Building", lines[1])
	assert.Contains(t, text.String(), "\n    - app:address\n")
	assert.Contains(t, text.String(), "\n        app:street\n")
	assert.Contains(t, text.String(), "app:street (building_2)")
	assert.Contains(t, text.String(), "  [text/html]\n")

	var js bytes.Buffer
	require.NoError(t, writeShow(&js, show, "json"))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, "building_2", decoded["selected"])

	var y bytes.Buffer
	require.NoError(t, writeShow(&y, show, "yaml"))
	assert.Contains(t, y.String(), "expanded:")

	assert.ErrorIs(t, writeShow(&y, show, "xml"), errUsage)
}
