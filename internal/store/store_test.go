package store

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/wfsproxy-manager/api"
)

const app = "http://example.org/app"

func loadFixture(t *testing.T) *api.ServiceConfig {
	t.Helper()
	raw, err := os.ReadFile("testdata/service.json")
	require.NoError(t, err)
	var cfg api.ServiceConfig
	require.NoError(t, json.Unmarshal(raw, &cfg))
	return &cfg
}

func TestStore_PutNormalizes(t *testing.T) {
	s := NewStore()
	s.Put(loadFixture(t))
	st := s.Snapshot()

	svc, ok := ServiceByID(st, "inspire")
	require.True(t, ok)
	assert.Equal(t, []string{"building", "parcel"}, svc.FeatureTypes)
	assert.Equal(t, "app", svc.NameSpaces.Prefix(app))
	require.NotNil(t, svc.MappingStatus())
	assert.True(t, svc.MappingStatus().Supported)

	ft, ok := FeatureTypeByID(st, "inspire", "building")
	require.True(t, ok)
	assert.Equal(t, app+":Building", ft.QN())
	assert.Equal(t, "Buildings", ft.DisplayName)

	ms := MappingsOf(st, "inspire", "building")
	require.Equal(t, 5, ms.Len())
	first := ms.Oldest()
	assert.Equal(t, "building", first.Key, "the feature type's own mapping shares its id")
	assert.Equal(t, "building_1", first.Next().Key)
	assert.Equal(t, 5, s.MappingCount("inspire", "building"))
	assert.Equal(t, 0, s.MappingCount("inspire", "parcel"))
}

func TestSelectors_FollowSelection(t *testing.T) {
	s := NewStore()
	s.Put(loadFixture(t))

	_, ok := CurrentService(s.Snapshot())
	assert.False(t, ok)

	s.SelectService("inspire")
	s.SelectFeatureType("building")
	s.SelectProperty("building_2")
	st := s.Snapshot()

	svc, ok := CurrentService(st)
	require.True(t, ok)
	assert.Equal(t, "inspire", svc.ID)
	ft, ok := CurrentFeatureType(st)
	require.True(t, ok)
	assert.Equal(t, "building", ft.ID)
	assert.Equal(t, 5, MappingsForFeatureType(st).Len())
	assert.Equal(t, "building_2", SelectedProperty(st))

	s.SelectFeatureType("parcel")
	assert.Empty(t, SelectedProperty(s.Snapshot()), "changing feature type clears the property")

	s.SelectService("other")
	sel := Selected(s.Snapshot())
	assert.Equal(t, Selection{Service: "other"}, sel)
	assert.Equal(t, 0, MappingsForFeatureType(s.Snapshot()).Len())
}

func TestState_WithSelectionIsPure(t *testing.T) {
	s := NewStore()
	s.Put(loadFixture(t))
	st := s.Snapshot()

	scoped := st.WithSelection(Selection{Service: "inspire", FeatureType: "building"})
	_, ok := CurrentFeatureType(scoped)
	assert.True(t, ok)
	assert.Empty(t, SelectedService(st))
	assert.Empty(t, SelectedService(s.Snapshot()))
}

func TestSnapshot_IsIsolatedFromLaterWrites(t *testing.T) {
	s := NewStore()
	s.Put(loadFixture(t))
	before := s.Snapshot()

	require.True(t, s.Remove("inspire"))
	_, ok := ServiceByID(before, "inspire")
	assert.True(t, ok)
	assert.Equal(t, 5, MappingsOf(before, "inspire", "building").Len())

	after := s.Snapshot()
	assert.Empty(t, Services(after))
	assert.Equal(t, 0, MappingsOf(after, "inspire", "building").Len())
	assert.Equal(t, 0, s.MappingCount("inspire", "building"))
	assert.False(t, s.Remove("inspire"))
}

func TestStore_PutReplacesService(t *testing.T) {
	s := NewStore()
	s.Put(loadFixture(t))

	cfg := loadFixture(t)
	ftc, _ := cfg.FeatureTypes.Get("building")
	ftc.Mappings.Mappings.Delete(app + ":Building:" + app + ":height")
	cfg.FeatureTypes.Delete("parcel")
	s.Put(cfg)

	st := s.Snapshot()
	assert.Equal(t, 4, MappingsOf(st, "inspire", "building").Len())
	_, ok := FeatureTypeByID(st, "inspire", "parcel")
	assert.False(t, ok)
	assert.Equal(t, 4, s.MappingCount("inspire", "building"))
}

func TestStore_PatchAndRestore(t *testing.T) {
	s := NewStore()
	s.Put(loadFixture(t))
	before := s.Snapshot()

	err := s.PatchService(api.ServicePatch{
		ID: "inspire",
		ServiceProperties: &api.ServiceProperties{
			MappingStatus: &api.MappingStatus{Enabled: true, Loading: true},
		},
	})
	require.NoError(t, err)
	svc, _ := ServiceByID(s.Snapshot(), "inspire")
	assert.True(t, svc.MappingStatus().Enabled)

	name := "Houses"
	require.NoError(t, s.ApplyFeatureTypeChange("inspire", "building", api.FeatureTypeChange{
		QN:          app + ":Building:" + app + ":height",
		DisplayName: &name,
		Mappings:    api.MimeMappings{"general": {{Enabled: true, Type: "NUMBER"}}},
	}))
	st := s.Snapshot()
	ft, _ := FeatureTypeByID(st, "inspire", "building")
	assert.Equal(t, "Houses", ft.DisplayName)
	m, ok := MappingByQN(st, "inspire", "building", app+":Building:"+app+":height")
	require.True(t, ok)
	assert.True(t, m.Targets["general"][0].Enabled)

	s.RestoreService(before, "inspire")
	st = s.Snapshot()
	svc, _ = ServiceByID(st, "inspire")
	assert.False(t, svc.MappingStatus().Enabled)
	ft, _ = FeatureTypeByID(st, "inspire", "building")
	assert.Equal(t, "Buildings", ft.DisplayName)
	m, _ = MappingByQN(st, "inspire", "building", app+":Building:"+app+":height")
	assert.False(t, m.Targets["general"][0].Enabled)
	assert.Equal(t, 5, s.MappingCount("inspire", "building"))
}

func TestStore_ChangeErrors(t *testing.T) {
	s := NewStore()
	s.Put(loadFixture(t))

	err := s.PatchService(api.ServicePatch{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.ApplyFeatureTypeChange("inspire", "missing", api.FeatureTypeChange{})
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.ApplyFeatureTypeChange("inspire", "building", api.FeatureTypeChange{
		QN:       "http://nowhere:x",
		Mappings: api.MimeMappings{"general": {{Enabled: true}}},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ChangeDefaultsToFeatureTypeMapping(t *testing.T) {
	s := NewStore()
	s.Put(loadFixture(t))

	require.NoError(t, s.ApplyFeatureTypeChange("inspire", "building", api.FeatureTypeChange{
		Mappings: api.MimeMappings{"text/html": {{Enabled: true, Name: "{{name}}"}}},
	}))
	m, ok := MappingByID(s.Snapshot(), "inspire", "building", "building")
	require.True(t, ok)
	assert.Equal(t, "{{name}}", m.Targets["text/html"][0].Name)
}

func TestStore_Catalog(t *testing.T) {
	s := NewStore()
	urls := []string{"http://a/wfs", "http://b/wfs"}
	s.SetCatalog(urls)
	urls[0] = "changed"
	assert.Equal(t, []string{"http://a/wfs", "http://b/wfs"}, Catalog(s.Snapshot()))
}
