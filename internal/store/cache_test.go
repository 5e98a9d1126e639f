package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_ServiceRoundTrip(t *testing.T) {
	c := openTestCache(t)
	raw, err := os.ReadFile("testdata/service.json")
	require.NoError(t, err)

	at := time.Unix(1700000000, 0)
	require.NoError(t, c.SaveService("inspire", raw, at))

	got, fetched, err := c.LoadService("inspire")
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(got))
	assert.True(t, fetched.Equal(at))

	_, _, err = c.LoadService("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.DeleteService("inspire"))
	_, _, err = c.LoadService("inspire")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCache_Catalog(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.SaveCatalog([]string{"http://b", "http://a"}))
	require.NoError(t, c.SaveCatalog([]string{"http://c", "http://a"}))

	urls, err := c.LoadCatalog()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://c", "http://a"}, urls)
}

func TestCache_Hydrate(t *testing.T) {
	c := openTestCache(t)
	raw, err := os.ReadFile("testdata/service.json")
	require.NoError(t, err)
	require.NoError(t, c.SaveService("inspire", raw, time.Now()))
	require.NoError(t, c.SaveCatalog([]string{"http://a"}))

	s := NewStore()
	require.NoError(t, c.Hydrate(s))
	st := s.Snapshot()
	assert.Len(t, Services(st), 1)
	assert.Equal(t, 5, MappingsOf(st, "inspire", "building").Len())
	assert.Equal(t, []string{"http://a"}, Catalog(st))
}

func TestCache_HydrateRejectsCorruptRecord(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.SaveService("broken", []byte("{not json"), time.Now()))
	assert.Error(t, c.Hydrate(NewStore()))
}
