package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	src := `
base_url      = "https://ldproxy.example.org/manager/"
timeout       = "5s"
cache_path    = "/tmp/wfs.db"
log_level     = "debug"
debounce      = "250ms"
refresh_delay = "2s"
listen        = ":8080"

namespace "http://www.opengis.net/gml/3.2" {
  prefix = "gml"
}

namespace "http://example.org/app" {
  prefix = "app"
}
`
	c, err := Parse("manager.hcl", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, "https://ldproxy.example.org/manager/", c.BaseURL)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Equal(t, "/tmp/wfs.db", c.CachePath)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 250*time.Millisecond, c.Debounce)
	assert.Equal(t, 2*time.Second, c.RefreshDelay)
	assert.Equal(t, ":8080", c.Listen)
	assert.Equal(t, "gml", c.Namespaces.Prefix("http://www.opengis.net/gml/3.2"))
	assert.Equal(t, "app", c.Namespaces.Prefix("http://example.org/app"))
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse("manager.hcl", []byte(`log_level = "warn"`))
	require.NoError(t, err)
	d := Default()
	assert.Equal(t, "warn", c.LogLevel)
	assert.Equal(t, d.BaseURL, c.BaseURL)
	assert.Equal(t, d.Timeout, c.Timeout)
	assert.Equal(t, d.Debounce, c.Debounce)
	assert.Empty(t, c.Namespaces)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"bad duration":   `timeout = "soon"`,
		"negative":       `debounce = "-1s"`,
		"unknown key":    `colour = "blue"`,
		"missing prefix": `namespace "http://x" {}`,
		"syntax":         `base_url = `,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("manager.hcl", []byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	c, err := Load(filepath.Join(dir, "missing.hcl"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	path := filepath.Join(dir, "manager.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`listen = "0.0.0.0:9000"`), 0o644))
	c, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", c.Listen)
}
