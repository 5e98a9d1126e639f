// Package config loads the manager settings from an HCL file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/agentic-research/wfsproxy-manager/internal/qname"
)

const (
	DefaultBaseURL      = "http://localhost:7080/manager/"
	DefaultTimeout      = 30 * time.Second
	DefaultLogLevel     = "info"
	DefaultDebounce     = time.Second
	DefaultRefreshDelay = time.Second
	DefaultListen       = "127.0.0.1:7090"
)

// Config is the resolved configuration.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	CachePath    string
	LogLevel     string
	Debounce     time.Duration
	RefreshDelay time.Duration
	Listen       string
	// Namespaces are merged into every service's namespace table.
	Namespaces qname.Namespaces
}

// file is the HCL document layout. Durations are Go duration strings.
type file struct {
	BaseURL      string      `hcl:"base_url,optional"`
	Timeout      string      `hcl:"timeout,optional"`
	CachePath    string      `hcl:"cache_path,optional"`
	LogLevel     string      `hcl:"log_level,optional"`
	Debounce     string      `hcl:"debounce,optional"`
	RefreshDelay string      `hcl:"refresh_delay,optional"`
	Listen       string      `hcl:"listen,optional"`
	Namespaces   []namespace `hcl:"namespace,block"`
}

type namespace struct {
	URI    string `hcl:"uri,label"`
	Prefix string `hcl:"prefix"`
}

// Dir returns the directory holding the config file and the cache.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}
	return filepath.Join(home, ".agentic-research", "wfsproxy"), nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "manager.hcl"), nil
}

// Default returns the built-in configuration.
func Default() Config {
	c := Config{
		BaseURL:      DefaultBaseURL,
		Timeout:      DefaultTimeout,
		LogLevel:     DefaultLogLevel,
		Debounce:     DefaultDebounce,
		RefreshDelay: DefaultRefreshDelay,
		Listen:       DefaultListen,
		Namespaces:   qname.Namespaces{},
	}
	if dir, err := Dir(); err == nil {
		c.CachePath = filepath.Join(dir, "cache.db")
	}
	return c
}

// Load reads the config at path. A missing file yields Default.
func Load(path string) (Config, error) {
	src, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, src)
}

// Parse decodes an HCL document over Default. filename must end in .hcl.
func Parse(filename string, src []byte) (Config, error) {
	var f file
	if err := hclsimple.Decode(filename, src, nil, &f); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	c := Default()
	if f.BaseURL != "" {
		c.BaseURL = f.BaseURL
	}
	if f.CachePath != "" {
		c.CachePath = f.CachePath
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
	if f.Listen != "" {
		c.Listen = f.Listen
	}
	durations := []struct {
		name string
		src  string
		dst  *time.Duration
	}{
		{"timeout", f.Timeout, &c.Timeout},
		{"debounce", f.Debounce, &c.Debounce},
		{"refresh_delay", f.RefreshDelay, &c.RefreshDelay},
	}
	for _, d := range durations {
		if d.src == "" {
			continue
		}
		v, err := time.ParseDuration(d.src)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: %s: %w", d.name, err)
		}
		if v < 0 {
			return Config{}, fmt.Errorf("parse config: %s must not be negative", d.name)
		}
		*d.dst = v
	}
	for _, ns := range f.Namespaces {
		c.Namespaces[ns.URI] = ns.Prefix
	}
	return c, nil
}
