package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentic-research/wfsproxy-manager/internal/client"
	"github.com/agentic-research/wfsproxy-manager/internal/config"
	"github.com/agentic-research/wfsproxy-manager/internal/logging"
	"github.com/agentic-research/wfsproxy-manager/internal/store"
)

var (
	configPath string
	baseURL    string
	cachePath  string
	logLevel   string
	prettyLog  bool
	noCache    bool
)

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&configPath, "config", "c", "", "Path to manager.hcl (default ~/.agentic-research/wfsproxy/manager.hcl)")
	f.StringVar(&baseURL, "base-url", "", "Manager base URL, overrides the config file")
	f.StringVar(&cachePath, "cache", "", "Path to the SQLite cache, overrides the config file")
	f.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.BoolVar(&prettyLog, "pretty", false, "Human readable log output")
	f.BoolVar(&noCache, "no-cache", false, "Do not read or write the local cache")
}

var rootCmd = &cobra.Command{
	Use:           "wfsproxy",
	Short:         "Manage ldproxy WFS proxy services and their schema mappings",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is the wiring shared by all commands.
type env struct {
	cfg    config.Config
	log    zerolog.Logger
	client *client.Client
	store  *store.Store
	cache  *store.Cache
}

// loadEnv resolves the configuration and opens the client, store and cache.
func loadEnv(cmd *cobra.Command) (*env, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("base-url") {
		cfg.BaseURL = baseURL
	}
	if cmd.Flags().Changed("cache") {
		cfg.CachePath = cachePath
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	log, err := logging.New(os.Stderr, cfg.LogLevel, prettyLog)
	if err != nil {
		return nil, err
	}
	c, err := client.New(cfg.BaseURL, client.WithTimeout(cfg.Timeout), client.WithLogger(log))
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, log: log, client: c, store: store.NewStore()}
	if noCache || cfg.CachePath == "" {
		return e, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if e.cache, err = store.OpenCache(cfg.CachePath); err != nil {
		return nil, err
	}
	if err := e.cache.Hydrate(e.store); err != nil {
		log.Warn().Err(err).Str("cache", cfg.CachePath).Msg("ignoring unreadable cache")
	}
	return e, nil
}

func (e *env) Close() {
	if e.cache != nil {
		_ = e.cache.Close() // safe to ignore
	}
}

// fetch loads service id into the store and the cache. When the manager is
// unreachable a cached copy is used.
func (e *env) fetch(ctx context.Context, id string) error {
	cfg, raw, err := client.FetchServiceConfig(ctx, e.client, id)
	if err != nil {
		if client.IsKind(err, client.KindTransport) {
			if _, ok := store.ServiceByID(e.store.Snapshot(), id); ok {
				e.log.Warn().Err(err).Str("service", id).Msg("manager unreachable, using cached service")
				return nil
			}
		}
		return err
	}
	e.store.Put(cfg)
	if e.cache != nil {
		if err := e.cache.SaveService(id, raw, time.Now()); err != nil {
			e.log.Warn().Err(err).Str("service", id).Msg("cache service")
		}
	}
	return nil
}

// saveCatalog persists the catalog of the store.
func (e *env) saveCatalog() {
	if e.cache == nil {
		return
	}
	if err := e.cache.SaveCatalog(store.Catalog(e.store.Snapshot())); err != nil {
		e.log.Warn().Err(err).Msg("cache catalog")
	}
}

var errUsage = errors.New("invalid arguments")
