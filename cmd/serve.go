package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/wfsproxy-manager/internal/httpapi"
	"github.com/agentic-research/wfsproxy-manager/internal/mcpserver"
)

const shutdownTimeout = 10 * time.Second

var listenAddr string

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "HTTP listen address, overrides the config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the manager as a JSON HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		addr := e.cfg.Listen
		if cmd.Flags().Changed("listen") {
			addr = listenAddr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		h := httpapi.New(httpapi.Options{
			Doer:         e.client,
			Store:        e.store,
			Extra:        e.cfg.Namespaces,
			Log:          e.log,
			Debounce:     e.cfg.Debounce,
			RefreshDelay: e.cfg.RefreshDelay,
			PushTimeout:  e.cfg.Timeout,
		})
		srv := &http.Server{
			Addr:              addr,
			Handler:           h.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			e.log.Info().Str("addr", addr).Msg("http api listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http serve: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			err := srv.Shutdown(sctx)
			// pending mapping edits are pushed before exit
			h.Close()
			return err
		})
		err = g.Wait()
		e.saveCatalog()
		return err
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the service store as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		return mcpserver.ServeStdio(&mcpserver.Tools{
			Doer:  e.client,
			Store: e.store,
			Extra: e.cfg.Namespaces,
			Log:   e.log,
		})
	},
}
