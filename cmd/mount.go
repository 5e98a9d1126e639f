package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/wfsproxy-manager/internal/export"
	"github.com/agentic-research/wfsproxy-manager/internal/nfsmount"
)

var (
	nfsAddr      string
	mountRefresh time.Duration
	serveOnly    bool
)

func init() {
	mountCmd.Flags().StringVar(&nfsAddr, "nfs-addr", "", "NFS listen address (default an ephemeral localhost port)")
	mountCmd.Flags().DurationVar(&mountRefresh, "refresh", 0, "Re-fetch the service at this interval, 0 disables")
	mountCmd.Flags().BoolVar(&serveOnly, "serve-only", false, "Run the NFS server without mounting it")
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(exportCmd)
}

var mountCmd = &cobra.Command{
	Use:   "mount <service> <mountpoint>",
	Short: "Mount the mappings of a service as a read-only NFS filesystem",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		id, mountPoint := args[0], args[1]
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// 1. Build the initial layout
		if err := e.fetch(ctx, id); err != nil {
			return err
		}
		layout, err := export.Service(e.store.Snapshot(), id, e.cfg.Namespaces)
		if err != nil {
			return err
		}
		tree := nfsmount.NewTreeFS(layout)

		// 2. Serve it
		srv, err := nfsmount.NewServer(tree, nfsAddr, e.log)
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }() // safe to ignore

		// 3. Mount, unless only the server is wanted
		if !serveOnly {
			if err := os.MkdirAll(mountPoint, 0o755); err != nil {
				return fmt.Errorf("create mountpoint: %w", err)
			}
			if err := nfsmount.Mount(srv.Port(), mountPoint); err != nil {
				return err
			}
			defer func() {
				if err := nfsmount.Unmount(mountPoint); err != nil {
					e.log.Error().Err(err).Str("mountpoint", mountPoint).Msg("unmount")
				}
			}()
			fmt.Printf("Mounted %s at %s (nfs port %d). Ctrl-C to unmount.\n", id, mountPoint, srv.Port())
		} else {
			fmt.Printf("Serving %s on nfs port %d. Ctrl-C to stop.\n", id, srv.Port())
		}

		// 4. Keep the layout fresh until interrupted
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			err := srv.Wait(gctx)
			if gctx.Err() != nil {
				return nil
			}
			return err
		})
		if mountRefresh > 0 {
			g.Go(func() error {
				refreshLayout(gctx, e, id, tree, mountRefresh)
				return nil
			})
		}
		return g.Wait()
	},
}

// refreshLayout re-fetches service id every interval and swaps the new
// layout into tree. Failed fetches keep the previous layout.
func refreshLayout(ctx context.Context, e *env, id string, tree *nfsmount.TreeFS, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := e.fetch(ctx, id); err != nil {
			e.log.Warn().Err(err).Str("service", id).Msg("refresh mount")
			continue
		}
		layout, err := export.Service(e.store.Snapshot(), id, e.cfg.Namespaces)
		if err != nil {
			e.log.Warn().Err(err).Str("service", id).Msg("rebuild layout")
			continue
		}
		tree.Swap(layout)
		e.log.Debug().Str("service", id).Int("entries", layout.Len()).Msg("layout swapped")
	}
}

var exportCmd = &cobra.Command{
	Use:   "export <service> <dir>",
	Short: "Write the mappings of a service as a directory tree",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		id, dir := args[0], args[1]
		if err := e.fetch(cmd.Context(), id); err != nil {
			return err
		}
		layout, err := export.Service(e.store.Snapshot(), id, e.cfg.Namespaces)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		if err := layout.Write(osfs.New(dir)); err != nil {
			return err
		}
		fmt.Printf("Wrote %d entries to %s\n", layout.Len(), dir)
		return nil
	},
}
