package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/wfsproxy-manager/internal/catalog"
)

var (
	catalogAdd    bool
	catalogBaseID string
)

func init() {
	catalogCmd.Flags().BoolVar(&catalogAdd, "add", false, "Register every service URL found in the catalog")
	catalogCmd.Flags().StringVar(&catalogBaseID, "id", "", "Base id of the added services (default derived from the catalog URL)")
	rootCmd.AddCommand(catalogCmd)
}

var catalogCmd = &cobra.Command{
	Use:   "catalog <csw-url>",
	Short: "List the WFS services of a CSW catalog and optionally add them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		url := args[0]
		urls, err := catalog.Parse(ctx, e.client, e.store, url)
		if err != nil {
			return err
		}
		e.saveCatalog()
		for _, u := range urls {
			fmt.Println(u)
		}
		if !catalogAdd || len(urls) == 0 {
			return nil
		}

		baseID := catalogBaseID
		if baseID == "" {
			baseID = catalog.BaseID(url)
		}
		im := &catalog.Importer{
			Doer:         e.client,
			Store:        e.store,
			Log:          e.log,
			RefreshDelay: e.cfg.RefreshDelay,
		}
		p, err := im.Import(ctx, baseID, urls, func(p catalog.Progress) {
			fmt.Fprintf(os.Stderr, "\rwaiting %d  added %d  failed %d", p.Waiting, p.Succeeded, p.Failed)
		})
		fmt.Fprintln(os.Stderr)
		im.Wait()
		for _, ie := range p.Errors {
			fmt.Fprintf(os.Stderr, "%s (%s): %s\n", ie.ID, ie.URL, ie.Message)
			for _, d := range ie.Details {
				fmt.Fprintf(os.Stderr, "  - %s\n", d)
			}
		}
		if err != nil {
			return err
		}
		if p.Failed > 0 {
			return fmt.Errorf("%d of %d services could not be added", p.Failed, len(urls))
		}
		return nil
	},
}
