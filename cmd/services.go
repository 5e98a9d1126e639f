package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentic-research/wfsproxy-manager/internal/client"
	"github.com/agentic-research/wfsproxy-manager/internal/ingest"
	"github.com/agentic-research/wfsproxy-manager/internal/store"
)

func init() {
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(queryCmd)
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List the services of the manager",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		services, err := client.FetchServices(cmd.Context(), e.client)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tURL")
		for _, s := range services {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Status, s.URL)
		}
		return tw.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <service>",
	Short: "Show a service, its mapping status and feature types",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		id := args[0]
		if err := e.fetch(cmd.Context(), id); err != nil {
			return err
		}
		st := e.store.Snapshot()
		svc, _ := store.ServiceByID(st, id)

		fmt.Printf("%s (%s)\n", svc.ID, svc.Name)
		fmt.Printf("  type:   %s\n", svc.Type)
		fmt.Printf("  status: %s\n", svc.Status)
		fmt.Printf("  url:    %s\n", svc.URL)
		if ms := svc.MappingStatus(); ms != nil {
			fmt.Printf("  mapping: enabled=%t loading=%t supported=%t\n", ms.Enabled, ms.Loading, ms.Supported)
			if ms.ErrorMessage != "" {
				fmt.Printf("  mapping error: %s\n", ms.ErrorMessage)
				for _, d := range ms.ErrorMessageDetails {
					fmt.Printf("    - %s\n", d)
				}
			}
		}
		fmt.Println()

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FEATURE TYPE\tDISPLAY NAME\tPROPERTIES\tQN")
		for _, ft := range store.FeatureTypes(st, id) {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", ft.ID, ft.DisplayName, len(ft.Mappings), ft.QN())
		}
		return tw.Flush()
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <service> <jsonpath>",
	Short: "Evaluate a JSONPath expression over a service configuration",
	Example: `  wfsproxy query inspire '$.featureTypes.*.displayName'
  wfsproxy query inspire '$.serviceProperties.mappingStatus'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		_, raw, err := client.FetchServiceConfig(cmd.Context(), e.client, args[0])
		if err != nil {
			if !client.IsKind(err, client.KindTransport) || e.cache == nil {
				return err
			}
			if raw, _, err = e.cache.LoadService(args[0]); err != nil {
				return fmt.Errorf("service %s not cached: %w", args[0], err)
			}
		}
		matches, err := ingest.NewJsonWalker().QueryDocument(raw, args[1])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		for _, m := range matches {
			if err := enc.Encode(m.Context()); err != nil {
				return err
			}
		}
		return nil
	},
}
