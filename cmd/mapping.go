package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/agentic-research/wfsproxy-manager/api"
	"github.com/agentic-research/wfsproxy-manager/internal/client"
	"github.com/agentic-research/wfsproxy-manager/internal/mappingedit"
	"github.com/agentic-research/wfsproxy-manager/internal/proptree"
	"github.com/agentic-research/wfsproxy-manager/internal/qname"
	"github.com/agentic-research/wfsproxy-manager/internal/store"
	"github.com/agentic-research/wfsproxy-manager/internal/view"
)

var (
	treeOutput   string
	treeProperty string
)

func init() {
	treeCmd.Flags().StringVarP(&treeOutput, "output", "o", "text", "Output format: text, json or yaml")
	treeCmd.Flags().StringVarP(&treeProperty, "property", "p", "", "Property to open in the edit panel")
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(enableMappingCmd)
	rootCmd.AddCommand(setMappingCmd)
}

var treeCmd = &cobra.Command{
	Use:   "tree <service> <feature-type>",
	Short: "Print the property tree of a feature type",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		id, ftid := args[0], args[1]
		if err := e.fetch(cmd.Context(), id); err != nil {
			return err
		}
		e.store.SelectService(id)
		e.store.SelectFeatureType(ftid)
		if treeProperty != "" {
			e.store.SelectProperty(treeProperty)
		}
		show, err := view.BuildFeatureTypeShow(e.store.Snapshot(), e.cfg.Namespaces)
		if err != nil {
			return err
		}
		return writeShow(os.Stdout, show, treeOutput)
	},
}

func writeShow(w io.Writer, show *view.FeatureTypeShow, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(show)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(show.Tree); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		writeTree(w, show.Tree)
		if show.Edit != nil {
			fmt.Fprintf(w, "\n%s (%s)\n", show.Edit.Title, show.Edit.ID)
			for _, f := range show.Edit.Forms {
				writeForm(w, f)
			}
		}
		return nil
	default:
		return fmt.Errorf("output %q: %w", format, errUsage)
	}
}

func writeTree(w io.Writer, t *proptree.Tree) {
	for _, n := range t.Nodes {
		marker := " "
		if n.Expandable {
			marker = "+"
			if t.IsExpanded(n.ID) {
				marker = "-"
			}
		}
		fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("  ", t.Depth(n.ID)), marker, n.Title)
	}
}

func writeForm(w io.Writer, f *mappingedit.Form) {
	if f.Collapsed() {
		fmt.Fprintf(w, "  [%s] disabled\n", f.MimeType)
		return
	}
	fmt.Fprintf(w, "  [%s]\n", f.MimeType)
	for _, c := range f.Controls() {
		fmt.Fprintf(w, "    %-18s %s\n", c.Field, controlValue(f.State, c))
	}
}

func controlValue(t api.TargetMapping, c mappingedit.Control) string {
	var v string
	switch c.Field {
	case mappingedit.FieldEnabled:
		v = fmt.Sprint(t.Enabled)
	case mappingedit.FieldShowInCollection:
		v = fmt.Sprint(t.ShowInCollection)
	case mappingedit.FieldName:
		v = t.Name
	case mappingedit.FieldType:
		v = t.Type
	case mappingedit.FieldItemType:
		v = t.ItemType
	case mappingedit.FieldItemProp:
		v = t.ItemProp
	}
	if c.ReadOnly {
		v += " (read-only)"
	}
	return v
}

var enableMappingCmd = &cobra.Command{
	Use:   "enable-mapping <service>",
	Short: "Switch on schema mapping for a service",
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
		svc, _ := store.ServiceByID(e.store.Snapshot(), id)
		if ms := svc.MappingStatus(); ms != nil && ms.Enabled {
			fmt.Printf("mapping already enabled for %s\n", id)
			return nil
		}
		if err := client.UpdateService(cmd.Context(), e.client, e.store, view.EnableMapping(svc)); err != nil {
			return err
		}
		fmt.Printf("mapping enabled for %s\n", id)
		return nil
	},
}

var setMappingCmd = &cobra.Command{
	Use:   "set-mapping <service> <feature-type> <property|-> <mime-type> field=value...",
	Short: "Edit the mapping of a property in one output format",
	Long: `Edit the mapping of a property in one output format.

Use "-" as property to edit the feature type's own mapping. Fields are
enabled, name, type, showInCollection, itemType and itemProp.`,
	Example: `  wfsproxy set-mapping inspire building building_2 text/html name=Street showInCollection=true`,
	Args:    cobra.MinimumNArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		edits, err := parseAssignments(args[4:])
		if err != nil {
			return err
		}
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		id, ftid, property, mime := args[0], args[1], args[2], args[3]
		if err := e.fetch(cmd.Context(), id); err != nil {
			return err
		}
		change, err := buildChange(e.store.Snapshot(), e.cfg.Namespaces, id, ftid, property, mime, edits)
		if err != nil {
			return err
		}
		if err := client.UpdateFeatureType(cmd.Context(), e.client, e.store, id, ftid, change); err != nil {
			return err
		}
		fmt.Printf("updated %s of %s/%s\n", mime, id, ftid)
		return nil
	},
}

type assignment struct {
	Field mappingedit.Field
	Value string
}

// parseAssignments splits field=value arguments. Values may contain "=".
func parseAssignments(args []string) ([]assignment, error) {
	out := make([]assignment, 0, len(args))
	for _, a := range args {
		field, value, ok := strings.Cut(a, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("%q is not field=value: %w", a, errUsage)
		}
		out = append(out, assignment{Field: mappingedit.Field(field), Value: value})
	}
	return out, nil
}

// buildChange applies edits in order to the form of mime and returns the
// resulting change. property "-" addresses the feature type's own mapping.
func buildChange(st store.State, extra qname.Namespaces, service, ftid, property, mime string, edits []assignment) (api.FeatureTypeChange, error) {
	ft, ok := store.FeatureTypeByID(st, service, ftid)
	if !ok {
		return api.FeatureTypeChange{}, fmt.Errorf("feature type %s of %s: %w", ftid, service, store.ErrNotFound)
	}
	if property == "-" || property == "" {
		property = ft.ID
	}
	m, ok := store.MappingByID(st, service, ftid, property)
	if !ok {
		if m, ok = store.MappingByQN(st, service, ftid, property); !ok {
			return api.FeatureTypeChange{}, fmt.Errorf("property %s of %s: %w", property, ftid, store.ErrNotFound)
		}
	}
	svc, _ := store.ServiceByID(st, service)
	pe := view.NewPropertyEdit(ft, m, view.Namespaces(svc, extra))
	form := pe.Form(mime)
	if form == nil {
		form = mappingedit.NewForm(mime, api.TargetMapping{}, pe.IsFeatureType)
	}

	change := api.FeatureTypeChange{Mappings: form.Change()}
	for _, a := range edits {
		mimes, err := form.Set(a.Field, a.Value)
		if err != nil {
			return api.FeatureTypeChange{}, err
		}
		change.Mappings = mimes
	}
	if !pe.IsFeatureType {
		change.QN = m.QN
	}
	return change, nil
}
