package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/scholar-harvest/internal/store"
	"github.com/pdiddy/scholar-harvest/pkg/types"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List citations recorded by previous harvests",
	Long: `List queries the citation index in the results directory. Results can be
filtered by download status, DOI prefix, or the presence of a formatted
reference.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().String("status", "", "filter by download status: pending, completed, failed, ...")
	listCmd.Flags().String("doi-prefix", "", "filter by DOI prefix, e.g. 10.1371")
	listCmd.Flags().Bool("with-reference", false, "only citations with a formatted reference")
	listCmd.Flags().Int("limit", 0, "maximum number of citations (0 = all)")
	listCmd.Flags().Bool("json", false, "output citations as JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	dir := viper.GetString("results_dir")
	if _, err := os.Stat(store.DBPath(dir)); err != nil {
		return fmt.Errorf("no citation index in %s (run harvest first)", dir)
	}
	db, err := store.NewSQLiteStore(dir)
	if err != nil {
		return err
	}
	defer db.Close()

	status, _ := cmd.Flags().GetString("status")
	prefix, _ := cmd.Flags().GetString("doi-prefix")
	withRef, _ := cmd.Flags().GetBool("with-reference")
	limit, _ := cmd.Flags().GetInt("limit")

	citations, err := db.List(cmd.Context(), store.Filter{
		Status:        types.DownloadStatus(status),
		DOIPrefix:     prefix,
		WithReference: withRef,
		Limit:         limit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if citations == nil {
			citations = []*types.Citation{}
		}
		return enc.Encode(citations)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tDOI\tURL")
	for _, c := range citations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Status, dash(c.DOI), dash(c.PublisherURL))
	}
	w.Flush()

	counts, err := db.Counts(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nShown: %d (completed: %d, failed: %d, pending: %d)\n",
		len(citations), counts[types.StatusCompleted], counts[types.StatusFailed], counts[types.StatusPending])
	return nil
}
