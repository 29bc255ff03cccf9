package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/scholar-harvest/internal/logging"
	"github.com/pdiddy/scholar-harvest/internal/scan"
	"github.com/pdiddy/scholar-harvest/pkg/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List museum catalog codes found in downloaded PDFs",
	Long: `Scan extracts the text of every PDF in the results directory and prints,
as YAML, the unique collection catalog codes (CAN, CMN and NMC numbers) each
one mentions. PDFs that cannot be read are skipped.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().Bool("only-matches", false, "omit PDFs without any catalog code")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	logger, err := logging.New(types.LogConfig{
		Level:       viper.GetString("log.level"),
		Development: viper.GetBool("log.development"),
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	findings, err := scan.Scan(cmd.Context(), viper.GetString("results_dir"), logger)
	if err != nil {
		return err
	}
	if only, _ := cmd.Flags().GetBool("only-matches"); only {
		kept := findings[:0]
		for _, f := range findings {
			if len(f.CatalogItems) > 0 {
				kept = append(kept, f)
			}
		}
		findings = kept
	}
	if err := scan.WriteYAML(cmd.OutOrStdout(), findings); err != nil {
		return fmt.Errorf("writing scan results: %w", err)
	}
	return nil
}
