package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tarxiv/tarxiv/internal/logger"
)

var (
	bulkLimit  int
	bulkDryRun bool
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Backfill from the TNS public object list",
	Long: `Downloads the full TNS public object list and ingests every named
object. Intended for initial population of an empty store; with the default
TNS rate limit a complete run takes days, so --limit is useful for trials.`,
	RunE: runBulk,
}

func init() {
	bulkCmd.Flags().IntVar(&bulkLimit, "limit", 0, "ingest at most this many objects (0 = all)")
	bulkCmd.Flags().BoolVar(&bulkDryRun, "dry-run", false, "list object names without ingesting")
	rootCmd.AddCommand(bulkCmd)
}

func runBulk(cmd *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	names, err := a.tns.DownloadBulk(cmd.Context())
	if err != nil {
		return fmt.Errorf("downloading object list: %w", err)
	}
	logger.Info("bulk list holds %d objects", len(names))

	if bulkLimit > 0 && bulkLimit < len(names) {
		names = names[:bulkLimit]
	}
	if bulkDryRun {
		for _, name := range names {
			cmd.Println(name)
		}
		return nil
	}

	pipeline := a.pipeline(nil)
	var failed int
	for i, name := range names {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		if _, err := pipeline.IngestName(cmd.Context(), name); err != nil {
			failed++
			logger.Warn("bulk: %s: %v", name, err)
			continue
		}
		if (i+1)%100 == 0 {
			logger.Info("bulk: %d/%d done", i+1, len(names))
		}
	}

	cmd.Printf("Ingested %d objects, %d failed.\n", len(names)-failed, failed)
	return nil
}
