package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <name>...",
	Short: "Ingest objects by TNS name",
	Long: `Aggregates the named objects across the configured surveys and
upserts their records into the document store. Names are canonical TNS
object names, e.g. "2024utu".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	pipeline := a.pipeline(nil)

	var failed int
	for _, name := range args {
		record, err := pipeline.IngestName(cmd.Context(), name)
		if err != nil {
			failed++
			cmd.PrintErrf("%s: %v\n", name, err)
			continue
		}
		cmd.Printf("%s: %d sources, %d lightcurve points\n",
			record.Name(), len(record.Sources), len(record.Lightcurve))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d objects failed", failed, len(args))
	}
	return nil
}
