package cli

import (
	"github.com/spf13/cobra"

	"github.com/tarxiv/tarxiv/internal/core/ports/driven"
)

var listCollection string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored object names",
	Long: `Prints the canonical name of every object stored in a collection,
one per line. Collections are "meta", "lightcurve" and "events".`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listCollection, "collection", driven.CollectionMeta, "collection to enumerate")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	keys, err := a.store.Keys(cmd.Context(), listCollection)
	if err != nil {
		return err
	}
	for _, key := range keys {
		cmd.Println(key)
	}
	return nil
}
