package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var flagIndexCollection string

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Index a codebase into a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		collection := flagIndexCollection
		if collection == "" {
			collection = filepath.Base(root)
		}

		fmt.Printf("Indexing %s into %q...\n", root, collection)
		start := time.Now()

		stats, err := a.indexer.IndexDirectory(cmd.Context(), root, collection)
		elapsed := time.Since(start)

		if stats != nil {
			fmt.Printf("\nDone in %s\n", elapsed.Round(time.Millisecond))
			fmt.Printf("  Files:   %d total, %d indexed, %d skipped, %d failed\n",
				stats.FilesTotal, stats.FilesIndexed, stats.FilesSkipped, stats.FilesFailed)
			fmt.Printf("  Chunks:  %d\n", stats.ChunksTotal)
		}

		return err
	},
}

func init() {
	indexCmd.Flags().StringVar(&flagIndexCollection, "collection", "", "target collection (default: directory name)")
	rootCmd.AddCommand(indexCmd)
}
