package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	flagSearchCollection string
	flagSearchK          int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search an indexed collection",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if err := a.indexer.RebuildSparse(ctx, flagSearchCollection); err != nil {
			return err
		}

		results, err := a.engine.Search(ctx, flagSearchCollection, query, flagSearchK)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Printf("No results for %q in %q\n", query, flagSearchCollection)
			return nil
		}

		for i, r := range results {
			fmt.Printf("%d. %s:%d (%.3f)\n", i+1, r.FilePath, r.StartLine, r.Score)
			content := r.Content
			if idx := strings.IndexByte(content, '\n'); idx >= 0 {
				content = content[:idx]
			}
			if len(content) > 120 {
				content = content[:120] + "..."
			}
			fmt.Printf("   %s\n", content)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&flagSearchCollection, "collection", "default", "collection to search")
	searchCmd.Flags().IntVar(&flagSearchK, "k", 10, "maximum results")
	rootCmd.AddCommand(searchCmd)
}
