package cmd

import (
	"fmt"
	"path/filepath"

	"codescope/internal/validate"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Check a codebase against the architecture rule catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		rules, err := validate.Load()
		if err != nil {
			return err
		}
		inventory, err := validate.BuildInventory(root)
		if err != nil {
			return err
		}
		violations, err := validate.NewScanner(rules).Scan(cmd.Context(), inventory)
		if err != nil {
			return err
		}

		errors := 0
		for _, v := range violations {
			fmt.Printf("%s:%d  [%s/%s]  %s\n", v.File(), v.Line(), v.ID(), v.Severity(), v.Display())
			if s := v.Suggestion(); s != "" {
				fmt.Printf("    hint: %s\n", s)
			}
			if v.Severity() == validate.SeverityError {
				errors++
			}
		}

		fmt.Printf("\n%d files checked, %d findings (%d errors)\n", len(inventory), len(violations), errors)
		if errors > 0 {
			return fmt.Errorf("%d rule errors", errors)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
