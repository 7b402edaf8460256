package cmd

import (
	"os"
	"time"

	"codescope/internal/common"
	"codescope/internal/mcp"
	"codescope/internal/validate"

	"github.com/spf13/cobra"
)

var flagHTTP string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the tool protocol over stdio or streamable HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol in stdio mode, so logs go to stderr.
		common.SetOutput(os.Stderr)

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		db, err := a.openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()
		mem, err := a.openMemory(ctx, db)
		if err != nil {
			return err
		}

		rules, err := validate.Load()
		if err != nil {
			return err
		}
		if err := a.restoreSparse(ctx); err != nil {
			return err
		}

		retention := time.Duration(a.cfg.RetentionDays) * 24 * time.Hour
		if swept, err := mem.Sweep(ctx, retention); err != nil {
			common.Logger().Warn("retention sweep failed", "error", err)
		} else if swept > 0 {
			common.Logger().Info("retention sweep", "removed", swept)
		}

		srv, err := mcp.NewServer(mcp.Deps{
			Indexer: a.indexer,
			Engine:  a.engine,
			Store:   a.store,
			Catalog: a.catalog,
			Memory:  mem,
			Rules:   rules,
			Tracker: a.tracker,
			Bus:     a.bus,
			Limiter: a.limits,
		})
		if err != nil {
			return err
		}

		if flagHTTP != "" {
			return srv.ServeHTTP(flagHTTP)
		}
		return srv.ServeStdio()
	},
}

func init() {
	mcpCmd.Flags().StringVar(&flagHTTP, "http", "", "serve streamable HTTP on this address instead of stdio (e.g. :8385)")
	rootCmd.AddCommand(mcpCmd)
}
