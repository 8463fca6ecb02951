package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/contacts/internal/loadtest"
	"github.com/steveyegge/contacts/internal/store"
)

func newBenchCmd(a *app) *cobra.Command {
	var (
		contacts int
		opts     loadtest.Options
	)

	cmd := &cobra.Command{
		Use:     "bench",
		GroupID: "server",
		Short:   "Measure store latency under concurrent load",
		Long: `Run a concurrent load test against a scratch database.

The database is generated in a temporary directory and removed afterwards;
the configured contact book is never touched. Clients mix searches, stats,
lookups and partial updates (--write-ratio), then the store is checked for
lost or duplicated contacts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.MkdirTemp("", "ct-bench-")
			if err != nil {
				return fmt.Errorf("failed to create scratch directory: %w", err)
			}
			defer os.RemoveAll(dir)

			database, err := store.Open(filepath.Join(dir, "bench.db"))
			if err != nil {
				return err
			}
			defer database.Close()
			if err := database.InitSchemaContext(cmd.Context()); err != nil {
				return err
			}

			start := time.Now()
			ids, err := loadtest.Populate(cmd.Context(), database, contacts)
			if err != nil {
				return err
			}
			a.ui.Println(a.ui.Muted(fmt.Sprintf("Generated %d contact(s) in %v", len(ids), time.Since(start).Round(time.Millisecond))))

			result, err := loadtest.Run(cmd.Context(), database, ids, opts)
			if result != nil {
				result.Fprint(cmd.OutOrStdout())
			}
			if err != nil {
				return err
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d operation(s) failed, first: %w", len(result.Errors), result.Errors[0])
			}
			a.ui.Println(a.ui.Pass("✓"), "Store consistent after run")
			return nil
		},
	}

	cmd.Flags().IntVar(&contacts, "contacts", 500, "contacts to generate")
	cmd.Flags().IntVar(&opts.Clients, "clients", 20, "concurrent clients")
	cmd.Flags().IntVar(&opts.OpsPerClient, "ops", 50, "operations per client")
	cmd.Flags().Float64Var(&opts.WriteRatio, "write-ratio", 0.1, "share of operations that are updates")
	return cmd
}
