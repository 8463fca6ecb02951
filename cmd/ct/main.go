// Command ct manages a personal contact book: a SQLite record store that can
// be exported to and re-imported from per-contact YAML documents, served over
// HTTP and watched for edits.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/steveyegge/contacts/internal/config"
	"github.com/steveyegge/contacts/internal/logging"
	"github.com/steveyegge/contacts/internal/query"
	"github.com/steveyegge/contacts/internal/store"
	"github.com/steveyegge/contacts/internal/ui"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the command line and returns the process exit code.
func run(args []string) int {
	a := &app{v: config.New()}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// app is the state shared by all commands of one invocation.
type app struct {
	v          *viper.Viper
	configPath string

	cfg  *config.Config
	logs *logging.Output
	ui   *ui.UI
	db   *store.DB
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ct",
		Short: "Contact book with YAML export, import and a live HTTP API",
		Long: `ct keeps contacts in a local SQLite database (.contacts/contacts.db).

Contacts can be exported to YAML documents, edited by hand and merged back
with a field-by-field diff, served over HTTP, or kept in sync by watching
the export directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default .contacts/config.yaml)")
	root.PersistentFlags().String("db", "", "database path (default .contacts/contacts.db)")
	root.PersistentFlags().String("log-file", "", "write logs to this file instead of stderr")
	// Only fails for a nil flag.
	_ = config.BindFlag(a.v, config.KeyDB, root.PersistentFlags().Lookup("db"))
	_ = config.BindFlag(a.v, config.KeyLogFile, root.PersistentFlags().Lookup("log-file"))

	root.AddGroup(
		&cobra.Group{ID: "contacts", Title: "Contacts:"},
		&cobra.Group{ID: "sync", Title: "Export and import:"},
		&cobra.Group{ID: "server", Title: "Serving:"},
	)

	root.AddCommand(
		newInitCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newStatsCmd(a),
		newDeleteCmd(a),
		newEventCmd(a),
		newActionCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newBackupCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newBenchCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup resolves the configuration and the log output.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logs = logging.NewOutput(logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	a.ui = ui.New(cmd.OutOrStdout())
	return nil
}

// store opens the database on first use and makes sure the schema exists.
func (a *app) store(ctx context.Context) (*store.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	database, err := store.Open(a.cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := database.InitSchemaContext(ctx); err != nil {
		_ = database.Close()
		return nil, err
	}
	a.db = database
	return database, nil
}

func (a *app) query(ctx context.Context) (*query.Service, error) {
	database, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	return query.New(database, query.Config{CaseSensitive: a.cfg.CaseSensitive}), nil
}

func (a *app) logger(component string) *log.Logger {
	return a.logs.Logger(component)
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}
