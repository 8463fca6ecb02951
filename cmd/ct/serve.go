package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steveyegge/contacts/internal/api"
	contactsync "github.com/steveyegge/contacts/internal/sync"
	"github.com/steveyegge/contacts/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var createIfMissing bool

	cmd := &cobra.Command{
		Use:     "watch [DIR]",
		GroupID: "sync",
		Short:   "Import documents as they are edited",
		Long: `Watch a directory (export.dir by default) and merge every *.yaml
document into the database when it is saved. Deleting a document never
deletes the contact. Stop with Ctrl+C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.ExportDir
			if len(args) == 1 {
				dir = args[0]
			}
			create := a.cfg.CreateIfMissing
			if cmd.Flags().Changed("create-if-missing") {
				create = createIfMissing
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w, err := a.newWatcher(ctx, dir, create, nil)
			if err != nil {
				return err
			}
			a.ui.Println(a.ui.Accent("Watching"), dir, a.ui.Muted("(Ctrl+C to stop)"))
			return w.Run(ctx)
		},
	}

	cmd.Flags().BoolVarP(&createIfMissing, "create-if-missing", "c", false, "create contacts for unknown ids")
	return cmd
}

func (a *app) newWatcher(ctx context.Context, dir string, create bool, onMerge func(*contactsync.Report)) (*watch.Watcher, error) {
	database, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	cfg := watch.DefaultConfig()
	cfg.CreateIfMissing = create
	cfg.OnMerge = onMerge
	cfg.Logger = a.logger("watch")
	return watch.New(contactsync.New(database, a.logger("sync")), dir, cfg)
}

func newServeCmd(a *app) *cobra.Command {
	var (
		port     int
		watchDir string
	)

	cmd := &cobra.Command{
		Use:     "serve",
		GroupID: "server",
		Short:   "Serve the HTTP API and overview page",
		Long: `Serve the JSON API under /api, an overview page at /, a live feed of
changes at /ws and Prometheus metrics at /metrics.

With --watch the server also merges edited documents from a directory and
pushes the resulting changes to live feed clients.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = a.cfg.ServerPort
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			database, err := a.store(ctx)
			if err != nil {
				return err
			}
			server := api.NewServer(database, &api.Config{
				Port:          port,
				CaseSensitive: a.cfg.CaseSensitive,
				Logger:        a.logger("api"),
			})
			if err := server.Start(); err != nil {
				return err
			}
			a.ui.Println(a.ui.Pass("✓"), "Serving on", fmt.Sprintf("http://%s", server.GetAddr()))

			errc := make(chan error, 1)
			watching := watchDir != ""
			if watching {
				w, err := a.newWatcher(ctx, watchDir, a.cfg.CreateIfMissing, func(report *contactsync.Report) {
					action := api.ActionUpdated
					if report.Action == contactsync.ActionCreate {
						action = api.ActionCreated
					}
					server.ContactChanged(ctx, action, report.ContactID, report.Contact.Name)
				})
				if err != nil {
					_ = server.Stop()
					return err
				}
				go func() { errc <- w.Run(ctx) }()
			}

			select {
			case <-ctx.Done():
			case err = <-errc:
				watching = false
			}
			stop()
			if watching {
				// Let the watcher flush before the server goes away.
				if werr := <-errc; err == nil {
					err = werr
				}
			}
			if stopErr := server.Stop(); stopErr != nil && err == nil {
				err = stopErr
			}
			return err
		},
	}

	cmd.Flags().IntVar(&port, "port", 8000, "port to listen on (default from server.port)")
	cmd.Flags().StringVar(&watchDir, "watch", "", "also merge edited documents from this directory")
	return cmd
}
