package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/contacts/internal/backup"
	"github.com/steveyegge/contacts/internal/contact"
	contactsync "github.com/steveyegge/contacts/internal/sync"
)

func newBackupCmd(a *app) *cobra.Command {
	var bucket, prefix, endpoint string

	cmd := &cobra.Command{
		Use:     "backup",
		GroupID: "sync",
		Short:   "Back up contacts to S3 and restore them",
		Long: `Store snapshots of the contact book in an S3-compatible bucket.

Each snapshot holds one YAML document per contact, in the export format.
The bucket comes from backup.bucket (or CT_BACKUP_BUCKET); AWS credentials
come from the usual AWS environment variables or shared config.`,
	}
	cmd.PersistentFlags().StringVar(&bucket, "bucket", "", "bucket (default backup.bucket)")
	cmd.PersistentFlags().StringVar(&prefix, "prefix", "", "key prefix (default backup.prefix)")
	cmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "S3 endpoint URL, e.g. for MinIO")

	open := func(ctx context.Context, cmd *cobra.Command) (*backup.Store, error) {
		cfg := a.cfg.Backup
		if cmd.Flags().Changed("bucket") {
			cfg.Bucket = bucket
		}
		if cmd.Flags().Changed("prefix") {
			cfg.Prefix = prefix
		}
		if cmd.Flags().Changed("endpoint") {
			cfg.Endpoint = endpoint
		}
		return backup.New(ctx, backup.Config{
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.PathStyle,
		})
	}

	push := &cobra.Command{
		Use:   "push",
		Short: "Upload a snapshot of every contact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			remote, err := open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			q, err := a.query(cmd.Context())
			if err != nil {
				return err
			}
			contacts, err := q.All(cmd.Context())
			if err != nil {
				return err
			}
			snapshot, err := remote.Push(cmd.Context(), contacts, time.Now())
			if err != nil {
				return err
			}
			a.ui.Println(a.ui.Pass("✓"), fmt.Sprintf("Uploaded %d contact(s) as snapshot %s to s3://%s", len(contacts), snapshot, remote.Bucket()))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			remote, err := open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			names, err := remote.Snapshots(cmd.Context())
			if err != nil {
				return err
			}
			if len(names) == 0 {
				a.ui.Println("No snapshots.")
				return nil
			}
			for _, name := range names {
				a.ui.Println(name)
			}
			return nil
		},
	}

	var dryRun bool
	pull := &cobra.Command{
		Use:   "pull [SNAPSHOT]",
		Short: "Merge a snapshot (the latest by default) into the database",
		Long: `Merge every document of a snapshot into the database, creating contacts
that do not exist. Contacts that are not in the snapshot are kept.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote, err := open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			snapshot := ""
			if len(args) == 1 {
				snapshot = args[0]
			} else if snapshot, err = remote.Latest(cmd.Context()); err != nil {
				return err
			}

			docs, err := remote.Documents(cmd.Context(), snapshot)
			if err != nil {
				return err
			}
			database, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			syncer := contactsync.New(database, a.logger("sync"))

			counts := map[contactsync.Action]int{}
			failed := 0
			for _, doc := range docs {
				report, err := syncer.Merge(cmd.Context(), doc, contactsync.Options{CreateIfMissing: true, DryRun: dryRun})
				if err != nil {
					if contact.IsFatal(err) {
						return err
					}
					a.ui.Println(a.ui.Fail("✗"), doc.ContactID(), "-", err.Error())
					failed++
					continue
				}
				counts[report.Action]++
			}

			a.ui.Println(fmt.Sprintf("Snapshot %s: %d created, %d updated, %d unchanged, %d failed",
				snapshot, counts[contactsync.ActionCreate], counts[contactsync.ActionUpdate], counts[contactsync.ActionNoop], failed))
			if dryRun {
				a.ui.Println(a.ui.Warn("Dry run, nothing written."))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(docs))
			}
			return nil
		},
	}
	pull.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "show what would change without writing")

	cmd.AddCommand(push, list, pull)
	return cmd
}
