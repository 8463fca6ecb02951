package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/contacts/internal/contact"
	contactsync "github.com/steveyegge/contacts/internal/sync"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		createIfMissing bool
		dryRun          bool
		preview         bool
		yes             bool
	)

	cmd := &cobra.Command{
		Use:     "import FILE",
		GroupID: "sync",
		Short:   "Merge a YAML document into the database",
		Long: `Merge a contact document into the database.

The document must carry a contactId. Only the fields present in the document
are compared; every changed field is shown and written in one step. Fields
missing from the document are left untouched. Collections (events, notes,
next actions, opportunities) are replaced as a whole.

When the output is a terminal the changes are shown first and confirmed
before anything is written, unless --yes is given.`,
		Example: `  ct import data/contacts/ada_lovelace.yaml
  ct import new.yaml --create-if-missing
  ct import ada.yaml --dry-run
  ct import ada.yaml --preview`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			doc, err := contact.ReadFile(path)
			if err != nil {
				return err
			}

			if preview {
				a.printPreview(path, contactsync.New(nil, a.logger("sync")).Preview(doc))
				return nil
			}

			database, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			syncer := contactsync.New(database, a.logger("sync"))

			opts := contactsync.Options{
				CreateIfMissing: a.cfg.CreateIfMissing,
				DryRun:          dryRun,
			}
			if cmd.Flags().Changed("create-if-missing") {
				opts.CreateIfMissing = createIfMissing
			}

			if !dryRun && !yes && a.ui.Interactive() {
				check := opts
				check.DryRun = true
				report, err := syncer.Merge(cmd.Context(), doc, check)
				if err != nil {
					return err
				}
				a.printReport(report)
				if report.Action == contactsync.ActionNoop {
					return nil
				}
				ok, err := a.ui.Confirm("Apply these changes?", path)
				if err != nil {
					return err
				}
				if !ok {
					a.ui.Println("Aborted, nothing written.")
					return nil
				}
			}

			report, err := syncer.Merge(cmd.Context(), doc, opts)
			if err != nil {
				return err
			}
			if yes || dryRun || !a.ui.Interactive() {
				a.printReport(report)
			}
			if report.Written() {
				a.printResult(report)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&createIfMissing, "create-if-missing", "c", false, "create the contact when its id is unknown")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "show the changes without writing them")
	cmd.Flags().BoolVarP(&preview, "preview", "p", false, "summarize the document without importing it")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (a *app) printPreview(path string, summary contactsync.DocumentSummary) {
	a.ui.Println(a.ui.Accent("Document: " + path))
	a.ui.Println(fmt.Sprintf("  %-15s : %s", "contactId", summary.ContactID))
	for _, line := range summary.Fields {
		a.ui.Println(fmt.Sprintf("  %-15s : %s", line.Field, line.Value))
	}
	if len(summary.Collections) > 0 {
		a.ui.Println()
		for _, line := range summary.Collections {
			a.ui.Println(fmt.Sprintf("  %-15s : %s", line.Field, line.Value))
		}
	}
}

func (a *app) printReport(report *contactsync.Report) {
	switch report.Action {
	case contactsync.ActionNoop:
		a.ui.Println(a.ui.Pass("✓"), "No changes for", report.ContactID)
		return
	case contactsync.ActionCreate:
		a.ui.Println(a.ui.Accent("Creating"), report.ContactID)
	default:
		a.ui.Println(a.ui.Accent("Updating"), report.ContactID)
	}

	for _, c := range report.Changes {
		a.ui.Println(fmt.Sprintf("  %-15s : %s → %s", c.Field, a.ui.Muted(c.Old), c.New))
	}
	a.ui.Println(fmt.Sprintf("%d field(s) changed", len(report.Changes)))
	if report.DryRun {
		a.ui.Println(a.ui.Warn("Dry run, nothing written."))
	}
}

func (a *app) printResult(report *contactsync.Report) {
	c := report.Contact
	verb := "Updated"
	if report.Action == contactsync.ActionCreate {
		verb = "Created"
	}
	a.ui.Println()
	a.ui.Println(a.ui.Pass("✓"), verb, c.Name)
	a.ui.Println("  ID      :", c.ContactID)
	a.ui.Println("  Company :", orNA(c.Company))
	a.ui.Println("  Email   :", orNA(c.Email))
	a.ui.Println(fmt.Sprintf("  Events: %d  Notes: %d  Next actions: %d  Opportunities: %d",
		len(c.Events), len(c.ImportantNotes), len(c.NextActions), len(c.Opportunities)))
}
