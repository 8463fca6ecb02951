package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/contacts/internal/contact"
)

// previewLines is how much of a written document export prints.
const previewLines = 10

func newExportCmd(a *app) *cobra.Command {
	var (
		id     string
		output string
		all    bool
		list   bool
	)

	cmd := &cobra.Command{
		Use:     "export [NAME]",
		GroupID: "sync",
		Short:   "Export contacts to YAML documents",
		Long: `Export a contact to a YAML document that can be edited and imported back.

NAME is matched case-insensitively against contact names and may be partial;
the first match in name order is exported. The document is written to
<export.dir>/<name>.yaml unless --output is given.

With --all every contact is exported into --output (a directory), or into
export.dir. --list prints the contacts that can be exported.`,
		Example: `  ct export "Ada"
  ct export "Lovelace" -o backup.yaml
  ct export --id 1f0c... -o ada.yaml
  ct export --all --output exports/
  ct export --list`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case list:
				return a.exportList(cmd)
			case all:
				return a.exportAll(cmd, output)
			case id != "" || len(args) == 1:
				name := ""
				if len(args) == 1 {
					name = args[0]
				}
				return a.exportOne(cmd, name, id, output)
			}
			return errors.New("specify a contact name, --id, --all or --list")
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "export the contact with this id")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, or directory with --all")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "export every contact")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list contacts available for export")
	cmd.MarkFlagsMutuallyExclusive("all", "list", "id")
	return cmd
}

func (a *app) exportList(cmd *cobra.Command) error {
	q, err := a.query(cmd.Context())
	if err != nil {
		return err
	}
	contacts, err := q.All(cmd.Context())
	if err != nil {
		return err
	}
	if len(contacts) == 0 {
		a.ui.Println("No contacts in the database.")
		return nil
	}

	a.ui.Println(a.ui.Accent(fmt.Sprintf("Contacts (%d):", len(contacts))))
	for _, c := range contacts {
		line := "  • " + c.Name
		if c.Company != nil && *c.Company != "" {
			line += " (" + *c.Company + ")"
		}
		if c.Email != nil && *c.Email != "" {
			line += " - " + *c.Email
		}
		a.ui.Println(line)
	}
	return nil
}

func (a *app) exportOne(cmd *cobra.Command, name, id, output string) error {
	var c *contact.Contact
	if id != "" {
		database, err := a.store(cmd.Context())
		if err != nil {
			return err
		}
		if c, err = database.GetContext(cmd.Context(), id); err != nil {
			return err
		}
	} else {
		q, err := a.query(cmd.Context())
		if err != nil {
			return err
		}
		matches, err := q.FindByName(cmd.Context(), name)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return fmt.Errorf("%w: no contact named like %q (names may be partial, see ct export --list)", contact.ErrNotFound, name)
		}
		c = matches[0]
	}

	path := output
	if path == "" {
		path = filepath.Join(a.cfg.ExportDir, contact.SafeFilename(c.Name))
	}
	if err := contact.WriteFile(path, c); err != nil {
		return err
	}

	a.ui.Println(a.ui.Pass("✓"), "Contact exported")
	a.ui.Println("  Name    :", c.Name)
	a.ui.Println("  Company :", orNA(c.Company))
	a.ui.Println("  Email   :", orNA(c.Email))
	a.ui.Println("  File    :", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read back %s: %w", path, err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	a.ui.Println()
	if len(lines) > previewLines {
		a.ui.Println(a.ui.Muted(fmt.Sprintf("Preview (first %d lines):", previewLines)))
		a.ui.Println(strings.Join(lines[:previewLines], "\n"))
		a.ui.Println("...")
	} else {
		a.ui.Println(a.ui.Muted("Content:"))
		a.ui.Println(strings.Join(lines, "\n"))
	}
	return nil
}

func (a *app) exportAll(cmd *cobra.Command, output string) error {
	dir := output
	if dir == "" {
		dir = a.cfg.ExportDir
	}

	q, err := a.query(cmd.Context())
	if err != nil {
		return err
	}
	contacts, err := q.All(cmd.Context())
	if err != nil {
		return err
	}
	if len(contacts) == 0 {
		a.ui.Println("No contacts in the database.")
		return nil
	}

	a.ui.Println(a.ui.Accent(fmt.Sprintf("Exporting %d contact(s) to %s", len(contacts), dir)))

	failed := 0
	for i, c := range contacts {
		path := filepath.Join(dir, contact.SafeFilename(c.Name))
		prefix := fmt.Sprintf("  [%d/%d]", i+1, len(contacts))
		if err := contact.WriteFile(path, c); err != nil {
			a.ui.Println(prefix, a.ui.Fail("✗"), c.Name, "-", err.Error())
			failed++
			continue
		}
		label := c.Name
		if c.Company != nil && *c.Company != "" {
			label += " (" + *c.Company + ")"
		}
		a.ui.Println(prefix, a.ui.Pass("✓"), label, "→", path)
	}

	a.ui.Println()
	a.ui.Println(fmt.Sprintf("Exported: %d  Failed: %d", len(contacts)-failed, failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d exports failed", failed, len(contacts))
	}
	return nil
}
