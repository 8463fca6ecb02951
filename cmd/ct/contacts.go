package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/contacts/internal/contact"
)

func newListCmd(a *app) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:     "list",
		GroupID: "contacts",
		Short:   "List contacts, newest first",
		Long: `List contacts, newest first.

--search keeps contacts whose name, email, company or position contains the
given text.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.query(cmd.Context())
			if err != nil {
				return err
			}
			contacts, err := q.Search(cmd.Context(), search)
			if err != nil {
				return err
			}
			if len(contacts) == 0 {
				a.ui.Println("No contacts found.")
				return nil
			}

			rows := make([][]string, 0, len(contacts))
			for _, c := range contacts {
				rows = append(rows, []string{
					c.ContactID,
					c.Name,
					orNA(c.Company),
					orNA(c.Email),
					c.CreatedAt.Format("2006-01-02"),
				})
			}
			a.ui.Println(a.ui.Table([]string{"ID", "NAME", "COMPANY", "EMAIL", "CREATED"}, rows))
			a.ui.Println(a.ui.Muted(fmt.Sprintf("%d contact(s)", len(contacts))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "only contacts containing this text")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "show ID",
		GroupID: "contacts",
		Short:   "Show one contact",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			c, err := database.GetContext(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var data []byte
			if asJSON {
				data, err = json.MarshalIndent(c, "", "  ")
				data = append(data, '\n')
			} else {
				data, err = contact.Export(c)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of YAML")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "stats",
		GroupID: "contacts",
		Short:   "Show contact and opportunity totals",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.query(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := q.Stats(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(stats, "", "  ")
				if err != nil {
					return err
				}
				a.ui.Println(string(data))
				return nil
			}

			a.ui.Println(a.ui.Accent("Contact book"))
			a.ui.Println(fmt.Sprintf("  Contacts      : %d", stats.TotalContacts))
			a.ui.Println(fmt.Sprintf("  Opportunities : %d", stats.TotalOpportunities))
			a.ui.Println(fmt.Sprintf("  Total value   : %.2f", stats.TotalOpportunitiesValue))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete ID",
		GroupID: "contacts",
		Short:   "Delete a contact",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			database, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			c, err := database.GetContext(cmd.Context(), id)
			if err != nil {
				return err
			}

			if !yes {
				ok, err := a.ui.Confirm(fmt.Sprintf("Delete %s?", c.Name), id)
				if err != nil {
					return err
				}
				if !ok {
					a.ui.Println("Aborted.")
					return nil
				}
			}

			removed, err := database.DeleteContext(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%w: %s", contact.ErrNotFound, id)
			}
			a.ui.Println(a.ui.Pass("✓"), "Deleted", c.Name, a.ui.Muted("("+id+")"))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// orNA renders an optional field for display.
func orNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}
