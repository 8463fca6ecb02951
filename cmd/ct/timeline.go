package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/steveyegge/contacts/internal/contact"
)

// dateLayout is the layout of event dates and due dates.
const dateLayout = "2006-01-02"

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDate accepts a YYYY-MM-DD date or a natural-language one such as
// "tomorrow", "next friday" or "in 2 weeks", relative to now.
func parseDate(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.Format(dateLayout), nil
	}
	r, err := dateParser.Parse(s, now)
	if err != nil {
		return "", fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	if r == nil {
		return "", fmt.Errorf("%w: unrecognized date %q", contact.ErrValidation, s)
	}
	return r.Time.Format(dateLayout), nil
}

func newEventCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "event",
		GroupID: "contacts",
		Short:   "Manage a contact's events",
	}

	var eventType, notes, date string
	add := &cobra.Command{
		Use:   "add ID",
		Short: "Add an event to a contact",
		Example: `  ct event add 1f0c... --type meeting --notes "Intro call"
  ct event add 1f0c... --type email --notes "Sent deck" --date yesterday`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDate(date, time.Now())
			if err != nil {
				return err
			}
			database, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			c, err := database.GetContext(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			events := append(c.Events, contact.Event{Date: day, Type: eventType, Notes: notes})
			updated, err := database.UpdateContext(cmd.Context(), c.ContactID, contact.Patch{Events: contact.Some(events)})
			if err != nil {
				return err
			}
			a.ui.Println(a.ui.Pass("✓"), fmt.Sprintf("Added %s on %s to %s (%d event(s))", eventType, day, updated.Name, len(updated.Events)))
			return nil
		},
	}
	add.Flags().StringVarP(&eventType, "type", "t", "", "event type, e.g. meeting or call")
	add.Flags().StringVarP(&notes, "notes", "n", "", "what happened")
	add.Flags().StringVar(&date, "date", "today", "when it happened")
	_ = add.MarkFlagRequired("type")

	cmd.AddCommand(add)
	return cmd
}

func newActionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "action",
		GroupID: "contacts",
		Short:   "Manage a contact's next actions",
	}

	var action, due string
	add := &cobra.Command{
		Use:     "add ID",
		Short:   "Add a next action to a contact",
		Example: `  ct action add 1f0c... --action "Send proposal" --due "next friday"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDate(due, time.Now())
			if err != nil {
				return err
			}
			database, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			c, err := database.GetContext(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			actions := append(c.NextActions, contact.NextAction{Action: action, DueDate: day})
			updated, err := database.UpdateContext(cmd.Context(), c.ContactID, contact.Patch{NextActions: contact.Some(actions)})
			if err != nil {
				return err
			}
			a.ui.Println(a.ui.Pass("✓"), fmt.Sprintf("Added %q due %s to %s (%d action(s))", action, day, updated.Name, len(updated.NextActions)))
			return nil
		},
	}
	add.Flags().StringVarP(&action, "action", "a", "", "what to do")
	add.Flags().StringVar(&due, "due", "", "due date")
	_ = add.MarkFlagRequired("action")
	_ = add.MarkFlagRequired("due")

	cmd.AddCommand(add)
	return cmd
}
