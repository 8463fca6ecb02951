package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/steveyegge/contacts/internal/config"
	"github.com/steveyegge/contacts/internal/contact"
	"github.com/steveyegge/contacts/internal/seed"
)

func newInitCmd(a *app) *cobra.Command {
	var (
		noSeed   bool
		seedFile string
	)

	cmd := &cobra.Command{
		Use:     "init",
		GroupID: "contacts",
		Short:   "Create the database and config file",
		Long: `Create the database schema and a default config file.

An empty database is seeded with sample contacts, taken from --seed (a TOML
file) or the built-in samples. Existing data is never touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := a.configPath
			if cfgPath == "" {
				cfgPath = filepath.Join(config.DefaultDir, "config.yaml")
			}
			wrote, err := config.WriteDefault(cfgPath)
			if err != nil {
				return err
			}
			if wrote {
				a.ui.Println(a.ui.Pass("✓"), "Wrote", cfgPath)
			}

			database, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			a.ui.Println(a.ui.Pass("✓"), "Database ready at", database.Path())

			if noSeed {
				return nil
			}

			var samples []*contact.Contact
			if seedFile != "" {
				samples, err = seed.Load(seedFile)
			} else {
				samples, err = seed.Default()
			}
			if err != nil {
				return err
			}

			created, err := seed.Apply(cmd.Context(), database, samples)
			if err != nil {
				return err
			}
			if len(created) == 0 {
				a.ui.Println(a.ui.Muted("Database already has contacts, not seeding."))
				return nil
			}
			for _, c := range created {
				a.ui.Println("  +", c.Name, a.ui.Muted(c.ContactID))
			}
			a.ui.Println(fmt.Sprintf("Seeded %d contact(s)", len(created)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "do not add sample contacts")
	cmd.Flags().StringVar(&seedFile, "seed", "", "TOML file with the contacts to seed")
	cmd.MarkFlagsMutuallyExclusive("no-seed", "seed")
	return cmd
}
