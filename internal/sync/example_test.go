package sync_test

import (
	"context"
	"fmt"
	"log"

	"github.com/steveyegge/contacts/internal/store"
	"github.com/steveyegge/contacts/internal/sync"
)

// This example demonstrates previewing and applying an edited export.
// Note: This is for documentation only and won't run as a test.
func ExampleNew() {
	database, err := store.Open(".contacts/contacts.db")
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	syncer := sync.New(database, nil)

	// Show what would change
	report, err := syncer.MergeFile(context.Background(), "data/contacts/marie_martin.yaml", sync.Options{DryRun: true})
	if err != nil {
		log.Fatal(err)
	}
	for _, c := range report.Changes {
		fmt.Printf("%s: %s -> %s\n", c.Field, c.Old, c.New)
	}

	// Apply it
	if _, err := syncer.MergeFile(context.Background(), "data/contacts/marie_martin.yaml", sync.Options{}); err != nil {
		log.Fatal(err)
	}
}
