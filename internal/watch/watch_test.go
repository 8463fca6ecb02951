package watch

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/steveyegge/contacts/internal/contact"
	"github.com/steveyegge/contacts/internal/store"
	contactsync "github.com/steveyegge/contacts/internal/sync"
)

func setupTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return db
}

// startWatcher runs a watcher in the background and returns a channel of
// merge reports.
func startWatcher(t *testing.T, db *store.DB, dir string, createIfMissing bool) <-chan *contactsync.Report {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	reports := make(chan *contactsync.Report, 10)

	w, err := New(contactsync.New(db, logger), dir, &Config{
		DebounceInterval: 50 * time.Millisecond,
		CreateIfMissing:  createIfMissing,
		OnMerge:          func(r *contactsync.Report) { reports <- r },
		Logger:           logger,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() failed: %v", err)
		}
	})

	// Let the watch register before files are written.
	time.Sleep(100 * time.Millisecond)
	return reports
}

func waitReport(t *testing.T, reports <-chan *contactsync.Report) *contactsync.Report {
	t.Helper()
	select {
	case r := <-reports:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for merge")
		return nil
	}
}

func TestWatcher_MergesEditedDocument(t *testing.T) {
	db := setupTestDB(t)
	c, err := db.Create(&contact.Contact{Name: "Ana Lee", Company: contact.StringPtr("Initech")})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	dir := t.TempDir()
	reports := startWatcher(t, db, dir, false)

	edited := c.Clone()
	edited.Company = contact.StringPtr("Globex")
	if err := contact.WriteFile(filepath.Join(dir, contact.SafeFilename(c.Name)), edited); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	report := waitReport(t, reports)
	if report.Action != contactsync.ActionUpdate || report.ContactID != c.ContactID {
		t.Errorf("report = %+v", report)
	}

	got, err := db.Get(c.ContactID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Company == nil || *got.Company != "Globex" {
		t.Errorf("Company = %v, want Globex", got.Company)
	}
}

func TestWatcher_SkipsBadDocumentsAndCreates(t *testing.T) {
	db := setupTestDB(t)
	dir := t.TempDir()
	reports := startWatcher(t, db, dir, true)

	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [oops"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "noid.yaml"), []byte("name: Nobody\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := contact.WriteFile(filepath.Join(dir, "new.yaml"), &contact.Contact{ContactID: "new-1", Name: "Nina"}); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	report := waitReport(t, reports)
	if report.Action != contactsync.ActionCreate || report.ContactID != "new-1" {
		t.Errorf("report = %+v", report)
	}
	if n, _ := db.Count(); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, t.TempDir(), nil); err == nil {
		t.Error("New() should reject a nil syncer")
	}
	syncer := contactsync.New(setupTestDB(t), log.New(io.Discard, "", 0))
	if _, err := New(syncer, "", nil); err == nil {
		t.Error("New() should reject an empty dir")
	}
}
