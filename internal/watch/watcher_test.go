package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestFileWatcher_StartStop verifies that the watcher can start and stop cleanly.
func TestFileWatcher_StartStop(t *testing.T) {
	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	if fw.IsRunning() {
		t.Error("Newly created watcher should not be running")
	}

	if err := fw.Start(t.TempDir()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !fw.IsRunning() {
		t.Error("Watcher should be running after Start()")
	}
	if err := fw.Start(t.TempDir()); err == nil {
		t.Error("Start() on a running watcher should fail")
	}

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if fw.IsRunning() {
		t.Error("Watcher should not be running after Stop()")
	}
}

// TestFileWatcher_MissingDir verifies that watching a missing directory fails.
func TestFileWatcher_MissingDir(t *testing.T) {
	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Start() should fail for a missing directory")
	}
}

// TestFileWatcher_DocumentEvents verifies that only documents are reported.
func TestFileWatcher_DocumentEvents(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	if err := fw.Start(dir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer fw.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	doc := filepath.Join(dir, "ana.yaml")
	if err := os.WriteFile(doc, []byte("contactId: a\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case event := <-fw.Events():
		if event.Path != doc {
			t.Errorf("Path = %q, want %q", event.Path, doc)
		}
		if event.Op != OpCreate && event.Op != OpModify {
			t.Errorf("Op = %s, want create or modify", event.Op)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for document event")
	}
}

func TestIsDocument(t *testing.T) {
	tests := map[string]bool{
		"ana.yaml":          true,
		"/x/BOB.YML":        true,
		"ana.yaml.tmp":      false,
		".hidden.yaml":      false,
		"notes.txt":         false,
		"/dir.yaml/file.md": false,
	}
	for path, want := range tests {
		if got := IsDocument(path); got != want {
			t.Errorf("IsDocument(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestEventOpString(t *testing.T) {
	tests := []struct {
		op   EventOp
		want string
	}{
		{OpCreate, "create"},
		{OpModify, "modify"},
		{OpDelete, "delete"},
		{EventOp(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}
