// Package watch keeps the store in step with an export directory: documents
// saved there are merged as soon as their writes settle.
//
// Deleting a document never deletes the contact; documents are edits, not
// the source of truth.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/steveyegge/contacts/internal/contact"
	contactsync "github.com/steveyegge/contacts/internal/sync"
)

// Config holds configuration for the watcher.
type Config struct {
	// DebounceInterval is how long a document must stay unchanged before it
	// is merged. This batches the several writes of one save together.
	DebounceInterval time.Duration

	// CreateIfMissing creates contacts for documents with unknown ids.
	CreateIfMissing bool

	// OnMerge is called after every merge that wrote to the store.
	OnMerge func(report *contactsync.Report)

	// Logger for watcher activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 200 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// Watcher merges documents from one directory as they change.
type Watcher struct {
	syncer contactsync.Syncer
	dir    string
	config *Config

	files *FileWatcher

	pending   map[string]time.Time // path -> last event
	pendingMu sync.Mutex
}

// New creates a Watcher for dir. Use Run to start it.
func New(syncer contactsync.Syncer, dir string, config *Config) (*Watcher, error) {
	if syncer == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if dir == "" {
		return nil, fmt.Errorf("dir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}

	files, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		syncer:  syncer,
		dir:     dir,
		config:  config,
		files:   files,
		pending: make(map[string]time.Time),
	}, nil
}

// Run watches the directory until ctx is cancelled. Pending changes are
// flushed before it returns.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		_ = w.files.Stop()
		return fmt.Errorf("failed to create watch directory: %w", err)
	}
	if err := w.files.Start(w.dir); err != nil {
		_ = w.files.Stop()
		return err
	}
	w.config.Logger.Printf("Watching: %s", w.dir)

	ticker := time.NewTicker(w.config.DebounceInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := w.files.Stop(); err != nil {
				w.config.Logger.Printf("Error closing watcher: %v", err)
			}
			w.processPending(context.Background(), true)
			w.config.Logger.Println("Watcher stopped")
			return nil

		case event, ok := <-w.files.Events():
			if !ok {
				return nil
			}
			if event.Op == OpDelete {
				continue
			}
			w.queue(event.Path)

		case err, ok := <-w.files.Errors():
			if !ok {
				return nil
			}
			w.config.Logger.Printf("Watcher error: %v", err)

		case <-ticker.C:
			w.processPending(ctx, false)
		}
	}
}

func (w *Watcher) queue(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.pending[path] = time.Now()
}

// processPending merges documents that have been quiet for the debounce
// interval, or all of them when force is set.
func (w *Watcher) processPending(ctx context.Context, force bool) {
	w.pendingMu.Lock()
	now := time.Now()
	var ready []string
	for path, queuedAt := range w.pending {
		if force || now.Sub(queuedAt) >= w.config.DebounceInterval {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.pendingMu.Unlock()

	sort.Strings(ready)
	for _, path := range ready {
		w.mergeFile(ctx, path)
	}
}

func (w *Watcher) mergeFile(ctx context.Context, path string) {
	report, err := w.syncer.MergeFile(ctx, path, contactsync.Options{CreateIfMissing: w.config.CreateIfMissing})
	if err != nil {
		if contact.IsUserError(err) {
			w.config.Logger.Printf("Skipped %s: %v", path, err)
		} else {
			w.config.Logger.Printf("Error merging %s: %v", path, err)
		}
		return
	}

	if !report.Written() {
		return
	}
	w.config.Logger.Printf("Merged %s: %s %s (%d field(s))", path, report.Action, report.ContactID, len(report.Changes))
	if w.config.OnMerge != nil {
		w.config.OnMerge(report)
	}
}
