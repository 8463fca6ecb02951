// Package sync merges imported contact documents into the record store.
package sync

import (
	"context"

	"github.com/steveyegge/contacts/internal/contact"
)

// Syncer merges contact documents into the store with an inspectable diff.
//
// A merge either applies every changed field in one write or applies
// nothing. Documents that match the stored record are reported as a no-op,
// which is a success.
type Syncer interface {
	// Merge compares doc against the stored contact with the same
	// contactId and writes the changed fields.
	//
	// Returns contact.ErrNotFound when the contact is unknown and
	// opts.CreateIfMissing is false. Validation failures are returned as
	// *contact.ValidationError and leave the store untouched.
	//
	// Example:
	//   report, err := syncer.Merge(ctx, doc, sync.Options{DryRun: true})
	Merge(ctx context.Context, doc contact.Document, opts Options) (*Report, error)

	// MergeFile reads the document at path and merges it.
	//
	// Example:
	//   report, err := syncer.MergeFile(ctx, "data/contacts/ana_lee.yaml", sync.Options{})
	MergeFile(ctx context.Context, path string, opts Options) (*Report, error)

	// Preview summarizes a document without reading or writing the store.
	Preview(doc contact.Document) DocumentSummary
}

// Store is the part of the record store a merge needs.
type Store interface {
	GetContext(ctx context.Context, id string) (*contact.Contact, error)
	CreateContext(ctx context.Context, c *contact.Contact) (*contact.Contact, error)
	UpdateContext(ctx context.Context, id string, patch contact.Patch) (*contact.Contact, error)
}

// Options controls a merge.
type Options struct {
	// CreateIfMissing creates the contact when no stored contact has the
	// document's contactId.
	CreateIfMissing bool
	// DryRun computes the diff without writing anything.
	DryRun bool
}
