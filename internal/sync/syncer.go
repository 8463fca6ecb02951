package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/google/go-cmp/cmp"

	"github.com/steveyegge/contacts/internal/contact"
)

// syncer implements the Syncer interface.
type syncer struct {
	store  Store
	logger *log.Logger
}

// New creates a new Syncer instance.
//
// The store must have its schema initialized. If logger is nil, a default
// logger writing to stderr is used.
//
// Example:
//
//	database, err := store.Open(".contacts/contacts.db")
//	if err != nil {
//	    return err
//	}
//	if err := database.InitSchema(); err != nil {
//	    return err
//	}
//	syncer := sync.New(database, nil)
func New(s Store, logger *log.Logger) Syncer {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &syncer{
		store:  s,
		logger: logger,
	}
}

// MergeFile implements Syncer.MergeFile.
func (s *syncer) MergeFile(ctx context.Context, path string, opts Options) (*Report, error) {
	doc, err := contact.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return s.Merge(ctx, doc, opts)
}

// Merge implements Syncer.Merge.
func (s *syncer) Merge(ctx context.Context, doc contact.Document, opts Options) (*Report, error) {
	id := doc.ContactID()

	existing, err := s.store.GetContext(ctx, id)
	switch {
	case errors.Is(err, contact.ErrNotFound):
		if !opts.CreateIfMissing {
			return nil, fmt.Errorf("%w: contact %s (use create-if-missing to create it)", contact.ErrNotFound, id)
		}
		return s.create(ctx, doc, opts)
	case err != nil:
		return nil, fmt.Errorf("failed to look up contact %s: %w", id, err)
	}

	patch, err := doc.Patch()
	if err != nil {
		return nil, err
	}

	changed, changes := diff(existing, patch)
	report := &Report{
		ContactID: id,
		Action:    ActionUpdate,
		DryRun:    opts.DryRun,
		Changes:   changes,
	}
	if len(changes) == 0 {
		report.Action = ActionNoop
		return report, nil
	}
	if opts.DryRun {
		return report, nil
	}

	updated, err := s.store.UpdateContext(ctx, id, changed)
	if err != nil {
		return nil, fmt.Errorf("failed to apply changes to %s: %w", id, err)
	}
	report.Contact = updated

	s.logger.Printf("Updated contact: %s (%s), %d field(s) changed", id, updated.Name, len(changes))
	return report, nil
}

func (s *syncer) create(ctx context.Context, doc contact.Document, opts Options) (*Report, error) {
	c, err := doc.Contact()
	if err != nil {
		return nil, err
	}

	// Only the fields the document carries are reported.
	patch, err := doc.Patch()
	if err != nil {
		return nil, err
	}
	_, changes := diff(&contact.Contact{}, patch)

	report := &Report{
		ContactID: c.ContactID,
		Action:    ActionCreate,
		DryRun:    opts.DryRun,
		Changes:   changes,
	}
	if opts.DryRun {
		return report, nil
	}

	created, err := s.store.CreateContext(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to create contact %s: %w", c.ContactID, err)
	}
	report.Contact = created

	s.logger.Printf("Created contact: %s (%s)", created.ContactID, created.Name)
	return report, nil
}

// diff compares the fields set in patch against current. It returns a patch
// restricted to the changed fields and the matching report lines.
func diff(current *contact.Contact, patch contact.Patch) (contact.Patch, []Change) {
	cur := current.Clone()
	cur.SetDefaults()

	var out contact.Patch
	changes := []Change{}

	if patch.Name.Set && patch.Name.Value != cur.Name {
		out.Name = patch.Name
		old := describeString(&cur.Name)
		if cur.Name == "" {
			old = emptyValue
		}
		changes = append(changes, Change{Field: contact.FieldName, Old: old, New: describeString(&patch.Name.Value)})
	}

	for _, f := range []struct {
		field string
		old   *string
		opt   contact.Opt[*string]
		dst   *contact.Opt[*string]
	}{
		{contact.FieldEmail, cur.Email, patch.Email, &out.Email},
		{contact.FieldCompany, cur.Company, patch.Company, &out.Company},
		{contact.FieldPosition, cur.Position, patch.Position, &out.Position},
	} {
		if !f.opt.Set || equalString(f.old, f.opt.Value) {
			continue
		}
		*f.dst = f.opt
		changes = append(changes, Change{Field: f.field, Old: describeString(f.old), New: describeString(f.opt.Value)})
	}

	if patch.Events.Set && !cmp.Equal(cur.Events, patch.Events.Value) {
		out.Events = patch.Events
		changes = append(changes, collectionChange(contact.FieldEvents, len(cur.Events), len(patch.Events.Value)))
	}
	if patch.ImportantNotes.Set && !cmp.Equal(cur.ImportantNotes, patch.ImportantNotes.Value) {
		out.ImportantNotes = patch.ImportantNotes
		changes = append(changes, collectionChange(contact.FieldImportantNotes, len(cur.ImportantNotes), len(patch.ImportantNotes.Value)))
	}
	if patch.NextActions.Set && !cmp.Equal(cur.NextActions, patch.NextActions.Value) {
		out.NextActions = patch.NextActions
		changes = append(changes, collectionChange(contact.FieldNextActions, len(cur.NextActions), len(patch.NextActions.Value)))
	}
	if patch.Opportunities.Set && !cmp.Equal(cur.Opportunities, patch.Opportunities.Value) {
		out.Opportunities = patch.Opportunities
		changes = append(changes, collectionChange(contact.FieldOpportunities, len(cur.Opportunities), len(patch.Opportunities.Value)))
	}

	return out, changes
}

func collectionChange(field string, oldLen, newLen int) Change {
	return Change{Field: field, Old: describeCount(oldLen), New: describeCount(newLen)}
}

// equalString treats nil as its own value, distinct from "".
func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Preview implements Syncer.Preview.
func (s *syncer) Preview(doc contact.Document) DocumentSummary {
	summary := DocumentSummary{ContactID: doc.ContactID()}
	for _, field := range contact.SimpleFields {
		if val, ok := doc[field]; ok {
			summary.Fields = append(summary.Fields, SummaryLine{Field: field, Value: describeRaw(val)})
		}
	}
	for _, field := range contact.CollectionFields {
		if items, ok := doc[field].([]any); ok {
			summary.Collections = append(summary.Collections, SummaryLine{Field: field, Value: describeCount(len(items))})
		}
	}
	return summary
}
