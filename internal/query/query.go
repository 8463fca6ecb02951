// Package query answers read-only questions about the contact book: substring
// search and aggregate statistics.
package query

import (
	"context"

	"github.com/steveyegge/contacts/internal/contact"
	"github.com/steveyegge/contacts/internal/store"
)

// Reader is the part of the record store the query service reads from.
type Reader interface {
	ListContext(ctx context.Context, filter store.ListFilter) ([]*contact.Contact, error)
	StatsContext(ctx context.Context) (store.Stats, error)
}

// Config holds search settings.
type Config struct {
	// CaseSensitive disables case folding of search terms (ASCII only when
	// folding).
	CaseSensitive bool
}

// Service runs searches and aggregations over a Reader.
type Service struct {
	db  Reader
	cfg Config
}

// New creates a query service.
func New(db Reader, cfg Config) *Service {
	return &Service{db: db, cfg: cfg}
}

// Search returns contacts whose name, email, company or position contains
// substring, newest first. An empty substring returns every contact.
func (s *Service) Search(ctx context.Context, substring string) ([]*contact.Contact, error) {
	return s.db.ListContext(ctx, store.ListFilter{
		Search:        substring,
		CaseSensitive: s.cfg.CaseSensitive,
	})
}

// FindByName returns contacts whose name contains substring, ordered by
// name.
func (s *Service) FindByName(ctx context.Context, substring string) ([]*contact.Contact, error) {
	return s.db.ListContext(ctx, store.ListFilter{
		Search:        substring,
		NameOnly:      true,
		OrderByName:   true,
		CaseSensitive: s.cfg.CaseSensitive,
	})
}

// All returns every contact ordered by name.
func (s *Service) All(ctx context.Context) ([]*contact.Contact, error) {
	return s.db.ListContext(ctx, store.ListFilter{OrderByName: true})
}

// Stats returns the contact count, the number of opportunities and the sum
// of their estimated values. Missing values count as zero.
func (s *Service) Stats(ctx context.Context) (store.Stats, error) {
	return s.db.StatsContext(ctx)
}
