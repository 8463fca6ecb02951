// Package seed loads sample contacts from TOML into an empty store.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/steveyegge/contacts/internal/contact"
)

//go:embed sample.toml
var sample []byte

// file is the layout of a seed file: a list of [[contact]] tables.
type file struct {
	Contacts []entry `toml:"contact"`
}

type entry struct {
	ContactID      string               `toml:"contactId"`
	Name           string               `toml:"name"`
	Email          *string              `toml:"email"`
	Company        *string              `toml:"company"`
	Position       *string              `toml:"position"`
	Events         []contact.Event      `toml:"events"`
	ImportantNotes []string             `toml:"importantNotes"`
	NextActions    []contact.NextAction `toml:"nextActions"`
	Opportunities  []opportunity        `toml:"opportunities"`
	CreatedAt      time.Time            `toml:"createdAt"`
}

type opportunity struct {
	Project        string   `toml:"project"`
	EstimatedValue *float64 `toml:"estimatedValue"`
}

// Default returns the built-in sample contacts.
func Default() ([]*contact.Contact, error) {
	return Parse(sample)
}

// Load reads seed contacts from a TOML file.
func Load(path string) ([]*contact.Contact, error) {
	// #nosec G304 - path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	contacts, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return contacts, nil
}

// Parse decodes seed contacts. Every contact needs a name; ids and creation
// times are optional and assigned by the store when absent.
func Parse(data []byte) ([]*contact.Contact, error) {
	var f file
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}

	var fields []contact.FieldError
	contacts := make([]*contact.Contact, 0, len(f.Contacts))
	for i, e := range f.Contacts {
		if strings.TrimSpace(e.Name) == "" {
			fields = append(fields, contact.FieldError{Path: fmt.Sprintf("contact[%d].name", i), Message: "field required"})
			continue
		}
		c := &contact.Contact{
			ContactID:      e.ContactID,
			Name:           e.Name,
			Email:          e.Email,
			Company:        e.Company,
			Position:       e.Position,
			Events:         e.Events,
			ImportantNotes: e.ImportantNotes,
			NextActions:    e.NextActions,
			CreatedAt:      e.CreatedAt,
		}
		for _, o := range e.Opportunities {
			c.Opportunities = append(c.Opportunities, contact.Opportunity{Project: o.Project, EstimatedValue: o.EstimatedValue})
		}
		c.SetDefaults()
		contacts = append(contacts, c)
	}
	if len(fields) > 0 {
		return nil, &contact.ValidationError{Fields: fields}
	}
	return contacts, nil
}

// Store is the part of the record store seeding needs.
type Store interface {
	CountContext(ctx context.Context) (int, error)
	CreateContext(ctx context.Context, c *contact.Contact) (*contact.Contact, error)
}

// Apply creates contacts in db when it is empty. It returns the contacts
// created, or none when the store already had data.
func Apply(ctx context.Context, db Store, contacts []*contact.Contact) ([]*contact.Contact, error) {
	count, err := db.CountContext(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, nil
	}

	created := make([]*contact.Contact, 0, len(contacts))
	for _, c := range contacts {
		stored, err := db.CreateContext(ctx, c)
		if err != nil {
			return created, fmt.Errorf("failed to seed %s: %w", c.Name, err)
		}
		created = append(created, stored)
	}
	return created, nil
}
