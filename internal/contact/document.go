package contact

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// documentFile is the on-disk layout of an exported contact. Field order is
// the key order of the written document.
type documentFile struct {
	ContactID      string        `yaml:"contactId"`
	Name           string        `yaml:"name"`
	Email          *string       `yaml:"email"`
	Company        *string       `yaml:"company"`
	Position       *string       `yaml:"position"`
	Events         []Event       `yaml:"events"`
	ImportantNotes []string      `yaml:"importantNotes"`
	NextActions    []NextAction  `yaml:"nextActions"`
	Opportunities  []Opportunity `yaml:"opportunities"`
	CreatedAt      string        `yaml:"createdAt"`
}

// Export renders c as a YAML document with a fixed top-level key order.
func Export(c *Contact) ([]byte, error) {
	out := c.Clone()
	out.SetDefaults()

	doc := documentFile{
		ContactID:      out.ContactID,
		Name:           out.Name,
		Email:          out.Email,
		Company:        out.Company,
		Position:       out.Position,
		Events:         out.Events,
		ImportantNotes: out.ImportantNotes,
		NextActions:    out.NextActions,
		Opportunities:  out.Opportunities,
	}
	if !out.CreatedAt.IsZero() {
		doc.CreatedAt = FormatTime(out.CreatedAt)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode contact %s: %w", c.ContactID, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode contact %s: %w", c.ContactID, err)
	}
	return buf.Bytes(), nil
}

// WriteFile exports c to path, creating parent directories as needed. The
// file is replaced atomically.
func WriteFile(path string, c *Contact) error {
	data, err := Export(c)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// SafeFilename derives the default export file name from a contact name.
func SafeFilename(name string) string {
	safe := strings.ToLower(name)
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = strings.ReplaceAll(safe, "/", "_")
	return safe + ".yaml"
}

// Document is an imported contact document: the raw top-level mapping, not
// yet validated beyond the presence of contactId.
type Document map[string]any

// ParseDocument parses an import document.
func ParseDocument(data []byte) (Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	m, ok := asMap(raw)
	if !ok {
		return nil, fmt.Errorf("%w: top level must be a mapping, got %s", ErrMalformedDocument, typeName(raw))
	}
	doc := Document(m)
	id, present := doc[FieldContactID]
	if !present {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedDocument, FieldContactID)
	}
	if s, ok := id.(string); !ok || strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: %s must be a non-empty string", ErrMalformedDocument, FieldContactID)
	}
	return doc, nil
}

// ReadFile reads and parses the document at path.
func ReadFile(path string) (Document, error) {
	// #nosec G304 - path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// ContactID returns the document's identifier.
func (d Document) ContactID() string {
	s, _ := d[FieldContactID].(string)
	return s
}

// Has reports whether the document carries the given top-level key.
func (d Document) Has(field string) bool {
	_, ok := d[field]
	return ok
}

// Patch returns the fields present in the document as a partial update.
func (d Document) Patch() (Patch, error) {
	return ParsePatch(d)
}

// Contact returns the full contact described by the document, including its
// identifier and, when present, its creation time.
func (d Document) Contact() (*Contact, error) {
	c, err := ParseCreate(d)
	if err != nil {
		return nil, err
	}
	c.ContactID = d.ContactID()

	if raw, ok := d[FieldCreatedAt]; ok && raw != nil {
		var t time.Time
		switch val := raw.(type) {
		case time.Time:
			t = val.UTC()
		case string:
			t, err = ParseTime(val)
		default:
			err = fmt.Errorf("unsupported type %s", typeName(raw))
		}
		if err != nil {
			return nil, &ValidationError{Fields: []FieldError{{
				Path:    FieldCreatedAt,
				Message: "must be an ISO-8601 timestamp",
			}}}
		}
		c.CreatedAt = t
	}
	return c, nil
}
