// Package contact defines the contact record, its nested collections and the
// validation and document rules shared by the store, the HTTP API and the
// export/import tools.
package contact

import (
	"encoding/json"
	"time"
)

// TimeLayout is the canonical text form of CreatedAt. It is fixed width in
// UTC, so lexical order of stored values matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Top-level field names, as they appear on the wire and in documents.
const (
	FieldContactID      = "contactId"
	FieldName           = "name"
	FieldEmail          = "email"
	FieldCompany        = "company"
	FieldPosition       = "position"
	FieldEvents         = "events"
	FieldImportantNotes = "importantNotes"
	FieldNextActions    = "nextActions"
	FieldOpportunities  = "opportunities"
	FieldCreatedAt      = "createdAt"
)

// SimpleFields are the scalar fields compared by value during a merge.
var SimpleFields = []string{FieldName, FieldEmail, FieldCompany, FieldPosition}

// CollectionFields are stored as one serialized blob each and are always
// replaced wholesale.
var CollectionFields = []string{FieldEvents, FieldImportantNotes, FieldNextActions, FieldOpportunities}

// Contact is the sole persisted entity.
type Contact struct {
	ContactID      string        `json:"contactId"`
	Name           string        `json:"name"`
	Email          *string       `json:"email"`
	Company        *string       `json:"company"`
	Position       *string       `json:"position"`
	Events         []Event       `json:"events"`
	ImportantNotes []string      `json:"importantNotes"`
	NextActions    []NextAction  `json:"nextActions"`
	Opportunities  []Opportunity `json:"opportunities"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// Event is one entry of a contact's timeline.
type Event struct {
	Date  string `json:"date" yaml:"date"`
	Type  string `json:"type" yaml:"type"`
	Notes string `json:"notes" yaml:"notes"`
}

// NextAction is a follow-up to do for a contact.
type NextAction struct {
	Action  string `json:"action" yaml:"action"`
	DueDate string `json:"dueDate" yaml:"dueDate"`
}

// Opportunity is a potential deal with a contact.
type Opportunity struct {
	Project        string   `json:"project" yaml:"project"`
	EstimatedValue *float64 `json:"estimatedValue" yaml:"estimatedValue"`
}

// MarshalJSON renders CreatedAt in the canonical layout.
func (c Contact) MarshalJSON() ([]byte, error) {
	type plain Contact
	return json.Marshal(struct {
		plain
		CreatedAt string `json:"createdAt"`
	}{
		plain:     plain(c),
		CreatedAt: FormatTime(c.CreatedAt),
	})
}

// SetDefaults replaces nil collections with empty ones so that a contact
// never exposes a null list.
func (c *Contact) SetDefaults() {
	if c.Events == nil {
		c.Events = []Event{}
	}
	if c.ImportantNotes == nil {
		c.ImportantNotes = []string{}
	}
	if c.NextActions == nil {
		c.NextActions = []NextAction{}
	}
	if c.Opportunities == nil {
		c.Opportunities = []Opportunity{}
	}
}

// Clone returns a deep copy of the contact.
func (c *Contact) Clone() *Contact {
	out := *c
	out.Email = cloneString(c.Email)
	out.Company = cloneString(c.Company)
	out.Position = cloneString(c.Position)
	out.Events = append([]Event{}, c.Events...)
	out.ImportantNotes = append([]string{}, c.ImportantNotes...)
	out.NextActions = append([]NextAction{}, c.NextActions...)
	out.Opportunities = make([]Opportunity, len(c.Opportunities))
	for i, o := range c.Opportunities {
		out.Opportunities[i] = Opportunity{Project: o.Project}
		if o.EstimatedValue != nil {
			v := *o.EstimatedValue
			out.Opportunities[i].EstimatedValue = &v
		}
	}
	return &out
}

// Apply overwrites the fields set in p. CreatedAt and ContactID are never
// touched.
func (c *Contact) Apply(p Patch) {
	if p.Name.Set {
		c.Name = p.Name.Value
	}
	if p.Email.Set {
		c.Email = cloneString(p.Email.Value)
	}
	if p.Company.Set {
		c.Company = cloneString(p.Company.Value)
	}
	if p.Position.Set {
		c.Position = cloneString(p.Position.Value)
	}
	if p.Events.Set {
		c.Events = append([]Event{}, p.Events.Value...)
	}
	if p.ImportantNotes.Set {
		c.ImportantNotes = append([]string{}, p.ImportantNotes.Value...)
	}
	if p.NextActions.Set {
		c.NextActions = append([]NextAction{}, p.NextActions.Value...)
	}
	if p.Opportunities.Set {
		c.Opportunities = append([]Opportunity{}, p.Opportunities.Value...)
	}
}

// Opt is a field of a partial update. Set distinguishes "omitted" from
// "explicitly set", including explicitly set to nil.
type Opt[T any] struct {
	Set   bool
	Value T
}

// Some returns a set Opt holding v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{Set: true, Value: v}
}

// Patch is a partial update. Only set fields are written.
type Patch struct {
	Name           Opt[string]
	Email          Opt[*string]
	Company        Opt[*string]
	Position       Opt[*string]
	Events         Opt[[]Event]
	ImportantNotes Opt[[]string]
	NextActions    Opt[[]NextAction]
	Opportunities  Opt[[]Opportunity]
}

// Fields returns the names of the set fields in canonical order.
func (p Patch) Fields() []string {
	var fields []string
	set := []bool{
		p.Name.Set, p.Email.Set, p.Company.Set, p.Position.Set,
		p.Events.Set, p.ImportantNotes.Set, p.NextActions.Set, p.Opportunities.Set,
	}
	names := append(append([]string{}, SimpleFields...), CollectionFields...)
	for i, ok := range set {
		if ok {
			fields = append(fields, names[i])
		}
	}
	return fields
}

// IsEmpty reports whether no field is set.
func (p Patch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// FormatTime renders t in the canonical layout, in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts the canonical layout as well as RFC 3339 and naive ISO
// timestamps (treated as UTC).
func ParseTime(s string) (time.Time, error) {
	layouts := []string{TimeLayout, time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"}
	var firstErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 {
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
