package sync

import (
	"fmt"

	"github.com/steveyegge/contacts/internal/contact"
)

// Action is the outcome of a merge.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionNoop   Action = "noop"
)

// Change describes one changed field. Simple fields show their values;
// collections show their lengths.
type Change struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Report is the result of a merge.
type Report struct {
	ContactID string   `json:"contactId"`
	Action    Action   `json:"action"`
	DryRun    bool     `json:"dryRun"`
	Changes   []Change `json:"changes"`
	// Contact is the persisted snapshot; nil when nothing was written.
	Contact *contact.Contact `json:"contact,omitempty"`
}

// Written reports whether the merge wrote to the store.
func (r *Report) Written() bool {
	return r.Contact != nil
}

// SummaryLine is one field of a DocumentSummary.
type SummaryLine struct {
	Field string
	Value string
}

// DocumentSummary is the preview of an import document.
type DocumentSummary struct {
	ContactID   string
	Fields      []SummaryLine
	Collections []SummaryLine
}

const emptyValue = "(empty)"

func describeString(s *string) string {
	if s == nil {
		return emptyValue
	}
	if *s == "" {
		return `""`
	}
	return *s
}

func describeCount(n int) string {
	return fmt.Sprintf("%d item(s)", n)
}

func describeRaw(val any) string {
	switch v := val.(type) {
	case nil:
		return emptyValue
	case string:
		return describeString(&v)
	case []any:
		return describeCount(len(v))
	}
	return fmt.Sprint(val)
}
