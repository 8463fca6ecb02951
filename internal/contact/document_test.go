package contact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func sampleContact() *Contact {
	return &Contact{
		ContactID: "550e8400-e29b-41d4-a716-446655440000",
		Name:      "John Smith",
		Email:     StringPtr("john.smith@example.com"),
		Company:   StringPtr("ACME Corp"),
		Position:  nil,
		Events: []Event{
			{Date: "2025-12-10T14:30:00Z", Type: "call", Notes: "Discussion about potential partnership"},
		},
		ImportantNotes: []string{"Interested in our Premium solution", "yes", "multi\nline"},
		NextActions:    []NextAction{{Action: "Send formal proposal", DueDate: "2026-01-15"}},
		Opportunities: []Opportunity{
			{Project: "2026 Deployment", EstimatedValue: FloatPtr(20000)},
			{Project: "Pilot", EstimatedValue: FloatPtr(1250.75)},
			{Project: "Maybe"},
		},
		CreatedAt: time.Date(2025, 11, 1, 9, 0, 0, 123456000, time.UTC),
	}
}

func TestExport_KeyOrder(t *testing.T) {
	data, err := Export(sampleContact())
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		t.Fatalf("exported document is not YAML: %v", err)
	}
	mapping := root.Content[0]
	var keys []string
	for i := 0; i < len(mapping.Content); i += 2 {
		keys = append(keys, mapping.Content[i].Value)
	}

	want := []string{
		"contactId", "name", "email", "company", "position",
		"events", "importantNotes", "nextActions", "opportunities", "createdAt",
	}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("key order mismatch (-want +got):\n%s", diff)
	}
}

func TestExport_NullsAndEmptyLists(t *testing.T) {
	c := &Contact{ContactID: "id-1", Name: "Solo"}
	data, err := Export(c)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	doc, err := ParseDocument(data)
	if err != nil {
		t.Fatalf("ParseDocument() failed: %v", err)
	}
	if v, ok := doc["email"]; !ok || v != nil {
		t.Errorf("email = %v (present %v), want explicit null", v, ok)
	}
	if v, ok := doc["events"].([]any); !ok || len(v) != 0 {
		t.Errorf("events = %#v, want empty list", doc["events"])
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	c := sampleContact()

	first, err := Export(c)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	doc, err := ParseDocument(first)
	if err != nil {
		t.Fatalf("ParseDocument() failed: %v", err)
	}
	back, err := doc.Contact()
	if err != nil {
		t.Fatalf("Contact() failed: %v", err)
	}
	second, err := Export(back)
	if err != nil {
		t.Fatalf("second Export() failed: %v", err)
	}

	if diff := cmp.Diff(string(first), string(second)); diff != "" {
		t.Errorf("round trip changed the document (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(c, back); diff != "" {
		t.Errorf("round trip changed the contact (-want +got):\n%s", diff)
	}
}

func TestParseDocument_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not yaml", "name: [unclosed"},
		{"list at top level", "- a\n- b\n"},
		{"scalar", "just text\n"},
		{"missing id", "name: Ana\n"},
		{"empty id", "contactId: ''\nname: Ana\n"},
		{"numeric id", "contactId: 12\nname: Ana\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tt.data))
			if !errors.Is(err, ErrMalformedDocument) {
				t.Errorf("expected ErrMalformedDocument, got %v", err)
			}
		})
	}
}

func TestDocumentPatch(t *testing.T) {
	doc, err := ParseDocument([]byte("contactId: abc\ncompany: Acme\nopportunities:\n  - project: X\n    estimatedValue: 10\n"))
	if err != nil {
		t.Fatalf("ParseDocument() failed: %v", err)
	}
	if doc.ContactID() != "abc" {
		t.Errorf("ContactID() = %q, want abc", doc.ContactID())
	}

	p, err := doc.Patch()
	if err != nil {
		t.Fatalf("Patch() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"company", "opportunities"}, p.Fields()); diff != "" {
		t.Errorf("Fields() mismatch (-want +got):\n%s", diff)
	}
	if got := *p.Opportunities.Value[0].EstimatedValue; got != 10 {
		t.Errorf("estimatedValue = %v, want 10", got)
	}
}

func TestDocumentContact_NaiveCreatedAt(t *testing.T) {
	doc, err := ParseDocument([]byte("contactId: abc\nname: Ana\ncreatedAt: '2025-11-01T09:00:00'\n"))
	if err != nil {
		t.Fatalf("ParseDocument() failed: %v", err)
	}
	c, err := doc.Contact()
	if err != nil {
		t.Fatalf("Contact() failed: %v", err)
	}
	want := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	if !c.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", c.CreatedAt, want)
	}
}

func TestWriteFileAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", SafeFilename("John Smith"))
	if err := WriteFile(path, sampleContact()); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not remain")
	}

	doc, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if doc.ContactID() != sampleContact().ContactID {
		t.Errorf("ContactID() = %q", doc.ContactID())
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSafeFilename(t *testing.T) {
	if got := SafeFilename("Marie Martin/ACME"); got != "marie_martin_acme.yaml" {
		t.Errorf("SafeFilename() = %q", got)
	}
}
