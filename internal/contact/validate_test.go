package contact

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func decodeJSON(t *testing.T, s string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		t.Fatalf("failed to decode %q: %v", s, err)
	}
	return raw
}

func TestParseCreate_Defaults(t *testing.T) {
	c, err := ParseCreate(decodeJSON(t, `{"name": "Ana Lee", "email": "ana@x.com"}`))
	if err != nil {
		t.Fatalf("ParseCreate() failed: %v", err)
	}

	if c.Name != "Ana Lee" {
		t.Errorf("Name = %q, want %q", c.Name, "Ana Lee")
	}
	if c.Email == nil || *c.Email != "ana@x.com" {
		t.Errorf("Email = %v, want ana@x.com", c.Email)
	}
	if c.Company != nil || c.Position != nil {
		t.Errorf("Company/Position should be absent, got %v/%v", c.Company, c.Position)
	}
	if c.Events == nil || c.ImportantNotes == nil || c.NextActions == nil || c.Opportunities == nil {
		t.Error("collections must default to empty, not nil")
	}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, want := range []string{`"events":[]`, `"importantNotes":[]`, `"nextActions":[]`, `"opportunities":[]`, `"company":null`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("JSON %s missing %s", data, want)
		}
	}
}

func TestParseCreate_NameRequired(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing", `{"email": "x@y.z"}`},
		{"empty", `{"name": "   "}`},
		{"null", `{"name": null}`},
		{"number", `{"name": 42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCreate(decodeJSON(t, tt.body))
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if diff := cmp.Diff([]string{"name"}, verr.Paths()); diff != "" {
				t.Errorf("paths mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseCreate_ItemShapes(t *testing.T) {
	body := `{
		"name": "Bob",
		"events": [{"date": "2025-01-01", "type": "call"}],
		"importantNotes": ["ok", 3],
		"nextActions": [{"action": "send"}],
		"opportunities": [{"project": "A", "estimatedValue": "lots"}, {"estimatedValue": 1}]
	}`

	_, err := ParseCreate(decodeJSON(t, body))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}

	want := []string{
		"events[0].notes",
		"importantNotes[1]",
		"nextActions[0].dueDate",
		"opportunities[0].estimatedValue",
		"opportunities[1].project",
	}
	if diff := cmp.Diff(want, verr.Paths()); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCreate_EstimatedValue(t *testing.T) {
	c, err := ParseCreate(decodeJSON(t, `{
		"name": "Bob",
		"opportunities": [
			{"project": "A", "estimatedValue": 100},
			{"project": "B", "estimatedValue": 12.5},
			{"project": "C", "estimatedValue": null},
			{"project": "D"}
		]
	}`))
	if err != nil {
		t.Fatalf("ParseCreate() failed: %v", err)
	}

	want := []Opportunity{
		{Project: "A", EstimatedValue: FloatPtr(100)},
		{Project: "B", EstimatedValue: FloatPtr(12.5)},
		{Project: "C"},
		{Project: "D"},
	}
	if diff := cmp.Diff(want, c.Opportunities); diff != "" {
		t.Errorf("opportunities mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePatch_OmittedVsNull(t *testing.T) {
	p, err := ParsePatch(decodeJSON(t, `{"company": "Acme", "email": null}`))
	if err != nil {
		t.Fatalf("ParsePatch() failed: %v", err)
	}

	if p.Name.Set {
		t.Error("name should not be set")
	}
	if !p.Company.Set || p.Company.Value == nil || *p.Company.Value != "Acme" {
		t.Errorf("company = %+v, want set to Acme", p.Company)
	}
	if !p.Email.Set || p.Email.Value != nil {
		t.Errorf("email = %+v, want set to null", p.Email)
	}
	if p.Position.Set || p.Events.Set {
		t.Error("omitted fields must stay unset")
	}
	if diff := cmp.Diff([]string{"email", "company"}, p.Fields()); diff != "" {
		t.Errorf("Fields() mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePatch_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		path string
	}{
		{"null name", `{"name": null}`, "name"},
		{"empty name", `{"name": ""}`, "name"},
		{"null events", `{"events": null}`, "events"},
		{"events not list", `{"events": "x"}`, "events"},
		{"email number", `{"email": 5}`, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePatch(decodeJSON(t, tt.body))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if got := verr.Paths(); len(got) != 1 || got[0] != tt.path {
				t.Errorf("paths = %v, want [%s]", got, tt.path)
			}
		})
	}
}

func TestParsePatch_EmptyCollections(t *testing.T) {
	p, err := ParsePatch(decodeJSON(t, `{"events": [], "opportunities": []}`))
	if err != nil {
		t.Fatalf("ParsePatch() failed: %v", err)
	}
	if !p.Events.Set || p.Events.Value == nil || len(p.Events.Value) != 0 {
		t.Errorf("events = %+v, want set to empty list", p.Events)
	}
	if !p.Opportunities.Set {
		t.Error("opportunities should be set")
	}
}

func TestApply(t *testing.T) {
	c := &Contact{ContactID: "id-1", Name: "Old", Email: StringPtr("a@b.c")}
	c.SetDefaults()
	created := c.CreatedAt

	c.Apply(Patch{
		Company: Some(StringPtr("Acme")),
		Email:   Some[*string](nil),
		Events:  Some([]Event{{Date: "d", Type: "t", Notes: "n"}}),
	})

	if c.Name != "Old" {
		t.Errorf("Name = %q, want unchanged", c.Name)
	}
	if c.Email != nil {
		t.Errorf("Email = %v, want nil", *c.Email)
	}
	if c.Company == nil || *c.Company != "Acme" {
		t.Errorf("Company = %v, want Acme", c.Company)
	}
	if len(c.Events) != 1 {
		t.Errorf("Events = %d, want 1", len(c.Events))
	}
	if !c.CreatedAt.Equal(created) {
		t.Error("CreatedAt must not change")
	}
}

func TestErrorClassification(t *testing.T) {
	verr := &ValidationError{Fields: []FieldError{{Path: "name", Message: "field required"}}}

	if !IsUserError(verr) || IsFatal(verr) {
		t.Error("validation errors are user errors")
	}
	if !IsUserError(ErrNotFound) || !IsUserError(ErrMalformedDocument) {
		t.Error("not found and malformed documents are user errors")
	}
	if !IsFatal(ErrStorage) || !IsFatal(ErrDuplicateKey) {
		t.Error("storage and duplicate key errors are fatal")
	}
	if IsUserError(nil) || IsFatal(nil) {
		t.Error("nil is neither")
	}
	if !strings.Contains(verr.Error(), "name: field required") {
		t.Errorf("Error() = %q", verr.Error())
	}
}
