package contact

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ParseCreate validates raw input for a new contact. name is required; every
// other field defaults to absent or to an empty collection. contactId and
// createdAt are not read here.
func ParseCreate(raw map[string]any) (*Contact, error) {
	v := &validator{}
	c := &Contact{}

	nameRaw, ok := raw[FieldName]
	if !ok {
		v.add(FieldName, "field required")
	} else {
		c.Name = v.name(nameRaw)
	}

	c.Email = v.optionalString(raw, FieldEmail)
	c.Company = v.optionalString(raw, FieldCompany)
	c.Position = v.optionalString(raw, FieldPosition)

	if val, ok := raw[FieldEvents]; ok && val != nil {
		c.Events = v.events(val, FieldEvents)
	}
	if val, ok := raw[FieldImportantNotes]; ok && val != nil {
		c.ImportantNotes = v.notes(val, FieldImportantNotes)
	}
	if val, ok := raw[FieldNextActions]; ok && val != nil {
		c.NextActions = v.nextActions(val, FieldNextActions)
	}
	if val, ok := raw[FieldOpportunities]; ok && val != nil {
		c.Opportunities = v.opportunities(val, FieldOpportunities)
	}

	if err := v.err(); err != nil {
		return nil, err
	}
	c.SetDefaults()
	return c, nil
}

// ParsePatch validates raw input for a partial update. Only keys present in
// raw are set on the returned Patch. An explicit null clears email, company
// or position; it is rejected for name and for the collections.
func ParsePatch(raw map[string]any) (Patch, error) {
	v := &validator{}
	var p Patch

	if val, ok := raw[FieldName]; ok {
		p.Name = Some(v.name(val))
	}
	for _, f := range []struct {
		key string
		dst *Opt[*string]
	}{
		{FieldEmail, &p.Email},
		{FieldCompany, &p.Company},
		{FieldPosition, &p.Position},
	} {
		if _, ok := raw[f.key]; ok {
			*f.dst = Some(v.optionalString(raw, f.key))
		}
	}

	if val, ok := raw[FieldEvents]; ok {
		if v.notNull(val, FieldEvents) {
			p.Events = Some(nonNil(v.events(val, FieldEvents)))
		}
	}
	if val, ok := raw[FieldImportantNotes]; ok {
		if v.notNull(val, FieldImportantNotes) {
			p.ImportantNotes = Some(nonNil(v.notes(val, FieldImportantNotes)))
		}
	}
	if val, ok := raw[FieldNextActions]; ok {
		if v.notNull(val, FieldNextActions) {
			p.NextActions = Some(nonNil(v.nextActions(val, FieldNextActions)))
		}
	}
	if val, ok := raw[FieldOpportunities]; ok {
		if v.notNull(val, FieldOpportunities) {
			p.Opportunities = Some(nonNil(v.opportunities(val, FieldOpportunities)))
		}
	}

	if err := v.err(); err != nil {
		return Patch{}, err
	}
	return p, nil
}

// validator collects every problem of one input instead of stopping at the
// first.
type validator struct {
	fields []FieldError
}

func (v *validator) add(path, format string, args ...any) {
	v.fields = append(v.fields, FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

func (v *validator) name(val any) string {
	s, ok := val.(string)
	if !ok {
		v.add(FieldName, "must be a string, got %s", typeName(val))
		return ""
	}
	if strings.TrimSpace(s) == "" {
		v.add(FieldName, "must not be empty")
	}
	return s
}

func (v *validator) notNull(val any, path string) bool {
	if val == nil {
		v.add(path, "must be a list, got null")
		return false
	}
	return true
}

func (v *validator) optionalString(raw map[string]any, key string) *string {
	val, ok := raw[key]
	if !ok || val == nil {
		return nil
	}
	s, ok := val.(string)
	if !ok {
		v.add(key, "must be a string or null, got %s", typeName(val))
		return nil
	}
	return &s
}

func (v *validator) requiredString(item map[string]any, key, path string) string {
	val, ok := item[key]
	if !ok {
		v.add(path+"."+key, "field required")
		return ""
	}
	s, ok := val.(string)
	if !ok {
		v.add(path+"."+key, "must be a string, got %s", typeName(val))
		return ""
	}
	return s
}

func (v *validator) list(val any, path string) []any {
	items, ok := val.([]any)
	if !ok {
		v.add(path, "must be a list, got %s", typeName(val))
		return nil
	}
	return items
}

func (v *validator) item(val any, path string) (map[string]any, bool) {
	m, ok := asMap(val)
	if !ok {
		v.add(path, "must be an object, got %s", typeName(val))
	}
	return m, ok
}

func (v *validator) events(val any, path string) []Event {
	items := v.list(val, path)
	out := make([]Event, 0, len(items))
	for i, raw := range items {
		p := fmt.Sprintf("%s[%d]", path, i)
		m, ok := v.item(raw, p)
		if !ok {
			continue
		}
		out = append(out, Event{
			Date:  v.requiredString(m, "date", p),
			Type:  v.requiredString(m, "type", p),
			Notes: v.requiredString(m, "notes", p),
		})
	}
	return out
}

func (v *validator) notes(val any, path string) []string {
	items := v.list(val, path)
	out := make([]string, 0, len(items))
	for i, raw := range items {
		s, ok := raw.(string)
		if !ok {
			v.add(fmt.Sprintf("%s[%d]", path, i), "must be a string, got %s", typeName(raw))
			continue
		}
		out = append(out, s)
	}
	return out
}

func (v *validator) nextActions(val any, path string) []NextAction {
	items := v.list(val, path)
	out := make([]NextAction, 0, len(items))
	for i, raw := range items {
		p := fmt.Sprintf("%s[%d]", path, i)
		m, ok := v.item(raw, p)
		if !ok {
			continue
		}
		out = append(out, NextAction{
			Action:  v.requiredString(m, "action", p),
			DueDate: v.requiredString(m, "dueDate", p),
		})
	}
	return out
}

func (v *validator) opportunities(val any, path string) []Opportunity {
	items := v.list(val, path)
	out := make([]Opportunity, 0, len(items))
	for i, raw := range items {
		p := fmt.Sprintf("%s[%d]", path, i)
		m, ok := v.item(raw, p)
		if !ok {
			continue
		}
		o := Opportunity{Project: v.requiredString(m, "project", p)}
		if ev, ok := m["estimatedValue"]; ok && ev != nil {
			f, ok := toFloat(ev)
			switch {
			case !ok:
				v.add(p+".estimatedValue", "must be a number or null, got %s", typeName(ev))
			case math.IsNaN(f) || math.IsInf(f, 0):
				v.add(p+".estimatedValue", "must be a finite number")
			default:
				o.EstimatedValue = &f
			}
		}
		out = append(out, o)
	}
	return out
}

// asMap accepts both JSON objects and YAML mappings with non-string keys.
func asMap(val any) (map[string]any, bool) {
	switch m := val.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	}
	return nil, false
}

func toFloat(val any) (float64, bool) {
	switch n := val.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func typeName(val any) string {
	switch val.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "list"
	case map[string]any, map[any]any:
		return "object"
	}
	if _, ok := toFloat(val); ok {
		return "number"
	}
	return fmt.Sprintf("%T", val)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
