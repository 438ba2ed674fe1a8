package clickup

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Well-known custom field IDs in the observed workspace. Lookup by ID is exact;
// everything else is discovered by fuzzy name match.
const (
	ticketCodeFieldID   = "faadba80-e7bc-474e-b01c-1a1c965c9a76"
	emailFieldID        = "e041d530-cb4e-4fd1-9759-9cb3f9a9cbe4"
	releaseNotesFieldID = "060ed832-9a39-4143-8c9b-571b346eba15"
)

// PlaceholderEmail is assigned when no owner email can be derived. The ticket
// still syncs so an operator can repair it later.
const PlaceholderEmail = "unknown@unknown.com"

var emailPattern = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)

// fieldByID returns the custom field with the given stable ID.
func fieldByID(fields []CustomField, id string) *CustomField {
	for i := range fields {
		if fields[i].ID == id {
			return &fields[i]
		}
	}
	return nil
}

// fieldByName returns the first custom field whose name contains the given
// substring, case-insensitively.
func fieldByName(fields []CustomField, name string) *CustomField {
	name = strings.ToLower(name)
	for i := range fields {
		if strings.Contains(strings.ToLower(fields[i].Name), name) {
			return &fields[i]
		}
	}
	return nil
}

// resolveString renders the field's value as a string, dispatching on the type
// tag: drop_down values are option indexes, labels values are object arrays,
// everything else is a scalar. Returns false when the value is empty or of a
// shape the type tag does not explain.
func (f *CustomField) resolveString() (string, bool) {
	if len(f.Value) == 0 || string(f.Value) == "null" {
		return "", false
	}
	switch f.Type {
	case "drop_down":
		return f.resolveDropdown()
	case "labels":
		return f.resolveLabels()
	default:
		return f.resolveScalar()
	}
}

// resolveDropdown maps the stored index into the options array, falling back to
// the literal index when the options are absent or out of range.
func (f *CustomField) resolveDropdown() (string, bool) {
	var idx int
	if err := json.Unmarshal(f.Value, &idx); err != nil {
		// Some deployments store the selected option's UUID instead.
		return f.resolveScalar()
	}
	if f.TypeConfig != nil && idx >= 0 && idx < len(f.TypeConfig.Options) {
		opt := f.TypeConfig.Options[idx]
		if opt.Name != "" {
			return opt.Name, true
		}
		if opt.Label != "" {
			return opt.Label, true
		}
	}
	return strconv.Itoa(idx), true
}

// resolveLabels joins a label-array value into one comma-separated string.
func (f *CustomField) resolveLabels() (string, bool) {
	var objs []FieldOption
	if err := json.Unmarshal(f.Value, &objs); err == nil {
		parts := make([]string, 0, len(objs))
		for _, o := range objs {
			switch {
			case o.Label != "":
				parts = append(parts, o.Label)
			case o.Name != "":
				parts = append(parts, o.Name)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, ", "), true
		}
		return "", false
	}
	var strs []string
	if err := json.Unmarshal(f.Value, &strs); err == nil && len(strs) > 0 {
		return strings.Join(strs, ", "), true
	}
	return "", false
}

func (f *CustomField) resolveScalar() (string, bool) {
	var s string
	if err := json.Unmarshal(f.Value, &s); err == nil {
		if s == "" {
			return "", false
		}
		return s, true
	}
	var n float64
	if err := json.Unmarshal(f.Value, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	var b bool
	if err := json.Unmarshal(f.Value, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	return "", false
}

// resolveBool interprets checkbox-style values, which show up as true/false,
// "true"/"false", or 1/0 depending on the client that wrote them.
func (f *CustomField) resolveBool() bool {
	if len(f.Value) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(f.Value, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(f.Value, &s); err == nil {
		return strings.EqualFold(s, "true")
	}
	var n float64
	if err := json.Unmarshal(f.Value, &n); err == nil {
		return n == 1
	}
	return false
}

// stringFieldByID resolves the field with the given ID to a string, or nil.
func stringFieldByID(fields []CustomField, id string) *string {
	if f := fieldByID(fields, id); f != nil {
		if v, ok := f.resolveString(); ok {
			return &v
		}
	}
	return nil
}

// stringFieldByName resolves the first fuzzy name match to a string, or nil.
func stringFieldByName(fields []CustomField, names ...string) *string {
	for _, name := range names {
		if f := fieldByName(fields, name); f != nil {
			if v, ok := f.resolveString(); ok {
				return &v
			}
		}
	}
	return nil
}

// extractEmail derives the owning user's email: the known email field first,
// then any field whose name suggests a contact, then the first email-like token
// in the description. Empty string means undetermined.
func extractEmail(t *RawTask) string {
	if f := fieldByID(t.CustomFields, emailFieldID); f != nil {
		if v, ok := f.resolveString(); ok && strings.Contains(v, "@") {
			return canonicalEmail(v)
		}
	}

	for i := range t.CustomFields {
		name := strings.ToLower(t.CustomFields[i].Name)
		if strings.Contains(name, "email") || strings.Contains(name, "e-mail") || strings.Contains(name, "contact") {
			if v, ok := t.CustomFields[i].resolveString(); ok && strings.Contains(v, "@") {
				return canonicalEmail(v)
			}
		}
	}

	if m := emailPattern.FindString(t.Description); m != "" {
		return canonicalEmail(m)
	}

	return ""
}

// canonicalEmail lower-cases and trims. Unicode folding is deliberately not
// attempted; near-duplicate addresses stay distinct users.
func canonicalEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
