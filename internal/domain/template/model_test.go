package template

import (
	"errors"
	"testing"
)

// mapFields is a simple Fields implementation for tests.
type mapFields map[string]string

func (m mapFields) Lookup(field string) (string, bool) {
	v, ok := m[field]
	return v, ok
}

// TestTemplate_Validate_Valid tests that a complete template passes validation.
func TestTemplate_Validate_Valid(t *testing.T) {
	tpl := Template{Subject: "Hi {{recipient}}", Body: "<p>Congratulations</p>", Format: FormatHTML}
	if err := tpl.Validate(); err != nil {
		t.Errorf("expected valid template, got: %v", err)
	}
}

// TestTemplate_Validate_EmptySubject tests that a blank subject is rejected.
func TestTemplate_Validate_EmptySubject(t *testing.T) {
	tpl := Template{Body: "body"}
	if err := tpl.Validate(); err != ErrEmptySubject {
		t.Errorf("expected ErrEmptySubject, got: %v", err)
	}
}

// TestTemplate_Validate_BadFormat tests that unknown formats are rejected.
func TestTemplate_Validate_BadFormat(t *testing.T) {
	tpl := Template{Subject: "s", Body: "b", Format: "rtf"}
	if err := tpl.Validate(); err != ErrInvalidFormat {
		t.Errorf("expected ErrInvalidFormat, got: %v", err)
	}
}

// TestRender_Substitutes tests basic placeholder substitution in subject and body.
func TestRender_Substitutes(t *testing.T) {
	tpl := Template{Subject: "Hi {{recipient}}", Body: "Dear {{recipient}}, your {{award}} is attached."}
	fields := mapFields{"recipient": "Ana", "award": "certificate"}
	got, err := tpl.Render(fields, MissingBlank)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Subject != "Hi Ana" {
		t.Errorf("subject = %q", got.Subject)
	}
	if got.Body != "Dear Ana, your certificate is attached." {
		t.Errorf("body = %q", got.Body)
	}
}

// TestRender_MissingFieldBlank tests the availability-first default policy.
func TestRender_MissingFieldBlank(t *testing.T) {
	tpl := Template{Subject: "s", Body: "Hi {{recipient}}, re {{missing}}"}
	got, err := tpl.Render(mapFields{"recipient": "Ana"}, MissingBlank)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Body != "Hi Ana, re " {
		t.Errorf("body = %q, want %q", got.Body, "Hi Ana, re ")
	}
}

// TestRender_MissingFieldStrict tests that strict mode names the missing field.
func TestRender_MissingFieldStrict(t *testing.T) {
	tpl := Template{Subject: "s", Body: "re {{missing}}"}
	_, err := tpl.Render(mapFields{}, MissingError)
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got: %v", err)
	}
}

// TestRender_EmptyValueIsNotMissing tests that a present empty field renders
// blank even under strict mode.
func TestRender_EmptyValueIsNotMissing(t *testing.T) {
	tpl := Template{Subject: "s", Body: "re {{note}}"}
	got, err := tpl.Render(mapFields{"note": ""}, MissingError)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Body != "re " {
		t.Errorf("body = %q", got.Body)
	}
}

// TestRender_InnerWhitespace tests that whitespace inside braces is tolerated.
func TestRender_InnerWhitespace(t *testing.T) {
	tpl := Template{Subject: "s", Body: "Hi {{  recipient  }}"}
	got, err := tpl.Render(mapFields{"recipient": "Ana"}, MissingBlank)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Body != "Hi Ana" {
		t.Errorf("body = %q", got.Body)
	}
}

// TestRender_NoRecursiveExpansion tests that substituted values are never
// re-scanned for further placeholders.
func TestRender_NoRecursiveExpansion(t *testing.T) {
	tpl := Template{Subject: "s", Body: "{{a}}"}
	got, err := tpl.Render(mapFields{"a": "{{b}}", "b": "boom"}, MissingBlank)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Body != "{{b}}" {
		t.Errorf("body = %q, want literal {{b}}", got.Body)
	}
}

// TestRender_Deterministic tests that identical inputs yield identical output.
func TestRender_Deterministic(t *testing.T) {
	tpl := Template{Subject: "Hi {{recipient}}", Body: "{{recipient}} / {{award}}"}
	fields := mapFields{"recipient": "Ana", "award": "gold"}
	first, err := tpl.Render(fields, MissingBlank)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := tpl.Render(fields, MissingBlank)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("render is not deterministic: %v vs %v", first, second)
	}
}

// TestRender_MalformedPlaceholderLeftVerbatim tests that tokens outside the
// placeholder grammar pass through untouched.
func TestRender_MalformedPlaceholderLeftVerbatim(t *testing.T) {
	tpl := Template{Subject: "s", Body: "{{not a field}} and {{ok}}"}
	got, err := tpl.Render(mapFields{"ok": "yes"}, MissingBlank)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Body != "{{not a field}} and yes" {
		t.Errorf("body = %q", got.Body)
	}
}
