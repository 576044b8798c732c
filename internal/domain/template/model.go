package template

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Body format constants.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// Missing-placeholder policy constants.
const (
	// MissingBlank substitutes an empty string for unknown fields.
	MissingBlank = "blank"
	// MissingError fails the render, naming the first unknown field.
	MissingError = "error"
)

// Domain errors
var (
	ErrEmptySubject  = errors.New("template subject is required")
	ErrEmptyBody     = errors.New("template body is required")
	ErrInvalidFormat = errors.New("template format must be html or markdown")
	ErrMissingField  = errors.New("record is missing a template field")
)

// placeholderPattern matches {{identifier}} with optional inner whitespace.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Fields provides record values for placeholder substitution.
// Lookup reports whether the field exists, so the strict policy can tell a
// missing column apart from a present-but-empty one.
type Fields interface {
	Lookup(field string) (string, bool)
}

// Template is a subject string and a body string, each carrying zero or
// more {{field}} placeholders. Immutable once loaded for a run.
type Template struct {
	Subject string
	Body    string
	Format  string
}

// Rendered is the per-recipient output of a render pass.
type Rendered struct {
	Subject string
	Body    string
}

// Validate checks that the Template is usable for a dispatch run.
// POST: Returns nil if valid, a domain error otherwise
func (t Template) Validate() error {
	if strings.TrimSpace(t.Subject) == "" {
		return ErrEmptySubject
	}
	if strings.TrimSpace(t.Body) == "" {
		return ErrEmptyBody
	}
	if t.Format != "" && t.Format != FormatHTML && t.Format != FormatMarkdown {
		return ErrInvalidFormat
	}
	return nil
}

// Render substitutes placeholders in the subject and body from the same
// record under the same policy. A single left-to-right pass: substituted
// values are never re-scanned, so a value containing {{...}} cannot expand
// further.
// PRE: Template has been validated
// POST: Deterministic for identical inputs; no side effects
func (t Template) Render(fields Fields, policy string) (Rendered, error) {
	subject, err := substitute(t.Subject, fields, policy)
	if err != nil {
		return Rendered{}, err
	}
	body, err := substitute(t.Body, fields, policy)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Subject: subject, Body: body}, nil
}

// substitute replaces every {{field}} token in s. Under MissingBlank an
// unknown field becomes the empty string; under MissingError the first
// unknown field fails the whole render.
func substitute(s string, fields Fields, policy string) (string, error) {
	var missing string
	out := placeholderPattern.ReplaceAllStringFunc(s, func(token string) string {
		name := strings.TrimSpace(strings.Trim(token, "{}"))
		value, ok := fields.Lookup(name)
		if !ok {
			if missing == "" {
				missing = name
			}
			return ""
		}
		return value
	})
	if missing != "" && policy == MissingError {
		return "", fmt.Errorf("%w: %s", ErrMissingField, missing)
	}
	return out, nil
}
