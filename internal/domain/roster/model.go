package roster

import (
	"errors"
	"net/mail"
	"strings"
)

// Required dataset columns, matched case-insensitively against the CSV header.
const (
	ColumnEmail     = "email"
	ColumnRecipient = "recipient"
)

// Domain errors
var (
	ErrMissingEmail = errors.New("record has no email address")
	ErrInvalidEmail = errors.New("record email address is not valid")
)

// Record is one roster row: an ordered set of column values keyed by
// normalized (lowercased, trimmed) column name. Every column beyond the
// required two is a free-form template variable.
type Record struct {
	values map[string]string
}

// NewRecord creates a Record from column values.
// PRE: keys are already normalized by the dataset loader
// POST: Returns a Record holding a copy of the values
func NewRecord(values map[string]string) Record {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Record{values: copied}
}

// Get returns the value for a column, or empty string if absent.
// INVARIANT: Record values are never mutated
func (r Record) Get(field string) string {
	return r.values[strings.ToLower(strings.TrimSpace(field))]
}

// Lookup returns the value for a column and whether the column exists.
// A present-but-empty column reports true.
func (r Record) Lookup(field string) (string, bool) {
	v, ok := r.values[strings.ToLower(strings.TrimSpace(field))]
	return v, ok
}

// Email returns the normalized delivery address key for this record.
// POST: Result is lowercased and trimmed; empty when the column is missing
func (r Record) Email() string {
	return NormalizeEmail(r.values[ColumnEmail])
}

// Recipient returns the display name, falling back to the email address
// when the recipient column is empty (the address is still a usable name).
func (r Record) Recipient() string {
	if name := strings.TrimSpace(r.values[ColumnRecipient]); name != "" {
		return name
	}
	return r.Email()
}

// Validate checks that the record is a real send target.
// PRE: Record was built by the dataset loader
// POST: Returns nil for a sendable record, a domain error otherwise
func (r Record) Validate() error {
	addr := r.Email()
	if addr == "" {
		return ErrMissingEmail
	}
	if _, err := mail.ParseAddress(addr); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// NormalizeEmail produces the canonical ledger key for an address.
// INVARIANT: NormalizeEmail is idempotent
func NormalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Dataset is the tabular recipient list driving one dispatch run.
// All records share the header's column set; the loader enforces this
// before dispatch ever begins.
type Dataset struct {
	Columns []string
	Records []Record
}
