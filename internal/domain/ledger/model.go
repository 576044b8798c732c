package ledger

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// Status constants for delivery attempts.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Domain errors
var (
	ErrEmptyEmail    = errors.New("ledger entry email is required")
	ErrInvalidStatus = errors.New("ledger entry status must be sent or failed")
	ErrZeroTimestamp = errors.New("ledger entry timestamp must be set")
)

// Entry is one append-only delivery attempt record. Entries are never
// rewritten; a later entry for the same email supersedes earlier ones for
// gating, but history is retained.
type Entry struct {
	Timestamp  time.Time
	Recipient  string // display name, denormalized for the human-readable log
	Email      string // normalized key
	CC         string // comma-joined CC list as sent
	Attachment string // attached filename, empty for body-only sends
	Status     string
	Detail     string // error detail for failed attempts
}

// Validate checks that the Entry can be appended.
// POST: Returns nil if valid, a domain error otherwise
func (e *Entry) Validate() error {
	if NormalizeKey(e.Email) == "" {
		return ErrEmptyEmail
	}
	if e.Status != StatusSent && e.Status != StatusFailed {
		return ErrInvalidStatus
	}
	if e.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}

// NormalizeKey produces the canonical case-insensitive ledger key.
// INVARIANT: NormalizeKey is idempotent
func NormalizeKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// View is the most-recent-status-wins read model over an append log.
type View struct {
	latest map[string]string
}

// Replay folds entries in append order into a View; a later entry for a
// key overrides earlier ones.
// PRE: entries are in append order
// POST: Returns a View independent of the input slice
func Replay(entries []Entry) View {
	v := View{latest: make(map[string]string, len(entries))}
	for _, e := range entries {
		v.Observe(e)
	}
	return v
}

// Observe folds one more entry into the view, keeping a live view current
// as a run appends entries (a dataset listing an address twice gets at
// most one send).
func (v View) Observe(e Entry) {
	if key := NormalizeKey(e.Email); key != "" {
		v.latest[key] = e.Status
	}
}

// WasSent reports whether the most-recent entry for the key is Sent.
// INVARIANT: View is not mutated
func (v View) WasSent(email string) bool {
	return v.latest[NormalizeKey(email)] == StatusSent
}

// Status returns the most-recent status for the key.
func (v View) Status(email string) (string, bool) {
	s, ok := v.latest[NormalizeKey(email)]
	return s, ok
}

// Counts returns how many keys currently fold to sent and to failed.
func (v View) Counts() (sent, failed int) {
	for _, s := range v.latest {
		switch s {
		case StatusSent:
			sent++
		case StatusFailed:
			failed++
		}
	}
	return sent, failed
}

// FailedKeys returns the keys whose most-recent status is failed, sorted
// for stable display.
func (v View) FailedKeys() []string {
	var keys []string
	for k, s := range v.latest {
		if s == StatusFailed {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
