package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeArtifacts creates a temp directory holding the named files.
func writeArtifacts(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("pdf-bytes"), 0o644); err != nil {
			t.Fatalf("writing artifact: %v", err)
		}
	}
	return dir
}

// TestNormalizeKey tests the normalization rules.
func TestNormalizeKey(t *testing.T) {
	cases := []struct{ in, want string }{
		{"John Doe", "john-doe"},
		{"  John   Doe  ", "john-doe"},
		{"john-doe", "john-doe"},
		{"O'Neil, Kate", "o-neil-kate"},
		{"---", ""},
	}
	for _, c := range cases {
		if got := NormalizeKey(c.in); got != c.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// TestResolve_NormalizedMatch tests that hyphenated filenames match spaced names.
func TestResolve_NormalizedMatch(t *testing.T) {
	dir := writeArtifacts(t, "john-doe.pdf", "jane-smith.pdf")
	m, err := NewDirMatcher(dir, MatchNormalized)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	art, err := m.Resolve("John Doe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if art.Name != "john-doe.pdf" {
		t.Errorf("matched %q", art.Name)
	}
}

// TestResolve_NotFound tests the no-match case.
func TestResolve_NotFound(t *testing.T) {
	dir := writeArtifacts(t, "jane-smith.pdf")
	m, err := NewDirMatcher(dir, MatchNormalized)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.Resolve("John Doe"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

// TestResolve_Ambiguous tests that two files normalizing to one key are an
// error, never a silent pick.
func TestResolve_Ambiguous(t *testing.T) {
	dir := writeArtifacts(t, "john-doe.pdf", "John Doe.pdf")
	m, err := NewDirMatcher(dir, MatchNormalized)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.Resolve("John Doe"); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("expected ErrAmbiguous, got: %v", err)
	}
}

// TestResolve_ExactMode tests that exact mode ignores punctuation variants.
func TestResolve_ExactMode(t *testing.T) {
	dir := writeArtifacts(t, "john-doe.pdf", "Jane Smith.pdf")
	m, err := NewDirMatcher(dir, MatchExact)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.Resolve("John Doe"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for punctuation variant, got: %v", err)
	}
	art, err := m.Resolve("jane smith")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if art.Name != "Jane Smith.pdf" {
		t.Errorf("matched %q", art.Name)
	}
}

// TestNewDirMatcher_InvalidMode tests the mode guard.
func TestNewDirMatcher_InvalidMode(t *testing.T) {
	if _, err := NewDirMatcher(t.TempDir(), "fuzzy"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got: %v", err)
	}
}

// TestNewDirMatcher_SkipsSubdirectories tests that only files are indexed.
func TestNewDirMatcher_SkipsSubdirectories(t *testing.T) {
	dir := writeArtifacts(t, "john-doe.pdf")
	if err := os.Mkdir(filepath.Join(dir, "jane-smith"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	m, err := NewDirMatcher(dir, MatchNormalized)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.Resolve("Jane Smith"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected directories to be ignored, got: %v", err)
	}
}

// TestArtifact_ReadContent tests reading matched artifact bytes.
func TestArtifact_ReadContent(t *testing.T) {
	dir := writeArtifacts(t, "john-doe.pdf")
	m, err := NewDirMatcher(dir, MatchNormalized)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	art, err := m.Resolve("John Doe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	content, err := art.ReadContent()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(content) != "pdf-bytes" {
		t.Errorf("content = %q", content)
	}
}
