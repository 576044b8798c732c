package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Match mode constants. Normalized matching tolerates case, whitespace and
// punctuation differences between the roster name and the filename; exact
// matching requires the case-insensitive stem to match verbatim.
const (
	MatchNormalized = "normalized"
	MatchExact      = "exact"
)

// Matcher errors
var (
	ErrNotFound    = errors.New("no artifact matches recipient")
	ErrAmbiguous   = errors.New("multiple artifacts match recipient")
	ErrInvalidMode = errors.New("match mode must be normalized or exact")
)

// nonAlnum matches runs of characters outside [a-z0-9] in a lowercased key.
var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Artifact is a per-recipient generated file. The pipeline only ever reads
// it; the splitting stage that produced it owns the file.
type Artifact struct {
	Name string // base filename, used as the attachment name
	Path string
}

// ReadContent loads the artifact bytes for attaching.
// POST: The file on disk is unchanged
func (a Artifact) ReadContent() ([]byte, error) {
	return os.ReadFile(a.Path)
}

// DirMatcher resolves artifacts for recipients by indexing a flat
// directory's base filenames under the configured match mode.
type DirMatcher struct {
	mode  string
	index map[string][]Artifact
}

// NewDirMatcher scans dir once and builds the filename index.
// PRE: dir exists and is readable
// POST: Returns a matcher whose Resolve never touches the filesystem
// except to read matched content
func NewDirMatcher(dir, mode string) (*DirMatcher, error) {
	if mode == "" {
		mode = MatchNormalized
	}
	if mode != MatchNormalized && mode != MatchExact {
		return nil, ErrInvalidMode
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning artifact directory: %w", err)
	}

	m := &DirMatcher{mode: mode, index: make(map[string][]Artifact)}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		key := m.keyFor(stem)
		if key == "" {
			continue
		}
		m.index[key] = append(m.index[key], Artifact{Name: name, Path: filepath.Join(dir, name)})
	}
	return m, nil
}

// Resolve returns the artifact for a recipient display name.
// POST: ErrNotFound when nothing matches; ErrAmbiguous when two or more
// artifacts share the key — never a silent pick between them
func (m *DirMatcher) Resolve(recipientName string) (Artifact, error) {
	matches := m.index[m.keyFor(recipientName)]
	switch len(matches) {
	case 0:
		return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, recipientName)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, a := range matches {
			names[i] = a.Name
		}
		return Artifact{}, fmt.Errorf("%w: %s matches %s", ErrAmbiguous, recipientName, strings.Join(names, ", "))
	}
}

// keyFor produces the comparison key for a name under the matcher's mode.
func (m *DirMatcher) keyFor(name string) string {
	if m.mode == MatchExact {
		return strings.ToLower(strings.TrimSpace(name))
	}
	return NormalizeKey(name)
}

// NormalizeKey lowercases a name and collapses every run of
// non-alphanumeric characters into a single separator, so "John  Doe" and
// "john-doe.pdf" (stem "john-doe") compare equal.
// INVARIANT: NormalizeKey is idempotent
func NormalizeKey(name string) string {
	key := nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(key, "-")
}
