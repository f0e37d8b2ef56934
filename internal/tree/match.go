package tree

import (
	"errors"
	"fmt"
	"path"

	"github.com/gobwas/glob"
)

// ErrInvalidPattern indicates an exclude pattern could not be compiled.
var ErrInvalidPattern = errors.New("invalid exclude pattern")

// Matcher decides which relative positions are left out of synchronization.
// A nil *Matcher excludes nothing.
type Matcher struct {
	patterns []string
	globs    []glob.Glob
}

// NewMatcher compiles the given glob patterns. Patterns use '/' as the
// separator, so "*" never crosses a directory boundary while "**" does.
func NewMatcher(patterns []string) (*Matcher, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	m := &Matcher{
		patterns: make([]string, 0, len(patterns)),
		globs:    make([]glob.Glob, 0, len(patterns)),
	}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, p, err)
		}
		m.patterns = append(m.patterns, p)
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Excluded reports whether the entry at the relative position rel matches
// any pattern, either by its full relative position or by its base name.
func (m *Matcher) Excluded(rel string) bool {
	if m == nil {
		return false
	}

	base := path.Base(rel)
	for _, g := range m.globs {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}

// Patterns returns the source patterns the matcher was built from.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}
