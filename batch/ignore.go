package batch

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

const IgnoreFile = ".diskignore"

var defaultIgnores = []string{
	".git",
	"__MACOSX",
	".DS_Store",
	"Thumbs.db",
	"._*",
}

// Matcher decides which paths under an ingest root are skipped. Rules come
// from the root's .diskignore plus a few defaults.
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

func NewMatcher(root string) (*Matcher, error) {
	path := filepath.Join(root, IgnoreFile)
	if _, err := os.Stat(path); err != nil {
		return &Matcher{ignorer: gitignore.CompileIgnoreLines(defaultIgnores...)}, nil
	}
	ig, err := gitignore.CompileIgnoreFileAndLines(path, defaultIgnores...)
	if err != nil {
		return nil, err
	}
	return &Matcher{ignorer: ig}, nil
}

// Matches takes a slash separated path relative to the root.
func (m *Matcher) Matches(rel string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(rel)
}
