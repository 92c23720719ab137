package watcher

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// gitignoreMatcher filters paths against a base directory's .gitignore,
// read once at watcher start (§4.4: ".gitignore read once at watcher
// start"), plus the implicit ".git/" exclusion.
type gitignoreMatcher struct {
	root     string
	patterns []string
}

func loadGitignore(root string) *gitignoreMatcher {
	m := &gitignoreMatcher{root: root, patterns: []string{".git/**", ".git"}}

	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return m
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.patterns = append(m.patterns, line)
	}
	return m
}

// Ignored reports whether abs (an absolute path under root) matches any
// .gitignore pattern, treated as a doublestar glob against the
// root-relative path (and its directory-suffixed form, for directory-only
// patterns).
func (m *gitignoreMatcher) Ignored(abs string) bool {
	rel, err := filepath.Rel(m.root, abs)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)

	for _, pattern := range m.patterns {
		pattern = strings.TrimPrefix(pattern, "/")
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(strings.TrimSuffix(pattern, "/"), rel); ok {
			return true
		}
		for _, part := range strings.Split(rel, "/") {
			if ok, _ := doublestar.Match(strings.TrimSuffix(pattern, "/"), part); ok {
				return true
			}
		}
	}
	return false
}
