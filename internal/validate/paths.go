package validate

import (
	"os"
	"path/filepath"
	"strings"
)

// expandHome resolves a leading ~ to the user's home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// canonicalize resolves a path to canonical form. The second return reports
// whether the full path exists: when it does not, symlinks are resolved for
// the longest existing ancestor and the remainder is re-joined, so a create
// target still gets a stable canonical spelling.
func canonicalize(path string) (string, bool) {
	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return filepath.Clean(path), false
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, true
	}

	dir := abs
	rest := ""
	for {
		parent := filepath.Dir(dir)
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest), false
		}
		if parent == filepath.Dir(parent) {
			return filepath.Join(parent, rest), false
		}
	}
}

// hasTraversal reports whether a path value contains a parent-directory
// traversal token. Checked on the raw expanded string; resolution state is
// irrelevant.
func hasTraversal(path string) bool {
	return strings.Contains(path, "..")
}

// isPathUnder reports whether path canonically resolves under root. Used by
// the must_be_under constraint; resolution is best-effort so that create
// targets under an existing root still pass.
func isPathUnder(path, root string) bool {
	pathCanonical, _ := canonicalize(path)
	rootCanonical, _ := canonicalize(root)
	if pathCanonical == rootCanonical {
		return true
	}
	return strings.HasPrefix(pathCanonical, rootCanonical+string(filepath.Separator))
}

// looksLikePath reports whether a string argument should go through path
// security checks.
func looksLikePath(value string) bool {
	return strings.Contains(value, "/")
}
