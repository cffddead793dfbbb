package validate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCanonicalizeExistingPath(t *testing.T) {
	dir := t.TempDir()
	canonical, exists := canonicalize(dir)
	if !exists {
		t.Fatal("existing path reported as missing")
	}
	// Symlinked temp roots (macOS /var -> /private/var) still resolve to a
	// real directory.
	if info, err := os.Stat(canonical); err != nil || !info.IsDir() {
		t.Errorf("canonical %q not a directory: %v", canonical, err)
	}
}

func TestCanonicalizeCreateTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sub", "new-file.txt")

	canonical, exists := canonicalize(target)
	if exists {
		t.Fatal("missing path reported as existing")
	}
	if filepath.Base(canonical) != "new-file.txt" {
		t.Errorf("canonical = %q", canonical)
	}

	// The canonical spelling stays under the resolved ancestor.
	root, _ := canonicalize(dir)
	if !isPathUnder(canonical, root) {
		t.Errorf("%q not under %q", canonical, root)
	}
}

func TestHasTraversal(t *testing.T) {
	if !hasTraversal("/tmp/../etc/passwd") {
		t.Error("traversal missed")
	}
	if hasTraversal("/tmp/safe/path") {
		t.Error("false positive")
	}
}

func TestIsPathUnderBoundary(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "repos")
	sibling := filepath.Join(base, "repos-evil")
	for _, dir := range []string{filepath.Join(root, "a"), sibling} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	if !isPathUnder(filepath.Join(root, "a"), root) {
		t.Error("child not under root")
	}
	if !isPathUnder(root, root) {
		t.Error("root not under itself")
	}
	// A sibling sharing the root as a string prefix is not contained.
	if isPathUnder(sibling, root) {
		t.Error("prefix sibling incorrectly contained")
	}
}

func TestLooksLikePath(t *testing.T) {
	if looksLikePath("plain title") {
		t.Error("plain string flagged")
	}
	if !looksLikePath("~/repos/web") {
		t.Error("path missed")
	}
}
