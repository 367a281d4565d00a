package include

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestResolveFlattensIncludesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.s", ".byte 2\n")
	entry := writeFile(t, dir, "a.s", ".include \"b.s\"\n.byte 1\n")

	r := NewResolver(nil)
	graph, err := r.Resolve(entry)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(graph.Files) != 2 {
		t.Fatalf("got %d files, want 2: %v", len(graph.Files), graph.Files)
	}
	if filepath.Base(graph.Files[0]) != "a.s" || filepath.Base(graph.Files[1]) != "b.s" {
		t.Fatalf("unexpected order: %v", graph.Files)
	}
}

func TestResolveDetectsCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.s", ".include \"a.s\"\n")
	entry := writeFile(t, dir, "a.s", ".include \"b.s\"\n")

	r := NewResolver(nil)
	if _, err := r.Resolve(entry); err == nil {
		t.Fatal("expected a circular-include error")
	}
}

func TestResolveSearchesSearchPaths(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "lib")
	if err := os.MkdirAll(libDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, libDir, "macros.s", ".byte 0\n")
	entry := writeFile(t, dir, "main.s", ".include \"macros.s\"\n")

	r := NewResolver([]string{libDir})
	graph, err := r.Resolve(entry)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(graph.Files) != 2 {
		t.Fatalf("got %d files, want 2: %v", len(graph.Files), graph.Files)
	}
}
