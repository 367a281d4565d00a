package commands

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuildCommandAssemblesMultipleFilesConcurrently(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.s")
	b := filepath.Join(dir, "b.s")
	if err := os.WriteFile(a, []byte(".byte 1,2,3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte(".byte 4,5,6\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := BuildCommand([]string{a, b}, "flat"); err != nil {
		t.Fatalf("BuildCommand: %v", err)
	}

	outA, err := os.ReadFile(filepath.Join(dir, "a.bin"))
	if err != nil {
		t.Fatalf("reading a.bin: %v", err)
	}
	if string(outA) != "\x01\x02\x03" {
		t.Fatalf("a.bin = % x, want 01 02 03", outA)
	}
}

func TestBuildCommandReportsParseFailures(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.s")
	if err := os.WriteFile(bad, []byte(".bogus\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := BuildCommand([]string{bad}, "flat"); err == nil {
		t.Fatal("expected an error for an unrecognized directive")
	}
}

func TestConformanceCommandPasses(t *testing.T) {
	if err := ConformanceCommand(nil); err != nil {
		t.Fatalf("ConformanceCommand: %v", err)
	}
}
