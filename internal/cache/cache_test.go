package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "cache.db")
	s, err := Open(context.Background(), "sqlite-pure", dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKeyChangesWithIncludeMtime(t *testing.T) {
	dir := t.TempDir()
	inc := filepath.Join(dir, "inc.s")
	if err := os.WriteFile(inc, []byte(".byte 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	k1, err := Key("source", []string{inc})
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if err := os.WriteFile(inc, []byte(".byte 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	k2, err := Key("source", []string{inc})
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if k1 == k2 {
		t.Fatal("expected the key to change when an include file's mtime changes")
	}
}

func TestStoreRoundTripsAnEntry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	key, err := Key("jmp L\nL:\n", nil)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if _, ok, err := s.Lookup(ctx, key); err != nil || ok {
		t.Fatalf("Lookup before Store: ok=%v err=%v", ok, err)
	}

	sections := []SectionSpan{{Name: ".text", Base: 0, End: 2, Offsets: []int64{0}}}
	if err := s.Store(ctx, key, sections); err != nil {
		t.Fatalf("Store: %v", err)
	}

	entry, ok, err := s.Lookup(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Lookup after Store: ok=%v err=%v", ok, err)
	}
	if len(entry.Sections) != 1 || entry.Sections[0].Name != ".text" || entry.Sections[0].End != 2 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}
