package sftpd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHandleTableFileLifecycle(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}

	tbl := newHandleTable()
	token := tbl.NewFile(f, p, false, true)

	got, err := tbl.GetFile(token)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if got.path != p {
		t.Fatalf("path: got %q want %q", got.path, p)
	}

	if err := tbl.Close(token); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := tbl.GetFile(token); err != ErrInvalidHandle {
		t.Fatalf("expected ErrInvalidHandle after close, got %v", err)
	}
}

func TestHandleTableStaleGenerationRejected(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.txt")
	p2 := filepath.Join(dir, "b.txt")
	f1, _ := os.Create(p1)
	f2, _ := os.Create(p2)

	tbl := newHandleTable()
	tok1 := tbl.NewFile(f1, p1, false, false)
	if err := tbl.Close(tok1); err != nil {
		t.Fatal(err)
	}

	// Reusing the freed slot should bump its generation, invalidating tok1
	// even though it still resolves to a valid slot index.
	tok2 := tbl.NewFile(f2, p2, false, false)

	if _, err := tbl.GetFile(tok1); err != ErrInvalidHandle {
		t.Fatalf("expected stale tok1 to be rejected, got %v", err)
	}
	got2, err := tbl.GetFile(tok2)
	if err != nil || got2.path != p2 {
		t.Fatalf("tok2 should resolve to p2, got %v, err=%v", got2, err)
	}
}

func TestHandleTableWrongKindRejected(t *testing.T) {
	dir := t.TempDir()
	f, _ := os.Create(filepath.Join(dir, "a.txt"))

	tbl := newHandleTable()
	token := tbl.NewFile(f, f.Name(), false, false)

	if _, err := tbl.GetDir(token); err != ErrInvalidHandle {
		t.Fatalf("expected ErrInvalidHandle for a file handle used as a dir, got %v", err)
	}
}

func TestHandleTableSerializeTextMode(t *testing.T) {
	dir := t.TempDir()
	f, _ := os.Create(filepath.Join(dir, "a.txt"))

	tbl := newHandleTable()
	token := tbl.NewFile(f, f.Name(), true, false)

	guard, err := tbl.Serialize(token, false)
	if err != nil {
		t.Fatal(err)
	}
	if guard == nil {
		t.Fatal("expected a non-nil guard for a text-mode handle")
	}
	guard.Release()
}

func TestHandleTableSerializeBinaryNoForce(t *testing.T) {
	dir := t.TempDir()
	f, _ := os.Create(filepath.Join(dir, "a.txt"))

	tbl := newHandleTable()
	token := tbl.NewFile(f, f.Name(), false, false)

	guard, err := tbl.Serialize(token, false)
	if err != nil {
		t.Fatal(err)
	}
	if guard != nil {
		t.Fatal("expected a nil guard for a binary handle with force=false")
	}
}
