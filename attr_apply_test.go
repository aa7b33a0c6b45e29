package sftpd

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyAttrTruncate(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	if err := os.WriteFile(p, []byte("hello world"), 0644); err != nil {
		t.Fatal(err)
	}

	attr := &Attr{Valid: AttrSize, Size: 5}
	if err := applyAttr(pathTarget(p), attr); err != nil {
		t.Fatal(err)
	}

	fi, err := os.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() != 5 {
		t.Fatalf("size after truncate: got %d want 5", fi.Size())
	}
}

func TestApplyAttrPartialTimePreservesOther(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	past := time.Unix(1000000, 0)
	if err := os.Chtimes(p, past, past); err != nil {
		t.Fatal(err)
	}

	// Only set MTime; ATime must be preserved rather than zeroed.
	newMtime := time.Unix(2000000, 0)
	attr := &Attr{Valid: AttrModifyTime, MTime: Timestamp{Seconds: newMtime.Unix()}}
	if err := applyAttr(pathTarget(p), attr); err != nil {
		t.Fatal(err)
	}

	fi, err := os.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	if fi.ModTime().Unix() != newMtime.Unix() {
		t.Fatalf("mtime: got %v want %v", fi.ModTime(), newMtime)
	}
	got := accessTimeOf(fi)
	if got.Unix() != past.Unix() {
		t.Fatalf("atime should be preserved: got %v want %v", got, past)
	}
}

func TestApplyAttrOrderStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "does-not-exist")

	attr := &Attr{Valid: AttrSize | AttrPermissions, Size: 10, Permissions: 0600}
	err := applyAttr(pathTarget(p), attr)
	if err == nil {
		t.Fatal("expected an error truncating a nonexistent file")
	}
	af, ok := err.(*applyFailure)
	if !ok {
		t.Fatalf("expected *applyFailure, got %T", err)
	}
	if af.step != "truncate" {
		t.Fatalf("expected failure at truncate step, got %q", af.step)
	}
}
