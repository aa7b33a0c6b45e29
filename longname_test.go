package sftpd

import (
	"testing"
	"time"
)

func TestPermStringRegularFile(t *testing.T) {
	a := &Attr{Valid: AttrPermissions, Type: TypeRegular, Permissions: 0644}
	got := permString(a)
	want := "-rw-r--r--"
	if got != want {
		t.Fatalf("permString: got %q want %q", got, want)
	}
}

func TestPermStringSetuidAndSticky(t *testing.T) {
	a := &Attr{Valid: AttrPermissions, Type: TypeDirectory, Permissions: 04755 | 01000}
	got := permString(a)
	want := "drwsr-xr-t"
	if got != want {
		t.Fatalf("permString: got %q want %q", got, want)
	}
}

func TestPermStringUnknownWhenNoPermissions(t *testing.T) {
	a := &Attr{Type: TypeRegular}
	got := permString(a)
	want := "-?????????"
	if got != want {
		t.Fatalf("permString: got %q want %q", got, want)
	}
}

func TestOwnerGroupStringsPrefersTextByDefault(t *testing.T) {
	a := &Attr{Valid: AttrUIDGID | AttrOwnerGroup, UID: 1000, GID: 1000, Owner: "alice", Group: "staff"}
	owner, group := ownerGroupStrings(a, false)
	if owner != "alice" || group != "staff" {
		t.Fatalf("got owner=%q group=%q", owner, group)
	}
}

func TestOwnerGroupStringsNumericPreferred(t *testing.T) {
	a := &Attr{Valid: AttrUIDGID | AttrOwnerGroup, UID: 1000, GID: 1000, Owner: "alice", Group: "staff"}
	owner, group := ownerGroupStrings(a, true)
	if owner != "1000" || group != "1000" {
		t.Fatalf("got owner=%q group=%q", owner, group)
	}
}

func TestLongNameSameYearFormat(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	mtime := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	a := &Attr{
		Valid:       AttrPermissions | AttrSize | AttrLinkCount | AttrUIDGID | AttrModifyTime,
		Type:        TypeRegular,
		Permissions: 0644,
		Size:        123,
		LinkCount:   1,
		UID:         0, GID: 0,
		MTime: Timestamp{Seconds: mtime.Unix()},
		Name:  "foo.txt",
	}
	got := longName(a, longNameOpts{now: now})
	if got == "" {
		t.Fatal("longName returned empty string")
	}
	if got[len(got)-len("foo.txt"):] != "foo.txt" {
		t.Fatalf("longName should end with the filename, got %q", got)
	}
}
