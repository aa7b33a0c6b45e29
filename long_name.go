package sftpd

import (
	"fmt"
	"strconv"
	"time"
)

// longNameOpts configures longName rendering. preferNumericOwner inverts
// the default textual-preferred owner/group rendering, grounded on
// stat.c's FORMAT_PREFER_NUMERIC_UID flag. now is injectable for tests;
// the zero value means "use time.Now()".
type longNameOpts struct {
	preferNumericOwner bool
	now                time.Time
}

// longName renders the fixed-width `ls -l`-style listing line sent with
// v3 NAME entries. Field widths and the permission-string algorithm are
// taken from original_source/stat.c's format_attr.
func longName(attr *Attr, opts longNameOpts) string {
	perms := permString(attr)

	linkCount := "?"
	if attr.Valid&AttrLinkCount != 0 {
		linkCount = strconv.FormatUint(uint64(attr.LinkCount), 10)
	}

	size := "?"
	if attr.Valid&AttrSize != 0 {
		size = strconv.FormatUint(attr.Size, 10)
	}

	owner, group := ownerGroupStrings(attr, opts.preferNumericOwner)

	date := "?"
	if attr.Valid&(AttrModifyTime|AttrACMODTime) != 0 {
		mtime := time.Unix(attr.MTime.Seconds, 0).UTC()
		now := opts.now
		if now.IsZero() {
			now = time.Now().UTC()
		}
		if mtime.Year() == now.Year() {
			date = mtime.Format("Jan _2 15:04")
		} else {
			date = mtime.Format("Jan _2  2006")
		}
	}

	return fmt.Sprintf("%10.10s %3.3s %-8.8s %-8.8s %8.8s %12.12s %s",
		perms, linkCount, owner, group, size, date, attr.Name)
}

// permString builds the ten-character permission string: a leading type
// character from typeDetails, then three rwx triplets honoring
// setuid/setgid/sticky.
func permString(attr *Attr) string {
	td := byte('?')
	if int(attr.Type) < len(typeDetails) {
		td = typeDetails[attr.Type]
	}
	if attr.Valid&AttrPermissions == 0 {
		return string(td) + "?????????"
	}

	p := attr.Permissions
	b := make([]byte, 0, 10)
	b = append(b, td)
	b = append(b, bitChar(p, 0400, 'r'), bitChar(p, 0200, 'w'))
	b = append(b, specialChar(p, 0100, 04000, 'x', 's', 'S'))
	b = append(b, bitChar(p, 0040, 'r'), bitChar(p, 0020, 'w'))
	b = append(b, specialChar(p, 0010, 02000, 'x', 's', 'S'))
	b = append(b, bitChar(p, 0004, 'r'), bitChar(p, 0002, 'w'))
	b = append(b, specialChar(p, 0001, 01000, 'x', 't', 'T'))
	return string(b)
}

func bitChar(perms, bit uint32, ch byte) byte {
	if perms&bit != 0 {
		return ch
	}
	return '-'
}

// specialChar renders the exec bit combined with a special bit
// (setuid/setgid/sticky): both set -> lowercase special char, only
// special -> uppercase, only exec -> execCh, neither -> '-'.
func specialChar(perms, execBit, specialBit uint32, execCh, bothCh, specialOnlyCh byte) byte {
	hasExec := perms&execBit != 0
	hasSpecial := perms&specialBit != 0
	switch {
	case hasExec && hasSpecial:
		return bothCh
	case hasSpecial:
		return specialOnlyCh
	case hasExec:
		return execCh
	default:
		return '-'
	}
}

// ownerGroupStrings picks numeric vs. textual owner/group rendering.
func ownerGroupStrings(attr *Attr, preferNumeric bool) (owner, group string) {
	hasNumeric := attr.Valid&AttrUIDGID != 0
	hasText := attr.Valid&AttrOwnerGroup != 0

	numeric := func() (string, string) {
		return strconv.FormatUint(uint64(attr.UID), 10), strconv.FormatUint(uint64(attr.GID), 10)
	}
	text := func() (string, string) { return attr.Owner, attr.Group }

	if preferNumeric {
		if hasNumeric {
			return numeric()
		}
		if hasText {
			return text()
		}
	} else {
		if hasText {
			return text()
		}
		if hasNumeric {
			return numeric()
		}
	}
	return "?", "?"
}
