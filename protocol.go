package sftpd

// protocol is the immutable per-version descriptor selected once at INIT
// and held for the lifetime of a session (spec.md §4.4: "a tagged-variant
// table selected once... rather than a C function-pointer struct").
// Nothing here mutates after protocolFor returns it, so a *protocol can be
// shared across the session's worker goroutines without synchronization.
type protocol struct {
	version uint32

	// maxStatus caps any status code this version's peer can be sent; a
	// handler-derived code above this is folded down to fxFailure by
	// statusFromError. Exact per-version ceilings aren't pinned by the
	// draft revision a client claims, so this follows the monotonic
	// codepoint-introduction history of draft-ietf-secsh-filexfer: each
	// version understands every code introduced up through it.
	maxStatus uint32

	// permittedAttrs masks which Attr.Valid bits this version's wire
	// encoding can carry at all; a SETSTAT/FSETSTAT decode silently drops
	// any bit outside this mask rather than erroring, and an outgoing
	// Attr is filtered through it before encoding.
	permittedAttrs AttrMask

	hasExplicitType   bool // v4+: attributes carry an explicit type byte
	hasTextOwnerGroup bool // v4+: owner/group are strings, not uid/gid
	hasACMODTime      bool // v3 only: ATime/MTime share one wire bit
	hasCreateTime     bool // v4+
	hasBits           bool // v5+: attrib-bits extension
	hasLinkCount      bool // v6: link count travels as a real attribute
	hasRealpathControl bool // v6: REALPATH carries a control byte + fragments
	hasVersionSelect  bool // v4+: version-select extension accepted pre-INIT-reply... actually post-INIT, pre-first-request

	extensions []extensionInfo
}

// extensionInfo names one SSH_FXP_EXTENDED sub-protocol this version
// advertises in its INIT/VERSION extension pairs.
type extensionInfo struct {
	name string
	data string
}

const (
	protoV3 = 3
	protoV4 = 4
	protoV5 = 5
	protoV6 = 6

	minVersion = protoV3
	maxVersion = protoV6
)

// commonExtensions are advertised by every version; per-version tables
// append their own on top.
func commonExtensions() []extensionInfo {
	return []extensionInfo{
		{name: "posix-rename@openssh.org", data: "1"},
		{name: "statvfs@openssh.org", data: "2"},
		{name: "fstatvfs@openssh.org", data: "2"},
		{name: "hardlink@openssh.org", data: "1"},
	}
}

// protocolFor returns the descriptor for version, clamped into
// [minVersion, maxVersion]. INIT negotiation (spec.md §4.4) always picks
// min(clientVersion, maxVersion), so this never needs to report "version
// too new" as an error: it just hands back the newest table we have.
func protocolFor(version uint32) *protocol {
	if version < minVersion {
		version = minVersion
	}
	if version > maxVersion {
		version = maxVersion
	}

	switch version {
	case protoV3:
		return &protocol{
			version:        protoV3,
			maxStatus:      fxOpUnsupported,
			permittedAttrs: AttrSize | AttrUIDGID | AttrPermissions | AttrACMODTime | AttrExtended,
			hasACMODTime:   true,
			extensions:     append([]extensionInfo{{name: "text-seek@openssh.org", data: "1"}}, commonExtensions()...),
		}
	case protoV4:
		return &protocol{
			version:   protoV4,
			maxStatus: fxNoSpaceOnFilesystem,
			permittedAttrs: AttrSize | AttrOwnerGroup | AttrPermissions | AttrAccessTime |
				AttrCreateTime | AttrModifyTime | AttrACL | AttrSubsecondTimes | AttrExtended,
			hasExplicitType:   true,
			hasTextOwnerGroup: true,
			hasCreateTime:     true,
			hasVersionSelect:  true,
			extensions:        commonExtensions(),
		}
	case protoV5:
		return &protocol{
			version:   protoV5,
			maxStatus: fxDeletePending,
			permittedAttrs: AttrSize | AttrOwnerGroup | AttrPermissions | AttrAccessTime |
				AttrCreateTime | AttrModifyTime | AttrACL | AttrSubsecondTimes |
				AttrBits | AttrExtended,
			hasExplicitType:   true,
			hasTextOwnerGroup: true,
			hasCreateTime:     true,
			hasBits:           true,
			hasVersionSelect:  true,
			extensions:        append([]extensionInfo{{name: "space-available", data: ""}}, commonExtensions()...),
		}
	default: // protoV6
		return &protocol{
			version:   protoV6,
			maxStatus: fxNoMatchingByteRangeLock,
			permittedAttrs: AttrSize | AttrAllocationSize | AttrOwnerGroup | AttrPermissions | AttrAccessTime |
				AttrCreateTime | AttrModifyTime | AttrCTime | AttrACL | AttrSubsecondTimes |
				AttrBits | AttrLinkCount | AttrExtended,
			hasExplicitType:    true,
			hasTextOwnerGroup:  true,
			hasCreateTime:      true,
			hasBits:            true,
			hasLinkCount:       true,
			hasRealpathControl: true,
			hasVersionSelect:   true,
			extensions:         append([]extensionInfo{{name: "space-available", data: ""}}, commonExtensions()...),
		}
	}
}

// REALPATH control-byte values, v6 only (original_source/v6.c).
const (
	realpathNoCheck     = 0
	realpathStatIf      = 1
	realpathStatAlways  = 2
)

// filter masks attr.Valid down to what this protocol version can carry,
// used just before encoding an outgoing Attr.
func (p *protocol) filter(attr *Attr) *Attr {
	out := *attr
	// v3/v4 only have a combined access+modify time field; fold the
	// split bits into it here, before masking, or the mask drops both
	// and v3_sendattrs-equivalent encoding emits no timestamp at all.
	if p.hasACMODTime && attr.Valid&(AttrAccessTime|AttrModifyTime) != 0 {
		out.Valid |= AttrACMODTime
	}
	out.Valid &= p.permittedAttrs | AttrExtended
	if !p.hasACMODTime {
		out.Valid &^= AttrACMODTime
	}
	return &out
}
