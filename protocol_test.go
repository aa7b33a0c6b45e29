package sftpd

import "testing"

func TestProtocolForClampsToSupportedRange(t *testing.T) {
	if p := protocolFor(2); p.version != protoV3 {
		t.Errorf("version 2 should clamp up to v3, got v%d", p.version)
	}
	if p := protocolFor(99); p.version != protoV6 {
		t.Errorf("version 99 should clamp down to v6, got v%d", p.version)
	}
	if p := protocolFor(5); p.version != protoV5 {
		t.Errorf("version 5 should select v5, got v%d", p.version)
	}
}

func TestProtocolV3HasNoV4Extensions(t *testing.T) {
	p := protocolFor(protoV3)
	if p.hasExplicitType || p.hasTextOwnerGroup || p.hasCreateTime || p.hasBits || p.hasLinkCount {
		t.Fatalf("v3 table unexpectedly advertises a v4+ capability: %+v", p)
	}
	if !p.hasACMODTime {
		t.Fatal("v3 table must set hasACMODTime")
	}
}

func TestProtocolV6HasRealpathControl(t *testing.T) {
	p := protocolFor(protoV6)
	if !p.hasRealpathControl {
		t.Fatal("v6 table must advertise REALPATH control-byte support")
	}
	if !p.hasLinkCount {
		t.Fatal("v6 table must carry link count as an attribute")
	}
}

func TestMaxStatusIsMonotonicAcrossVersions(t *testing.T) {
	prev := uint32(0)
	for _, v := range []uint32{protoV3, protoV4, protoV5, protoV6} {
		p := protocolFor(v)
		if p.maxStatus < prev {
			t.Fatalf("maxStatus regressed at v%d: %d < %d", v, p.maxStatus, prev)
		}
		prev = p.maxStatus
	}
}

func TestExtensionsIncludePosixRenameEverywhere(t *testing.T) {
	for _, v := range []uint32{protoV3, protoV4, protoV5, protoV6} {
		p := protocolFor(v)
		found := false
		for _, ext := range p.extensions {
			if ext.name == "posix-rename@openssh.org" {
				found = true
			}
		}
		if !found {
			t.Errorf("v%d does not advertise posix-rename@openssh.org", v)
		}
	}
}
