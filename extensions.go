package sftpd

import "os"

// opExtendedDispatch handles SSH_FXP_EXTENDED, routing by the embedded
// extension name to one of the vendor extensions this module advertises
// in its VERSION reply (protocol.go's extensions list). An unrecognized
// name gets SSH_FX_OP_UNSUPPORTED, per spec.md.
func (s *session) opExtendedDispatch(id uint32, d *decoder) []byte {
	name, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	switch name {
	case "posix-rename@openssh.org":
		return s.posixRename(id, d)
	case "statvfs@openssh.org":
		return s.extStatVFS(id, d)
	case "fstatvfs@openssh.org":
		return s.extFStatVFS(id, d)
	case "space-available":
		return s.extSpaceAvailable(id, d)
	case "hardlink@openssh.org":
		return s.extHardlink(id, d)
	case "version-select":
		return s.extVersionSelect(id, d)
	default:
		return s.statusFrame(id, ErrOpUnsupported)
	}
}

func (s *session) extStatVFS(id uint32, d *decoder) []byte {
	clientPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	v, err := statVFS(s.resolve(clientPath))
	if err != nil {
		return s.statusFrame(id, err)
	}
	e := newEncoder(opExtendedReply)
	e.uint32(id)
	v.encode(e)
	return e.bytesOf()
}

func (s *session) extFStatVFS(id uint32, d *decoder) []byte {
	token, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	fh, err := s.handles.GetFile(token)
	if err != nil {
		return s.statusFrame(id, err)
	}
	v, err := statVFS(fh.path)
	if err != nil {
		return s.statusFrame(id, err)
	}
	e := newEncoder(opExtendedReply)
	e.uint32(id)
	v.encode(e)
	return e.bytesOf()
}

func (s *session) extSpaceAvailable(id uint32, d *decoder) []byte {
	clientPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	sa, err := spaceAvailableFor(s.resolve(clientPath))
	if err != nil {
		return s.statusFrame(id, err)
	}
	e := newEncoder(opExtendedReply)
	e.uint32(id)
	sa.encode(e)
	return e.bytesOf()
}

func (s *session) extHardlink(id uint32, d *decoder) []byte {
	oldPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	newPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	if s.readOnly {
		return s.statusFrame(id, ErrPermDenied)
	}
	if err := os.Link(s.resolve(oldPath), s.resolve(newPath)); err != nil {
		return s.statusFrame(id, err)
	}
	return s.statusFrame(id, nil)
}

// extVersionSelect handles the version-select extension, which a client
// may send once, immediately after receiving VERSION and before any other
// request, to pin the session to an older protocol revision than the
// server's maximum. Since it is only valid in that single-threaded window
// before the dispatcher's worker pool starts fanning out requests, there
// is no concurrent access to guard against here.
func (s *session) extVersionSelect(id uint32, d *decoder) []byte {
	wanted, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	v, ok := parseVersionString(wanted)
	if !ok || v > s.proto.version {
		return s.statusFrame(id, ErrBadMessage)
	}
	s.proto = protocolFor(v)
	return s.statusFrame(id, nil)
}

func parseVersionString(v string) (uint32, bool) {
	switch v {
	case "3":
		return protoV3, true
	case "4":
		return protoV4, true
	case "5":
		return protoV5, true
	case "6":
		return protoV6, true
	default:
		return 0, false
	}
}
