package sftpd

import (
	"path"
	"strings"
)

// session holds everything a single SFTP connection's handlers need: the
// negotiated protocol table, its handle registry, and the server-wide
// configuration it was spawned from. One session exists per connection;
// its fields are set once during INIT and read-only afterward, so the
// worker pool in dispatch.go can share a *session across goroutines
// without a lock.
type session struct {
	proto    *protocol
	handles  *handleTable
	root     string
	readOnly bool
	ns       NameService
}

func newSession(proto *protocol, root string, readOnly bool, ns NameService) *session {
	return &session{
		proto:    proto,
		handles:  newHandleTable(),
		root:     root,
		readOnly: readOnly,
		ns:       ns,
	}
}

// resolve maps a client-supplied SFTP path onto a real filesystem path
// rooted at s.root, collapsing ".." the way cleanPacketPath does in the
// teacher's server.go: the result can never escape root no matter how
// many "../" segments the client sends.
func (s *session) resolve(clientPath string) string {
	clientPath = path.Clean("/" + clientPath)
	return path.Join(s.root, clientPath)
}

// virtual is the inverse of resolve: given a real path under s.root,
// returns the client-visible SFTP path (always '/'-rooted).
func (s *session) virtual(realPath string) string {
	rel := strings.TrimPrefix(realPath, s.root)
	if rel == "" {
		return "/"
	}
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return rel
}

// handle dispatches one decoded job to its opcode handler and returns the
// fully encoded response frame. It never returns an error itself: every
// failure path inside a handler is translated to an SSH_FXP_STATUS frame,
// since a dropped reply would desynchronize the ordered-response stream
// in dispatch.go.
func (s *session) handle(j job) []byte {
	d := newDecoder(j.body)

	switch j.op {
	case opOpen:
		return s.opOpen(j.id, d)
	case opClose:
		return s.opClose(j.id, d)
	case opRead:
		return s.opRead(j.id, d)
	case opWrite:
		return s.opWrite(j.id, d)
	case opLstat:
		return s.opLstat(j.id, d)
	case opFstat:
		return s.opFstat(j.id, d)
	case opSetstat:
		return s.opSetstat(j.id, d)
	case opFsetstat:
		return s.opFsetstat(j.id, d)
	case opOpendir:
		return s.opOpendir(j.id, d)
	case opReaddir:
		return s.opReaddir(j.id, d)
	case opRemove:
		return s.opRemove(j.id, d)
	case opMkdir:
		return s.opMkdir(j.id, d)
	case opRmdir:
		return s.opRmdir(j.id, d)
	case opRealpath:
		return s.opRealpath(j.id, d)
	case opStat:
		return s.opStat(j.id, d)
	case opRename:
		return s.opRename(j.id, d)
	case opReadlink:
		return s.opReadlink(j.id, d)
	case opSymlink:
		return s.opSymlink(j.id, d)
	case opLink:
		return s.opLink(j.id, d)
	case opExtended:
		return s.opExtendedDispatch(j.id, d)
	default:
		return s.statusFrame(j.id, ErrOpUnsupported)
	}
}

// --- response frame builders ---

func (s *session) statusFrame(id uint32, err error) []byte {
	code, msg := statusFromError(err, s.proto.maxStatus)
	e := newEncoder(opStatus)
	e.uint32(id).uint32(code).string(msg).string("en")
	return e.bytesOf()
}

func (s *session) handleFrame(id uint32, token string) []byte {
	e := newEncoder(opHandle)
	e.uint32(id).string(token)
	return e.bytesOf()
}

func (s *session) dataFrame(id uint32, data []byte) []byte {
	e := newEncoder(opData)
	e.uint32(id).uint32(uint32(len(data))).bytes(data)
	return e.bytesOf()
}

func (s *session) attrsFrame(id uint32, attr *Attr) []byte {
	e := newEncoder(opAttrs)
	e.uint32(id)
	encodeAttr(e, attr, s.proto)
	return e.bytesOf()
}

func (s *session) nameFrame(id uint32, entries []*Attr) []byte {
	e := newEncoder(opName)
	e.uint32(id).uint32(uint32(len(entries)))
	for _, a := range entries {
		e.string(a.Name)
		if s.proto.version == protoV3 {
			e.string(a.LongName)
		}
		encodeAttr(e, a, s.proto)
	}
	return e.bytesOf()
}
