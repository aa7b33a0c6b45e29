package sftpd

import (
	"io"
	"os"
	"path"
	"sort"
)

// pflagsToOSFlags translates the wire pflag bitmask into os.OpenFile flags.
// Grounded on the teacher's handler_os_fs.go fxpOpenPkt.respond, which does
// the same pflag -> os-flag translation for v3; carried unchanged into
// later versions since this module models OPEN's access bits as one
// pflag set across all versions rather than implementing the v5/v6
// ACE-mask "desired-access" encoding (see DESIGN.md).
func pflagsToOSFlags(pf pflag) int {
	var flags int
	switch {
	case pf.has(pflagRead) && pf.has(pflagWrite):
		flags = os.O_RDWR
	case pf.has(pflagWrite):
		flags = os.O_WRONLY
	default:
		flags = os.O_RDONLY
	}
	if pf.has(pflagAppend) {
		flags |= os.O_APPEND
	}
	if pf.has(pflagCreate) {
		flags |= os.O_CREATE
	}
	if pf.has(pflagTruncate) {
		flags |= os.O_TRUNC
	}
	if pf.has(pflagExclusive) {
		flags |= os.O_EXCL
	}
	return flags
}

func (s *session) opOpen(id uint32, d *decoder) []byte {
	clientPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	flagsRaw, err := d.uint32()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	pf := pflag(flagsRaw)
	attr, err := decodeAttr(d, s.proto)
	if err != nil {
		return s.statusFrame(id, err)
	}

	if s.readOnly && (pf.has(pflagWrite) || pf.has(pflagCreate) || pf.has(pflagTruncate)) {
		return s.statusFrame(id, ErrPermDenied)
	}

	realPath := s.resolve(clientPath)

	_, statErr := os.Lstat(realPath)
	created := pf.has(pflagCreate) && os.IsNotExist(statErr)

	mode := os.FileMode(0666)
	if attr.Valid&AttrPermissions != 0 {
		mode = os.FileMode(permModeBits(attr.Permissions) & 0777)
	}

	f, err := os.OpenFile(realPath, pflagsToOSFlags(pf), mode)
	if err != nil {
		return s.statusFrame(id, err)
	}

	if attr.Valid&^AttrPermissions != 0 {
		if err := applyAttr(fdTarget{f}, attr); err != nil {
			f.Close()
			if created {
				os.Remove(realPath)
			}
			return s.statusFrame(id, err)
		}
	}

	token := s.handles.NewFile(f, realPath, pf.has(pflagText), created)
	return s.handleFrame(id, token)
}

func (s *session) opClose(id uint32, d *decoder) []byte {
	token, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	if err := s.handles.Close(token); err != nil {
		return s.statusFrame(id, err)
	}
	return s.statusFrame(id, nil)
}

func (s *session) opRead(id uint32, d *decoder) []byte {
	token, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	offset, err := d.uint64()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	length, err := d.uint32()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}

	fh, err := s.handles.GetFile(token)
	if err != nil {
		return s.statusFrame(id, err)
	}

	guard, err := s.handles.Serialize(token, fh.text)
	if err != nil {
		return s.statusFrame(id, err)
	}
	defer guard.Release()

	buf := make([]byte, length)
	var n int
	if fh.text {
		n, err = fh.f.Read(buf)
	} else {
		n, err = fh.f.ReadAt(buf, int64(offset))
	}
	if n == 0 && err != nil {
		if err == io.EOF {
			return s.statusFrame(id, ErrEOF)
		}
		return s.statusFrame(id, err)
	}
	return s.dataFrame(id, buf[:n])
}

func (s *session) opWrite(id uint32, d *decoder) []byte {
	token, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	offset, err := d.uint64()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	length, err := d.uint32()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	data, err := d.rawBytes(length)
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}

	if s.readOnly {
		return s.statusFrame(id, ErrPermDenied)
	}

	fh, err := s.handles.GetFile(token)
	if err != nil {
		return s.statusFrame(id, err)
	}

	guard, err := s.handles.Serialize(token, fh.text)
	if err != nil {
		return s.statusFrame(id, err)
	}
	defer guard.Release()

	if fh.text {
		_, err = fh.f.Write(data)
	} else {
		_, err = fh.f.WriteAt(data, int64(offset))
	}
	if err != nil {
		return s.statusFrame(id, err)
	}
	return s.statusFrame(id, nil)
}

func (s *session) statAttr(path string, followSymlink bool) (*Attr, error) {
	var fi os.FileInfo
	var err error
	if followSymlink {
		fi, err = os.Stat(path)
	} else {
		fi, err = os.Lstat(path)
	}
	if err != nil {
		return nil, err
	}
	return statToAttr(fi, true, s.ns), nil
}

func (s *session) opLstat(id uint32, d *decoder) []byte {
	clientPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	attr, err := s.statAttr(s.resolve(clientPath), false)
	if err != nil {
		return s.statusFrame(id, err)
	}
	return s.attrsFrame(id, attr)
}

func (s *session) opStat(id uint32, d *decoder) []byte {
	clientPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	attr, err := s.statAttr(s.resolve(clientPath), true)
	if err != nil {
		return s.statusFrame(id, err)
	}
	return s.attrsFrame(id, attr)
}

func (s *session) opFstat(id uint32, d *decoder) []byte {
	token, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	fh, err := s.handles.GetFile(token)
	if err != nil {
		return s.statusFrame(id, err)
	}

	guard, err := s.handles.Serialize(token, true)
	if err != nil {
		return s.statusFrame(id, err)
	}
	defer guard.Release()

	fi, err := fh.f.Stat()
	if err != nil {
		return s.statusFrame(id, err)
	}
	return s.attrsFrame(id, statToAttr(fi, true, s.ns))
}

func (s *session) opSetstat(id uint32, d *decoder) []byte {
	clientPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	attr, err := decodeAttr(d, s.proto)
	if err != nil {
		return s.statusFrame(id, err)
	}
	if s.readOnly {
		return s.statusFrame(id, ErrPermDenied)
	}
	if err := applyAttr(pathTarget(s.resolve(clientPath)), attr); err != nil {
		return s.statusFrame(id, err)
	}
	return s.statusFrame(id, nil)
}

func (s *session) opFsetstat(id uint32, d *decoder) []byte {
	token, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	attr, err := decodeAttr(d, s.proto)
	if err != nil {
		return s.statusFrame(id, err)
	}
	if s.readOnly {
		return s.statusFrame(id, ErrPermDenied)
	}

	fh, err := s.handles.GetFile(token)
	if err != nil {
		return s.statusFrame(id, err)
	}

	guard, err := s.handles.Serialize(token, true)
	if err != nil {
		return s.statusFrame(id, err)
	}
	defer guard.Release()

	if err := applyAttr(fdTarget{fh.f}, attr); err != nil {
		return s.statusFrame(id, err)
	}
	return s.statusFrame(id, nil)
}

func (s *session) opOpendir(id uint32, d *decoder) []byte {
	clientPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	realPath := s.resolve(clientPath)
	f, err := os.Open(realPath)
	if err != nil {
		return s.statusFrame(id, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return s.statusFrame(id, err)
	}
	if !fi.IsDir() {
		f.Close()
		return s.statusFrame(id, ErrNotADirectory)
	}
	token := s.handles.NewDir(f, realPath)
	return s.handleFrame(id, token)
}

func (s *session) opReaddir(id uint32, d *decoder) []byte {
	token, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	dh, err := s.handles.GetDir(token)
	if err != nil {
		return s.statusFrame(id, err)
	}

	guard, err := s.handles.Serialize(token, true)
	if err != nil {
		return s.statusFrame(id, err)
	}
	defer guard.Release()

	const batch = 128
	names, err := dh.f.Readdirnames(batch)
	if err != nil && len(names) == 0 && err != io.EOF {
		return s.statusFrame(id, err)
	}
	// An io.EOF (directory exhausted) still needs to fall through: an
	// empty or already-drained directory owes the client its "." and
	// ".." entries on the handle's first batch before reporting EOF.
	sort.Strings(names)

	entries := make([]*Attr, 0, len(names)+2)

	// readdir(3) and sftp_readdir both report "." and ".." like any other
	// directory entry; synthesize them once, on the handle's first
	// READDIR response, so a multi-batch listing doesn't repeat them.
	if !dh.dotsSent {
		if fi, err := os.Lstat(dh.path); err == nil {
			a := statToAttr(fi, true, s.ns)
			a.Name = "."
			a.LongName = longName(a, longNameOpts{})
			entries = append(entries, a)
		}
		if fi, err := os.Lstat(path.Dir(dh.path)); err == nil {
			a := statToAttr(fi, true, s.ns)
			a.Name = ".."
			a.LongName = longName(a, longNameOpts{})
			entries = append(entries, a)
		}
		dh.dotsSent = true
	}

	for _, name := range names {
		fi, err := os.Lstat(dh.path + "/" + name)
		if err != nil {
			continue
		}
		a := statToAttr(fi, true, s.ns)
		a.Name = name
		a.LongName = longName(a, longNameOpts{})
		entries = append(entries, a)
	}

	if len(entries) == 0 {
		return s.statusFrame(id, ErrEOF)
	}
	return s.nameFrame(id, entries)
}

func (s *session) opRemove(id uint32, d *decoder) []byte {
	clientPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	if s.readOnly {
		return s.statusFrame(id, ErrPermDenied)
	}
	realPath := s.resolve(clientPath)
	if fi, err := os.Lstat(realPath); err == nil && fi.IsDir() {
		return s.statusFrame(id, ErrIsADirectory)
	}
	if err := os.Remove(realPath); err != nil {
		return s.statusFrame(id, err)
	}
	return s.statusFrame(id, nil)
}

func (s *session) opMkdir(id uint32, d *decoder) []byte {
	clientPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	attr, err := decodeAttr(d, s.proto)
	if err != nil {
		return s.statusFrame(id, err)
	}
	if s.readOnly {
		return s.statusFrame(id, ErrPermDenied)
	}

	mode := os.FileMode(0777)
	if attr.Valid&AttrPermissions != 0 {
		mode = os.FileMode(permModeBits(attr.Permissions) & 0777)
	}
	realPath := s.resolve(clientPath)
	if err := os.Mkdir(realPath, mode); err != nil {
		return s.statusFrame(id, err)
	}

	if rest := attr.Valid &^ AttrPermissions; rest != 0 {
		if err := applyAttr(pathTarget(realPath), attr); err != nil {
			os.Remove(realPath)
			return s.statusFrame(id, err)
		}
	}
	return s.statusFrame(id, nil)
}

func (s *session) opRmdir(id uint32, d *decoder) []byte {
	clientPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	if s.readOnly {
		return s.statusFrame(id, ErrPermDenied)
	}
	if err := os.Remove(s.resolve(clientPath)); err != nil {
		return s.statusFrame(id, err)
	}
	return s.statusFrame(id, nil)
}

func (s *session) opRealpath(id uint32, d *decoder) []byte {
	clientPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}

	control := realpathNoCheck
	var composeWith []string
	if s.proto.hasRealpathControl {
		if b, err := d.byte(); err == nil {
			control = int(b)
			for !d.empty() {
				frag, err := d.string()
				if err != nil {
					break
				}
				composeWith = append(composeWith, frag)
			}
		}
	}

	full := clientPath
	for _, frag := range composeWith {
		full += "/" + frag
	}

	clean := cleanClientPath(full)
	realPath := s.resolve(clean)

	var fi os.FileInfo
	switch control {
	case realpathStatAlways:
		if fi, err = os.Stat(realPath); err != nil {
			return s.statusFrame(id, err)
		}
	case realpathStatIf:
		fi, _ = os.Stat(realPath)
	}

	a := &Attr{Name: clean}
	if fi != nil {
		a = statToAttr(fi, true, s.ns)
		a.Name = clean
	}
	a.LongName = longName(a, longNameOpts{})
	return s.nameFrame(id, []*Attr{a})
}

func (s *session) opReadlink(id uint32, d *decoder) []byte {
	clientPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	target, err := os.Readlink(s.resolve(clientPath))
	if err != nil {
		return s.statusFrame(id, err)
	}
	a := &Attr{Name: target}
	return s.nameFrame(id, []*Attr{a})
}

func (s *session) opSymlink(id uint32, d *decoder) []byte {
	// SSH_FXP_SYMLINK's two path fields are transposed relative to every
	// other two-path request: linkpath arrives before targetpath. This is
	// a known draft wart (OpenSSH's server swaps it back); original_source
	// follows the wire order literally, and so do we.
	linkPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	targetPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	if s.readOnly {
		return s.statusFrame(id, ErrPermDenied)
	}
	if err := os.Symlink(targetPath, s.resolve(linkPath)); err != nil {
		return s.statusFrame(id, err)
	}
	return s.statusFrame(id, nil)
}

func (s *session) opLink(id uint32, d *decoder) []byte {
	newPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	existingPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	symlinkFlag, err := d.byte()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	if s.readOnly {
		return s.statusFrame(id, ErrPermDenied)
	}

	real := s.resolve(existingPath)
	newReal := s.resolve(newPath)
	if symlinkFlag != 0 {
		err = os.Symlink(real, newReal)
	} else {
		err = os.Link(real, newReal)
	}
	if err != nil {
		return s.statusFrame(id, err)
	}
	return s.statusFrame(id, nil)
}

func (s *session) opRename(id uint32, d *decoder) []byte {
	oldPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}
	newPath, err := d.string()
	if err != nil {
		return s.statusFrame(id, ErrBadMessage)
	}

	var flags uint32
	if s.proto.version >= protoV5 {
		flags, _ = d.uint32()
	}

	if s.readOnly {
		return s.statusFrame(id, ErrPermDenied)
	}

	oldReal := s.resolve(oldPath)
	newReal := s.resolve(newPath)

	const renameOverwrite = 0x00000001
	if flags&renameOverwrite != 0 {
		if err := os.Rename(oldReal, newReal); err != nil {
			return s.statusFrame(id, err)
		}
		return s.statusFrame(id, nil)
	}

	// sftp_v34_rename's algorithm: link() is atomic and fails with EEXIST
	// if newpath is already taken, so link-then-unlink never has the
	// stat-then-rename window where a racing create/rename can slip in
	// between the check and the act. Only fall back to a plain rename
	// when link fails for a reason other than the target existing (e.g.
	// newReal is a directory, or the filesystem has no hardlink support).
	if err := os.Link(oldReal, newReal); err != nil {
		if os.IsExist(err) {
			return s.statusFrame(id, ErrFileExists)
		}
		if err := os.Rename(oldReal, newReal); err != nil {
			return s.statusFrame(id, err)
		}
		return s.statusFrame(id, nil)
	}
	if err := os.Remove(oldReal); err != nil {
		return s.statusFrame(id, err)
	}
	return s.statusFrame(id, nil)
}

// posixRename implements the posix-rename@openssh.org extension: an
// unconditional atomic rename that silently replaces newpath, unlike
// plain RENAME which refuses to overwrite pre-v5.
func (s *session) posixRename(id uint32, d *decoder) []byte {
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
	if err := os.Rename(s.resolve(oldPath), s.resolve(newPath)); err != nil {
		return s.statusFrame(id, err)
	}
	return s.statusFrame(id, nil)
}

// cleanClientPath normalizes a client-visible SFTP path, collapsing "."
// and ".." segments the way cleanPacketPath does in the teacher's
// server.go, without yet mapping it onto the real filesystem.
func cleanClientPath(p string) string {
	return path.Clean("/" + p)
}
