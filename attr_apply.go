package sftpd

import (
	"os"
	"time"
)

// statusTarget is the capability object spec.md §9 asks for in place of
// the C source's SET_STATUS preprocessor macro (original_source/stat.c):
// applyAttr is written once against this interface and has two concrete
// implementations, one for a bare path (SETSTAT, following symlinks only
// where POSIX chown's l-variant does) and one for an already-open
// descriptor (FSETSTAT).
type statusTarget interface {
	truncate(size int64) error
	chown(uid, gid int) error
	chmod(mode os.FileMode) error
	stat() (os.FileInfo, error)
	utimes(atime, mtime time.Time) error
}

type pathTarget string

func (p pathTarget) truncate(size int64) error      { return os.Truncate(string(p), size) }
func (p pathTarget) chown(uid, gid int) error        { return os.Lchown(string(p), uid, gid) }
func (p pathTarget) chmod(mode os.FileMode) error    { return os.Chmod(string(p), mode) }
func (p pathTarget) stat() (os.FileInfo, error)      { return os.Lstat(string(p)) }
func (p pathTarget) utimes(a, m time.Time) error     { return os.Chtimes(string(p), a, m) }

type fdTarget struct{ f *os.File }

func (t fdTarget) truncate(size int64) error   { return t.f.Truncate(size) }
func (t fdTarget) chown(uid, gid int) error    { return t.f.Chown(uid, gid) }
func (t fdTarget) chmod(mode os.FileMode) error { return t.f.Chmod(mode) }
func (t fdTarget) stat() (os.FileInfo, error)  { return t.f.Stat() }
func (t fdTarget) utimes(a, m time.Time) error { return os.Chtimes(t.f.Name(), a, m) }

// applyFailure names which syscall kind failed, so the caller can
// translate it into the right SFTP status without re-deriving it from a
// bare errno (e.g. a failed truncate vs. a failed chown both surface as
// EPERM on some filesystems but callers may want to log which step hit
// it).
type applyFailure struct {
	step string
	err  error
}

func (f *applyFailure) Error() string { return f.err.Error() }
func (f *applyFailure) Unwrap() error { return f.err }

// applyAttr applies attr to target in the fixed order spec.md §4.2
// mandates, stopping at the first failure: truncate, chown, chmod, then
// access/modify time (stat-filling the half not supplied so a partial
// SETSTAT never clobbers the other timestamp).
func applyAttr(target statusTarget, attr *Attr) error {
	if attr.Valid&AttrSize != 0 {
		if err := target.truncate(int64(attr.Size)); err != nil {
			return &applyFailure{"truncate", err}
		}
	}
	if attr.Valid&AttrUIDGID != 0 {
		if err := target.chown(int(attr.UID), int(attr.GID)); err != nil {
			return &applyFailure{"chown", err}
		}
	}
	if attr.Valid&AttrPermissions != 0 {
		if err := target.chmod(os.FileMode(permModeBits(attr.Permissions) & 0777)); err != nil {
			return &applyFailure{"chmod", err}
		}
	}
	const timeBits = AttrAccessTime | AttrModifyTime | AttrACMODTime
	if attr.Valid&timeBits != 0 {
		cur, err := target.stat()
		if err != nil {
			return &applyFailure{"stat", err}
		}

		atime := accessTimeOf(cur) // falls back to ModTime if unavailable
		mtime := cur.ModTime()

		if attr.Valid&(AttrAccessTime|AttrACMODTime) != 0 {
			atime = time.Unix(attr.ATime.Seconds, int64(attr.ATime.Nanoseconds))
		}
		if attr.Valid&(AttrModifyTime|AttrACMODTime) != 0 {
			mtime = time.Unix(attr.MTime.Seconds, int64(attr.MTime.Nanoseconds))
		}
		if err := target.utimes(atime, mtime); err != nil {
			return &applyFailure{"utimes", err}
		}
	}
	return nil
}
