//go:build !windows
// +build !windows

package sftpd

import (
	"os"
	"syscall"
	"time"
)

// NameService resolves numeric owners to display names. It is the
// external collaborator spec.md calls out in §1 as out of scope for this
// core: a real deployment backs it with /etc/passwd, NSS, or an LDAP
// cache. Name lookups are only ever performed when a caller explicitly
// asks for OWNERGROUP, since they can be expensive (stat.c: "Only look up
// owner/group info if wanted").
type NameService interface {
	UserName(uid uint32) (name string, ok bool)
	GroupName(gid uint32) (name string, ok bool)
}

// noNameService never resolves anything; used when the server is
// configured without a name service and a caller still asks for textual
// owner/group (AttrOwnerGroup is then simply left unset, per the
// stat_to_attrs contract in stat.c).
type noNameService struct{}

func (noNameService) UserName(uint32) (string, bool)  { return "", false }
func (noNameService) GroupName(uint32) (string, bool) { return "", false }

// statToAttr converts a host os.FileInfo (and, where available, its
// underlying syscall.Stat_t) into an Attr. wantOwnerGroup mirrors the
// `flags` parameter of stat_to_attrs in stat.c: only perform uid/gid name
// resolution, and only set AttrOwnerGroup, if the caller asked for it.
func statToAttr(fi os.FileInfo, wantOwnerGroup bool, ns NameService) *Attr {
	if ns == nil {
		ns = noNameService{}
	}

	a := &Attr{
		Valid: AttrSize | AttrPermissions | AttrAccessTime | AttrModifyTime |
			AttrCTime | AttrUIDGID | AttrLinkCount | AttrAllocationSize,
		Size:        uint64(fi.Size()),
		Permissions: fromFileMode(fi.Mode()),
	}
	a.Type = typeFromFileMode(fi.Mode())

	mtime := fi.ModTime()
	a.MTime = Timestamp{Seconds: mtime.Unix(), Nanoseconds: uint32(mtime.Nanosecond())}
	a.ATime = a.MTime
	a.CTime = a.MTime
	a.Valid |= AttrSubsecondTimes

	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		a.UID = st.Uid
		a.GID = st.Gid
		a.LinkCount = uint32(st.Nlink)
		a.AllocationSize = uint64(st.Blocks) * 512

		a.ATime = Timestamp{Seconds: int64(st.Atim.Sec), Nanoseconds: uint32(st.Atim.Nsec)}
		a.MTime = Timestamp{Seconds: int64(st.Mtim.Sec), Nanoseconds: uint32(st.Mtim.Nsec)}
		a.CTime = Timestamp{Seconds: int64(st.Ctim.Sec), Nanoseconds: uint32(st.Ctim.Nsec)}

		if wantOwnerGroup {
			if name, ok := ns.UserName(st.Uid); ok {
				a.Owner = name
				a.Valid |= AttrOwnerGroup
			}
			if name, ok := ns.GroupName(st.Gid); ok {
				a.Group = name
				// Only claim OWNERGROUP once both halves resolved; a
				// partially-resolved pair is still useful to the caller
				// (longname falls back to "?" per field) but must not be
				// sent to a v4+ peer as a complete OwnerGroup attribute
				// unless both are real.
				if a.Owner == "" {
					a.Valid &^= AttrOwnerGroup
				}
			} else {
				a.Valid &^= AttrOwnerGroup
			}
		}
	}

	return a
}

// accessTimeOf extracts the access time from an os.FileInfo's underlying
// syscall.Stat_t, falling back to ModTime when unavailable (e.g. a
// filesystem or OS that doesn't expose atime).
func accessTimeOf(fi os.FileInfo) time.Time {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Atim.Sec, st.Atim.Nsec)
	}
	return fi.ModTime()
}

func typeFromFileMode(m os.FileMode) FileType {
	switch {
	case m&os.ModeDir != 0:
		return TypeDirectory
	case m&os.ModeSymlink != 0:
		return TypeSymlink
	case m&os.ModeSocket != 0:
		return TypeSocket
	case m&os.ModeNamedPipe != 0:
		return TypeFifo
	case m&os.ModeCharDevice != 0:
		return TypeCharDevice
	case m&os.ModeDevice != 0:
		return TypeBlockDevice
	case m&os.ModeType == 0:
		return TypeRegular
	default:
		return TypeSpecial
	}
}

// fromFileMode packs an os.FileMode into SFTP permission bits, including
// the type nybble (S_IFREG/S_IFDIR/...), mirroring stat.c's direct copy
// of st_mode.
func fromFileMode(m os.FileMode) uint32 {
	var perm uint32
	switch {
	case m&os.ModeDir != 0:
		perm |= syscall.S_IFDIR
	case m&os.ModeSymlink != 0:
		perm |= syscall.S_IFLNK
	case m&os.ModeSocket != 0:
		perm |= syscall.S_IFSOCK
	case m&os.ModeNamedPipe != 0:
		perm |= syscall.S_IFIFO
	case m&os.ModeCharDevice != 0:
		perm |= syscall.S_IFCHR
	case m&os.ModeDevice != 0:
		perm |= syscall.S_IFBLK
	default:
		perm |= syscall.S_IFREG
	}
	if m&os.ModeSetuid != 0 {
		perm |= syscall.S_ISUID
	}
	if m&os.ModeSetgid != 0 {
		perm |= syscall.S_ISGID
	}
	if m&os.ModeSticky != 0 {
		perm |= syscall.S_ISVTX
	}
	perm |= uint32(m.Perm())
	return perm
}

// toFileMode is the inverse of fromFileMode, used when a client supplies
// wire permission bits that must become an os.FileMode for os.OpenFile /
// os.Mkdir.
func toFileMode(mode uint32) os.FileMode {
	fm := os.FileMode(mode & 0777)
	switch mode & syscall.S_IFMT {
	case syscall.S_IFDIR:
		fm |= os.ModeDir
	case syscall.S_IFLNK:
		fm |= os.ModeSymlink
	case syscall.S_IFSOCK:
		fm |= os.ModeSocket
	case syscall.S_IFIFO:
		fm |= os.ModeNamedPipe
	case syscall.S_IFCHR:
		fm |= os.ModeDevice | os.ModeCharDevice
	case syscall.S_IFBLK:
		fm |= os.ModeDevice
	}
	if mode&syscall.S_ISUID != 0 {
		fm |= os.ModeSetuid
	}
	if mode&syscall.S_ISGID != 0 {
		fm |= os.ModeSetgid
	}
	if mode&syscall.S_ISVTX != 0 {
		fm |= os.ModeSticky
	}
	return fm
}
