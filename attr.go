package sftpd

// Attr is the unified in-memory representation of an SFTP file-attribute
// record, capable of carrying v3 through v6 semantics at once. Reading any
// field other than Valid is only meaningful if the corresponding Valid bit
// is set; the zero value of a field that is not valid must not be
// interpreted as "zero on disk".
//
// Grounded on original_source/stat.c's struct sftpattr and its
// stat_to_attrs conversion.
type Attr struct {
	Valid AttrMask

	Type FileType

	Size           uint64
	AllocationSize uint64

	UID, GID     uint32
	Owner, Group string // only meaningful if Valid&AttrOwnerGroup != 0

	Permissions uint32 // POSIX mode bits, including the type nybble

	ATime, MTime, CTime, CreateTime Timestamp

	LinkCount uint32

	// Bits carries the v5/v6 "attrib-bits" extension (hidden/readonly/
	// archive/compressed flags on filesystems that have such a concept).
	// The host filesystem backing this server has no such bits, so this
	// is always left unset; it exists so the wire codec round-trips the
	// field rather than silently rejecting it in a SETSTAT from a client
	// that unconditionally sends it.
	Bits uint32

	Extended []ExtPair

	// Name and LongName are only meaningful inside a NAME response; they
	// are not part of the attribute record proper but travel alongside
	// it on the wire in v3 listings.
	Name, LongName string
}

// AttrMask enumerates which fields of an Attr carry meaningful values.
type AttrMask uint32

const (
	AttrSize AttrMask = 1 << iota
	AttrUIDGID
	AttrPermissions
	AttrACMODTime // v3 only: ATime and MTime share this one bit on the wire
	AttrAccessTime
	AttrCreateTime
	AttrModifyTime
	AttrACL
	AttrOwnerGroup
	AttrSubsecondTimes
	AttrAllocationSize
	AttrLinkCount
	AttrCTime
	AttrBits
	AttrExtended AttrMask = 1 << 31
)

// FileType is the v4+ explicit type tag; for v3, it is derived from the
// type nybble of Permissions on send and never received on the wire.
type FileType uint8

const (
	TypeRegular FileType = iota + 1
	TypeDirectory
	TypeSymlink
	TypeSpecial
	TypeUnknown
	TypeSocket
	TypeCharDevice
	TypeBlockDevice
	TypeFifo
)

// typeDetails indexes by FileType to produce the leading character of a
// long-listing permission string. Grounded verbatim on stat.c's
// `static const char typedetails[] = "?-dl??scbp";` (index 0 unused,
// FileType starts at 1).
const typeDetails = "?-dl??scbp"

// Timestamp is a (seconds, nanoseconds) pair. Seconds is signed so dates
// before 1970 remain representable internally even though v3's wire
// encoding cannot carry them (see ApplyV3Seconds).
type Timestamp struct {
	Seconds     int64
	Nanoseconds uint32
}

// ExtPair is one SSH_FILEXFER_ATTR_EXTENDED (name, data) pair. v3 parses
// and discards these; v4+ round-trips them.
type ExtPair struct {
	Name string
	Data string
}

// Get returns the numeric size if valid.
func (a *Attr) HasSize() bool { return a.Valid&AttrSize != 0 }

// permModeBits masks Permissions down to the 12 low bits (setuid/setgid/
// sticky + rwx*3) that are ever legal to hand to chmod(2).
func permModeBits(p uint32) uint32 { return p & 07777 }
