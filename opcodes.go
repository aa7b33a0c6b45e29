package sftpd

import "fmt"

// opcode identifies an SFTP packet type, shared across all protocol
// versions; a given version's command table only recognizes a subset.
type opcode uint8

const (
	opInit          opcode = 1
	opVersion       opcode = 2
	opOpen          opcode = 3
	opClose         opcode = 4
	opRead          opcode = 5
	opWrite         opcode = 6
	opLstat         opcode = 7
	opFstat         opcode = 8
	opSetstat       opcode = 9
	opFsetstat      opcode = 10
	opOpendir       opcode = 11
	opReaddir       opcode = 12
	opRemove        opcode = 13
	opMkdir         opcode = 14
	opRmdir         opcode = 15
	opRealpath      opcode = 16
	opStat          opcode = 17
	opRename        opcode = 18
	opReadlink      opcode = 19
	opSymlink       opcode = 20 // v3-v5; v6 folds this into opLink
	opLink          opcode = 21 // v6 only
	opExtended      opcode = 200
	opExtendedReply opcode = 201

	// response-only opcodes
	opStatus opcode = 101
	opHandle opcode = 102
	opData   opcode = 103
	opName   opcode = 104
	opAttrs  opcode = 105
)

func (o opcode) String() string {
	switch o {
	case opInit:
		return "SSH_FXP_INIT"
	case opVersion:
		return "SSH_FXP_VERSION"
	case opOpen:
		return "SSH_FXP_OPEN"
	case opClose:
		return "SSH_FXP_CLOSE"
	case opRead:
		return "SSH_FXP_READ"
	case opWrite:
		return "SSH_FXP_WRITE"
	case opLstat:
		return "SSH_FXP_LSTAT"
	case opFstat:
		return "SSH_FXP_FSTAT"
	case opSetstat:
		return "SSH_FXP_SETSTAT"
	case opFsetstat:
		return "SSH_FXP_FSETSTAT"
	case opOpendir:
		return "SSH_FXP_OPENDIR"
	case opReaddir:
		return "SSH_FXP_READDIR"
	case opRemove:
		return "SSH_FXP_REMOVE"
	case opMkdir:
		return "SSH_FXP_MKDIR"
	case opRmdir:
		return "SSH_FXP_RMDIR"
	case opRealpath:
		return "SSH_FXP_REALPATH"
	case opStat:
		return "SSH_FXP_STAT"
	case opRename:
		return "SSH_FXP_RENAME"
	case opReadlink:
		return "SSH_FXP_READLINK"
	case opSymlink:
		return "SSH_FXP_SYMLINK"
	case opLink:
		return "SSH_FXP_LINK"
	case opExtended:
		return "SSH_FXP_EXTENDED"
	case opExtendedReply:
		return "SSH_FXP_EXTENDED_REPLY"
	case opStatus:
		return "SSH_FXP_STATUS"
	case opHandle:
		return "SSH_FXP_HANDLE"
	case opData:
		return "SSH_FXP_DATA"
	case opName:
		return "SSH_FXP_NAME"
	case opAttrs:
		return "SSH_FXP_ATTRS"
	default:
		return fmt.Sprintf("opcode(%d)", uint8(o))
	}
}

// pflag is the SSH_FXP_OPEN mode bitmask, shared by v3-v4 (v5/v6 use a
// richer "desired access / flags" pair, translated down to this set by
// the per-version open handler).
type pflag uint32

const (
	pflagRead pflag = 1 << iota
	pflagWrite
	pflagAppend
	pflagCreate
	pflagTruncate
	pflagExclusive
	pflagText
)

// has reports whether every bit in want is set.
func (pf pflag) has(want pflag) bool { return pf&want == want }
