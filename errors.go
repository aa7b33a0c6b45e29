package sftpd

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// Status codes, per draft-ietf-secsh-filexfer. v3 only defines fx through
// fxOpUnsupported; v4-v6 add the rest. A status table caps Code at its own
// maxStatus before putting it on the wire (see protocol.go), so handler
// code here is free to return the richest code that applies and let the
// active protocol table narrow it for older peers.
const (
	fxOK               = 0
	fxEOF              = 1
	fxNoSuchFile       = 2
	fxPermissionDenied = 3
	fxFailure          = 4
	fxBadMessage       = 5
	fxNoConnection     = 6 // client-generated only
	fxConnectionLost   = 7 // client-generated only
	fxOpUnsupported    = 8

	fxInvalidHandle           = 9
	fxNoSuchPath              = 10
	fxFileAlreadyExists       = 11
	fxWriteProtected          = 12
	fxNoMedia                 = 13
	fxNoSpaceOnFilesystem     = 14
	fxQuotaExceeded           = 15
	fxUnknownPrincipal        = 16
	fxLockConflict            = 17
	fxDirNotEmpty             = 18
	fxNotADirectory           = 19
	fxInvalidFilename         = 20
	fxLinkLoop                = 21
	fxCannotDelete            = 22
	fxInvalidParam            = 23
	fxIsADirectory            = 24
	fxByteRangeLockConflict   = 25
	fxByteRangeLockRefused    = 26
	fxDeletePending           = 27
	fxFileCorrupt             = 28
	fxOwnerInvalid            = 29
	fxGroupInvalid            = 30
	fxNoMatchingByteRangeLock = 31
)

// fxerr is a bare SFTP status code usable as a Go error, for handler code
// that wants to return an exact status without inventing a string message.
type fxerr uint32

const (
	ErrEOF            = fxerr(fxEOF)
	ErrNoSuchFile     = fxerr(fxNoSuchFile)
	ErrPermDenied     = fxerr(fxPermissionDenied)
	ErrGeneric        = fxerr(fxFailure)
	ErrBadMessage     = fxerr(fxBadMessage)
	ErrOpUnsupported  = fxerr(fxOpUnsupported)
	ErrInvalidHandleS = fxerr(fxInvalidHandle)
	ErrNotADirectory  = fxerr(fxNotADirectory)
	ErrIsADirectory   = fxerr(fxIsADirectory)
	ErrFileExists     = fxerr(fxFileAlreadyExists)
	ErrDirNotEmpty    = fxerr(fxDirNotEmpty)
)

func (e fxerr) Error() string {
	switch e {
	case ErrEOF:
		return "EOF"
	case ErrNoSuchFile:
		return "no such file"
	case ErrPermDenied:
		return "permission denied"
	case ErrBadMessage:
		return "bad message"
	case ErrOpUnsupported:
		return "operation unsupported"
	case ErrInvalidHandleS:
		return "invalid handle"
	case ErrNotADirectory:
		return "not a directory"
	case ErrIsADirectory:
		return "is a directory"
	case ErrFileExists:
		return "file already exists"
	case ErrDirNotEmpty:
		return "directory not empty"
	default:
		return "failure"
	}
}

// StatusError carries the fields of an SSH_FXP_STATUS reply. It is what
// handler code returns when it wants to control the exact code/message
// sent to the client rather than having one derived from a generic Go
// error via statusFromError.
type StatusError struct {
	Code uint32
	Msg  string
}

func (s *StatusError) Error() string {
	if s.Msg == "" {
		return fmt.Sprintf("sftpd: %s", fxerr(s.Code))
	}
	return fmt.Sprintf("sftpd: %s (%s)", fxerr(s.Code), s.Msg)
}

// translateErrno maps a raw errno to an SFTP status code. Grounded on the
// teacher's errors.go translateErrno, extended with the fuller set of
// errno cases the v4-v6 status table can actually represent.
func translateErrno(errno syscall.Errno) uint32 {
	switch errno {
	case 0:
		return fxOK
	case syscall.ENOENT:
		return fxNoSuchFile
	case syscall.EPERM, syscall.EACCES:
		return fxPermissionDenied
	case syscall.EEXIST:
		return fxFileAlreadyExists
	case syscall.ENOTDIR:
		return fxNotADirectory
	case syscall.EISDIR:
		return fxIsADirectory
	case syscall.ENOTEMPTY:
		return fxDirNotEmpty
	case syscall.ENOSPC, syscall.EDQUOT:
		return fxNoSpaceOnFilesystem
	case syscall.EROFS:
		return fxWriteProtected
	case syscall.ELOOP:
		return fxLinkLoop
	case syscall.ENAMETOOLONG:
		return fxInvalidFilename
	case syscall.EINVAL:
		return fxInvalidParam
	case syscall.EBADF:
		return fxInvalidHandle
	}
	return fxFailure
}

// statusFromError derives a (code, message) pair from an arbitrary Go
// error, unwrapping github.com/pkg/errors chains via errors.Cause so a
// Wrap'd syscall.Errno or *os.PathError deep in a call chain still
// translates correctly. maxStatus caps the result to what the active
// protocol table can encode (v3 has no codes above fxOpUnsupported),
// folding anything higher down to fxFailure.
func statusFromError(err error, maxStatus uint32) (code uint32, message string) {
	if err == nil {
		return fxOK, ""
	}

	debug("statusFromError: error is %T %v", err, err)

	cause := errors.Cause(err)
	message = err.Error()
	code = fxFailure

	switch e := cause.(type) {
	case syscall.Errno:
		code = translateErrno(e)
	case *os.PathError:
		if errno, ok := e.Err.(syscall.Errno); ok {
			code = translateErrno(errno)
		}
	case *os.LinkError:
		if errno, ok := e.Err.(syscall.Errno); ok {
			code = translateErrno(errno)
		}
	case *applyFailure:
		return statusFromError(e.err, maxStatus)
	case fxerr:
		code = uint32(e)
	default:
		switch cause {
		case io.EOF:
			code = fxEOF
		case os.ErrNotExist:
			code = fxNoSuchFile
		case os.ErrExist:
			code = fxFileAlreadyExists
		case os.ErrPermission:
			code = fxPermissionDenied
		case ErrInvalidHandle:
			code = fxInvalidHandle
		}
	}

	if code > maxStatus {
		code = fxFailure
	}
	return code, message
}
