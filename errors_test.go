package sftpd

import (
	"io"
	"os"
	"syscall"
	"testing"

	"github.com/pkg/errors"
)

func TestStatusFromErrorNil(t *testing.T) {
	code, msg := statusFromError(nil, fxNoMatchingByteRangeLock)
	if code != fxOK || msg != "" {
		t.Fatalf("got code=%d msg=%q", code, msg)
	}
}

func TestStatusFromErrorEOF(t *testing.T) {
	code, _ := statusFromError(io.EOF, fxNoMatchingByteRangeLock)
	if code != fxEOF {
		t.Fatalf("got %d, want fxEOF", code)
	}
}

func TestStatusFromErrorPathError(t *testing.T) {
	err := &os.PathError{Op: "open", Path: "/x", Err: syscall.ENOENT}
	code, _ := statusFromError(err, fxNoMatchingByteRangeLock)
	if code != fxNoSuchFile {
		t.Fatalf("got %d, want fxNoSuchFile", code)
	}
}

func TestStatusFromErrorWrappedErrno(t *testing.T) {
	err := errors.Wrap(syscall.EEXIST, "creating file")
	code, _ := statusFromError(err, fxNoMatchingByteRangeLock)
	if code != fxFileAlreadyExists {
		t.Fatalf("got %d, want fxFileAlreadyExists", code)
	}
}

func TestStatusFromErrorCappedByMaxStatus(t *testing.T) {
	// fxFileAlreadyExists (11) is beyond what a v3 peer (maxStatus=8) can
	// represent, so it must fold down to fxFailure rather than send an
	// out-of-range code.
	code, _ := statusFromError(syscall.EEXIST, fxOpUnsupported)
	if code != fxFailure {
		t.Fatalf("got %d, want fxFailure (capped)", code)
	}
}

func TestStatusFromErrorFxerr(t *testing.T) {
	code, _ := statusFromError(ErrIsADirectory, fxNoMatchingByteRangeLock)
	if code != fxIsADirectory {
		t.Fatalf("got %d, want fxIsADirectory", code)
	}
}
