package sftpd

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// ErrInvalidHandle is returned whenever a client presents a handle token
// that doesn't resolve to a live slot: wrong slot index, generation
// mismatch (stale handle from a prior CLOSE), or wrong kind (file handle
// used where a directory handle was expected, or vice versa).
var ErrInvalidHandle = errors.New("sftpd: invalid handle")

// fileSlot is the state behind an open-file handle.
type fileSlot struct {
	f    *os.File
	path string
	text bool // opened with pflagText: reads/writes serialize and go sequential

	// created records whether this OPEN call itself created the file, so
	// a subsequent failure to apply requested attributes can unlink it
	// per spec.md §7's partial-failure policy (only when WE created it).
	created bool
}

// dirSlot is the state behind an open-directory handle.
type dirSlot struct {
	f    *os.File
	path string

	// dotsSent marks once the synthetic "." and ".." entries have been
	// emitted to a READDIR batch, so a directory spanning multiple
	// READDIR round-trips only reports them once, on the first batch.
	dotsSent bool
}

type handleKind uint8

const (
	kindFile handleKind = iota + 1
	kindDir
)

// slot is one entry in the handle table. generation increments every time
// the slot is freed, so a handle token computed before the free no longer
// matches after reuse (spec.md §3, "Generation tag").
type slot struct {
	mu         sync.Mutex
	generation uint32
	kind       handleKind
	file       *fileSlot
	dir        *dirSlot
}

// handleTable is the per-session registry of open file/directory handles.
// All mutation goes through its methods under a single registry mutex, as
// spec.md §5 requires; each slot additionally carries its own mutex for
// the narrower per-handle serialization described in §4.3.
type handleTable struct {
	mu    sync.Mutex
	slots []*slot
	free  []uint32
}

func newHandleTable() *handleTable {
	return &handleTable{}
}

// allocSlot returns a free slot index, growing the table if necessary.
// Must be called with t.mu held.
func (t *handleTable) allocSlot() uint32 {
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		return idx
	}
	t.slots = append(t.slots, &slot{})
	return uint32(len(t.slots) - 1)
}

// NewFile registers an open file descriptor and returns its wire handle.
func (t *handleTable) NewFile(f *os.File, path string, text, created bool) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.allocSlot()
	s := t.slots[idx]
	s.kind = kindFile
	s.file = &fileSlot{f: f, path: path, text: text, created: created}
	s.dir = nil
	return encodeHandle(idx, s.generation)
}

// NewDir registers an open directory stream and returns its wire handle.
func (t *handleTable) NewDir(f *os.File, path string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.allocSlot()
	s := t.slots[idx]
	s.kind = kindDir
	s.dir = &dirSlot{f: f, path: path}
	s.file = nil
	return encodeHandle(idx, s.generation)
}

// resolve looks up the slot behind a handle token, verifying both the
// slot index bounds and the generation tag.
func (t *handleTable) resolve(token string) (idx uint32, s *slot, err error) {
	idx, gen, err := decodeHandle(token)
	if err != nil {
		return 0, nil, ErrInvalidHandle
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(idx) >= len(t.slots) {
		return 0, nil, ErrInvalidHandle
	}
	s = t.slots[idx]
	if s.generation != gen || (s.file == nil && s.dir == nil) {
		return 0, nil, ErrInvalidHandle
	}
	return idx, s, nil
}

// GetFile resolves a handle token expected to be a file handle.
func (t *handleTable) GetFile(token string) (*fileSlot, error) {
	_, s, err := t.resolve(token)
	if err != nil {
		return nil, err
	}
	if s.kind != kindFile || s.file == nil {
		return nil, ErrInvalidHandle
	}
	return s.file, nil
}

// GetDir resolves a handle token expected to be a directory handle.
func (t *handleTable) GetDir(token string) (*dirSlot, error) {
	_, s, err := t.resolve(token)
	if err != nil {
		return nil, err
	}
	if s.kind != kindDir || s.dir == nil {
		return nil, ErrInvalidHandle
	}
	return s.dir, nil
}

// HandleGuard holds a per-handle mutex acquired by Serialize; releasing it
// is the caller's responsibility, normally via defer immediately after a
// successful Serialize call. Grounded on spec.md §9's suggestion that the
// registry "return a guard object together with the fd; dropping the
// guard releases the mutex."
type HandleGuard struct {
	s *slot
}

// Release unlocks the per-handle mutex. Safe to call on a nil guard (the
// no-op case when serialization wasn't required).
func (g *HandleGuard) Release() {
	if g != nil && g.s != nil {
		g.s.mu.Unlock()
	}
}

// Serialize acquires the per-handle mutex when required by spec.md §4.3:
// any operation on a text-mode file, any read/write that shares a
// non-positional offset, or fstat/fsetstat. When force is false and the
// handle is a plain binary file handle, Serialize is a no-op (returns a
// nil guard) so concurrent positional reads/writes on distinct offsets of
// the same fd are not needlessly serialized.
func (t *handleTable) Serialize(token string, force bool) (*HandleGuard, error) {
	_, s, err := t.resolve(token)
	if err != nil {
		return nil, err
	}
	needsLock := force
	if s.kind == kindFile && s.file != nil && s.file.text {
		needsLock = true
	}
	if s.kind == kindDir {
		needsLock = true
	}
	if !needsLock {
		return nil, nil
	}
	s.mu.Lock()
	return &HandleGuard{s: s}, nil
}

// Close releases the resource behind a handle token and bumps its
// generation so the token can never resolve again.
func (t *handleTable) Close(token string) error {
	idx, s, err := t.resolve(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	var closeErr error
	switch s.kind {
	case kindFile:
		closeErr = s.file.f.Close()
	case kindDir:
		closeErr = s.dir.f.Close()
	}
	s.file = nil
	s.dir = nil
	s.generation++
	s.mu.Unlock()

	t.mu.Lock()
	t.free = append(t.free, idx)
	t.mu.Unlock()

	return closeErr
}

// CloseAll releases every still-open handle, used when a session
// terminates (spec.md §5, "Handles are released on session
// termination.").
func (t *handleTable) CloseAll() {
	t.mu.Lock()
	slots := append([]*slot(nil), t.slots...)
	t.mu.Unlock()

	for _, s := range slots {
		s.mu.Lock()
		if s.file != nil {
			s.file.f.Close()
			s.file = nil
		}
		if s.dir != nil {
			s.dir.f.Close()
			s.dir = nil
		}
		s.mu.Unlock()
	}
}

// encodeHandle packs a (slot, generation) pair into the opaque 8-byte
// string sent to clients as the SFTP "handle" wire type.
func encodeHandle(idx, generation uint32) string {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:4], idx)
	binary.BigEndian.PutUint32(b[4:8], generation)
	return string(b)
}

func decodeHandle(token string) (idx, generation uint32, err error) {
	if len(token) != 8 {
		return 0, 0, ErrInvalidHandle
	}
	b := []byte(token)
	return binary.BigEndian.Uint32(b[0:4]), binary.BigEndian.Uint32(b[4:8]), nil
}
