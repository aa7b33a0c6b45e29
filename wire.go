package sftpd

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// errShortPacket is returned by the unmarshal helpers when a packet claims
// to carry a field that doesn't actually fit in the remaining bytes. It is
// always non-fatal: the caller turns it into SSH_FX_BAD_MESSAGE.
var errShortPacket = errors.New("sftpd: packet too short")

// maxPacketLength bounds the length prefix read off the wire so a hostile
// or corrupt peer can't make us allocate gigabytes for one frame.
const maxPacketLength = 256 * 1024 * 1024

// readFrame reads one length-prefixed SFTP packet and returns its raw
// payload (opcode byte included). It is the only place that talks
// directly to the transport on the read side.
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || uint64(n) > maxPacketLength {
		return nil, errors.Errorf("sftpd: invalid packet length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// encoder accumulates a single outgoing packet's payload. send_begin
// reserves the length prefix, append* calls grow the buffer, and Flush
// back-patches the length and writes the whole frame in one Write call so
// that concurrent senders on the same transport never interleave a
// partial frame (see conn.sendFrame, which holds the write mutex for the
// duration of Flush).
type encoder struct {
	buf []byte
}

// newEncoder begins a response/request packet carrying the given opcode.
func newEncoder(op opcode) *encoder {
	e := &encoder{buf: make([]byte, 4, 64)}
	e.buf = append(e.buf, byte(op))
	return e
}

func (e *encoder) byte(v byte) *encoder { e.buf = append(e.buf, v); return e }

func (e *encoder) uint32(v uint32) *encoder {
	e.buf = append(e.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	return e
}

func (e *encoder) uint64(v uint64) *encoder {
	return e.uint32(uint32(v >> 32)).uint32(uint32(v))
}

func (e *encoder) string(s string) *encoder {
	return e.uint32(uint32(len(s))).bytes([]byte(s))
}

func (e *encoder) bytes(b []byte) *encoder {
	e.buf = append(e.buf, b...)
	return e
}

// bytesOf returns the finished frame, with the length prefix patched in.
func (e *encoder) bytesOf() []byte {
	binary.BigEndian.PutUint32(e.buf[:4], uint32(len(e.buf)-4))
	return e.buf
}

// decoder walks an incoming packet payload. Every method returns
// errShortPacket rather than panicking on truncation, per spec: parse
// failures are non-fatal and translate to SSH_FX_BAD_MESSAGE.
type decoder struct {
	b []byte
}

func newDecoder(payload []byte) *decoder { return &decoder{b: payload} }

func (d *decoder) remaining() []byte { return d.b }

func (d *decoder) byte() (byte, error) {
	if len(d.b) < 1 {
		return 0, errShortPacket
	}
	v := d.b[0]
	d.b = d.b[1:]
	return v, nil
}

func (d *decoder) uint32() (uint32, error) {
	if len(d.b) < 4 {
		return 0, errShortPacket
	}
	v := binary.BigEndian.Uint32(d.b[:4])
	d.b = d.b[4:]
	return v, nil
}

func (d *decoder) uint64() (uint64, error) {
	if len(d.b) < 8 {
		return 0, errShortPacket
	}
	v := binary.BigEndian.Uint64(d.b[:8])
	d.b = d.b[8:]
	return v, nil
}

func (d *decoder) string() (string, error) {
	n, err := d.uint32()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(len(d.b)) {
		return "", errShortPacket
	}
	s := string(d.b[:n])
	d.b = d.b[n:]
	return s, nil
}

// rawBytes consumes and returns exactly n bytes, e.g. for WRITE payloads.
func (d *decoder) rawBytes(n uint32) ([]byte, error) {
	if uint64(n) > uint64(len(d.b)) {
		return nil, errShortPacket
	}
	v := d.b[:n]
	d.b = d.b[n:]
	return v, nil
}

func (d *decoder) empty() bool { return len(d.b) == 0 }
