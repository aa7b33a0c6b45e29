package sftpd

import (
	"bytes"
	"io"
	"testing"
)

func TestEncoderDecoderRoundTrip(t *testing.T) {
	e := newEncoder(opWrite)
	e.uint32(42).uint64(0xdeadbeefcafe).string("hello").byte(7).bytes([]byte{1, 2, 3})
	frame := e.bytesOf()

	d := newDecoder(frame[5:]) // skip length prefix + opcode

	id, err := d.uint32()
	if err != nil || id != 42 {
		t.Fatalf("uint32: got %d, %v", id, err)
	}
	u, err := d.uint64()
	if err != nil || u != 0xdeadbeefcafe {
		t.Fatalf("uint64: got %x, %v", u, err)
	}
	s, err := d.string()
	if err != nil || s != "hello" {
		t.Fatalf("string: got %q, %v", s, err)
	}
	b, err := d.byte()
	if err != nil || b != 7 {
		t.Fatalf("byte: got %d, %v", b, err)
	}
	raw, err := d.rawBytes(3)
	if err != nil || !bytes.Equal(raw, []byte{1, 2, 3}) {
		t.Fatalf("rawBytes: got %v, %v", raw, err)
	}
	if !d.empty() {
		t.Fatalf("expected decoder to be empty, remaining: %v", d.remaining())
	}
}

func TestDecoderShortPacket(t *testing.T) {
	d := newDecoder([]byte{0, 0, 0})
	if _, err := d.uint32(); err != errShortPacket {
		t.Fatalf("expected errShortPacket, got %v", err)
	}
}

func TestReadFrameRejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := readFrame(&buf); err == nil {
		t.Fatal("expected error for oversize frame")
	}
}

func TestReadFrameRoundTrip(t *testing.T) {
	e := newEncoder(opClose)
	e.uint32(1).string("handle")
	frame := e.bytesOf()

	r := bytes.NewReader(frame)
	got, err := readFrame(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, frame[4:]) {
		t.Fatalf("readFrame payload mismatch")
	}
	if _, err := readFrame(r); err != io.EOF {
		t.Fatalf("expected EOF after single frame, got %v", err)
	}
}
