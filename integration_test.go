package sftpd_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coreftp/sftpd"
	"github.com/pkg/sftp"
)

// pipeConn adapts a pair of io.Pipe halves into the io.ReadWriteCloser
// Server.Serve expects.
type pipeConn struct {
	io.Reader
	io.WriteCloser
}

// dial wires up an in-process client/server pair over pipes, the same
// shape as the teacher's client_integration_*_test.go but against this
// module's own Server instead of a subprocess.
func dial(t *testing.T, root string) (*sftp.Client, func()) {
	t.Helper()

	serverRead, clientWrite := io.Pipe()
	clientRead, serverWrite := io.Pipe()

	srv := sftpd.NewServer(sftpd.Options{Root: root})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve(ctx, pipeConn{Reader: serverRead, WriteCloser: serverWrite})
	}()

	client, err := sftp.NewClientPipe(clientRead, clientWrite)
	if err != nil {
		cancel()
		t.Fatalf("NewClientPipe: %v", err)
	}

	cleanup := func() {
		client.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
	return client, cleanup
}

func TestIntegrationWriteReadRoundTrip(t *testing.T) {
	root := t.TempDir()
	client, cleanup := dial(t, root)
	defer cleanup()

	f, err := client.Create("/greeting.txt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.Write([]byte("hello, sftp")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rf, err := client.Open("/greeting.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rf.Close()

	buf := make([]byte, 64)
	n, err := rf.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "hello, sftp" {
		t.Fatalf("got %q, want %q", buf[:n], "hello, sftp")
	}

	// Confirm the file actually landed under root, not escaped anywhere.
	if _, err := os.Stat(filepath.Join(root, "greeting.txt")); err != nil {
		t.Fatalf("file not created under root: %v", err)
	}
}

func TestIntegrationMkdirAndReadDir(t *testing.T) {
	root := t.TempDir()
	client, cleanup := dial(t, root)
	defer cleanup()

	if err := client.Mkdir("/sub"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	f, err := client.Create("/sub/a.txt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.Close()

	entries, err := client.ReadDir("/sub")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.txt" {
		t.Fatalf("unexpected ReadDir result: %+v", entries)
	}
}

func TestIntegrationRenameRefusesExistingTarget(t *testing.T) {
	root := t.TempDir()
	client, cleanup := dial(t, root)
	defer cleanup()

	for _, name := range []string{"/a.txt", "/b.txt"} {
		f, err := client.Create(name)
		if err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
		f.Close()
	}

	if err := client.Rename("/a.txt", "/b.txt"); err == nil {
		t.Fatal("expected Rename to fail when the target already exists")
	}
}

func TestIntegrationRemove(t *testing.T) {
	root := t.TempDir()
	client, cleanup := dial(t, root)
	defer cleanup()

	f, err := client.Create("/doomed.txt")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	if err := client.Remove("/doomed.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := client.Stat("/doomed.txt"); err == nil {
		t.Fatal("expected Stat to fail after Remove")
	}
}

func TestIntegrationReadEOF(t *testing.T) {
	root := t.TempDir()
	client, cleanup := dial(t, root)
	defer cleanup()

	f, err := client.Create("/empty.txt")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	rf, err := client.Open("/empty.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()

	buf := make([]byte, 16)
	_, err = rf.Read(buf)
	if err != io.EOF {
		t.Fatalf("expected io.EOF reading an empty file, got %v", err)
	}
}
