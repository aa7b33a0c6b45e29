package sftpd

import (
	"io"
	"sync"
)

// conn is the bidirectional byte channel a session is multiplexed over
// (typically the stdin/stdout pair of an SSH "sftp" subsystem). writeFrame
// serializes concurrent senders so two workers racing to flush a response
// never interleave partial frames on the wire (spec.md §5, "atomic at the
// output boundary").
type conn struct {
	io.Reader
	io.WriteCloser
	mu sync.Mutex
}

func (c *conn) writeFrame(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.Write(frame)
	return err
}
