package sftpd

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// Options configures a Server. Root is the directory every client path is
// resolved against (spec.md's "root jail"); ReadOnly rejects any request
// that would mutate the filesystem before it ever reaches os.
type Options struct {
	Root     string
	ReadOnly bool
	NameService NameService
}

// Server runs the SFTP protocol core (spec.md §2) over one connection at
// a time. It owns no transport of its own; cmd/sftpd-standalone wires one
// up over an SSH "sftp" subsystem channel, and tests wire one up over an
// in-memory pipe.
type Server struct {
	opts Options
}

func NewServer(opts Options) *Server {
	return &Server{opts: opts}
}

// Serve runs the protocol over rw until the peer disconnects or ctx is
// canceled, blocking until then. It performs the INIT/VERSION handshake
// itself before handing off to a dispatcher for the rest of the session.
func (srv *Server) Serve(ctx context.Context, rw io.ReadWriteCloser) error {
	c := &conn{Reader: rw, WriteCloser: rw}

	frame, err := readFrame(c)
	if err != nil {
		return errors.Wrap(err, "sftpd: reading INIT")
	}
	d := newDecoder(frame)
	op, err := d.byte()
	if err != nil || opcode(op) != opInit {
		return errors.New("sftpd: first packet was not SSH_FXP_INIT")
	}
	clientVersion, err := d.uint32()
	if err != nil {
		return errors.Wrap(err, "sftpd: malformed INIT")
	}

	proto := protocolFor(clientVersion)

	reply := newEncoder(opVersion)
	reply.uint32(proto.version)
	for _, ext := range proto.extensions {
		reply.string(ext.name).string(ext.data)
	}
	if err := c.writeFrame(reply.bytesOf()); err != nil {
		return errors.Wrap(err, "sftpd: sending VERSION")
	}

	sess := newSession(proto, srv.opts.Root, srv.opts.ReadOnly, srv.opts.NameService)
	defer sess.handles.CloseAll()

	d2 := newDispatcher(sess, c)
	err = d2.run(ctx)
	if err == io.EOF {
		return nil
	}
	return err
}
