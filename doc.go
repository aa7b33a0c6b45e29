// Package sftpd implements the server-side core of the SSH File Transfer
// Protocol, versions 3 through 6, as described in the various
// draft-ietf-secsh-filexfer revisions.
//
// It is deliberately narrow in scope: it reads length-prefixed request
// packets from an io.Reader, executes the corresponding filesystem
// operation against the host OS, and writes length-prefixed response
// packets to an io.Writer. The SSH transport, authentication, and channel
// multiplexing that would normally surround this are the caller's
// responsibility; see cmd/sftpd-standalone for a minimal example that
// wires this package to golang.org/x/crypto/ssh.
package sftpd
