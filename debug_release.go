// +build !sftp_debug

package sftpd

func debug(format string, args ...interface{}) {}
