//go:build linux

package udp

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

func socketControl(readBuffer int) func(network, address string, c syscall.RawConn) error {
	if readBuffer <= 0 {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		var serr error
		if err := c.Control(func(fd uintptr) {
			serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, readBuffer)
		}); err != nil {
			return err
		}
		if serr != nil {
			return fmt.Errorf("set SO_RCVBUF=%d: %w", readBuffer, serr)
		}
		return nil
	}
}

// ReadBufferSize reports the effective SO_RCVBUF. Linux reports double the
// requested value to account for bookkeeping overhead.
func (l *Listener) ReadBufferSize() (int, error) {
	rc, err := l.conn.SyscallConn()
	if err != nil {
		return 0, err
	}
	var size int
	var gerr error
	if err := rc.Control(func(fd uintptr) {
		size, gerr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF)
	}); err != nil {
		return 0, err
	}
	return size, gerr
}
