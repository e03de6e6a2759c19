//go:build !linux

package udp

import (
	"fmt"
	"syscall"
)

func socketControl(readBuffer int) func(network, address string, c syscall.RawConn) error {
	return nil
}

func (l *Listener) ReadBufferSize() (int, error) {
	return 0, fmt.Errorf("udp read buffer query not supported on this platform")
}
