//go:build linux

package udp

import (
	"context"
	"testing"
)

func TestListen_SetsReadBuffer(t *testing.T) {
	const want = 256 * 1024
	l, err := Listen(context.Background(), "127.0.0.1:0", want)
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	defer l.Close()

	got, err := l.ReadBufferSize()
	if err != nil {
		t.Fatalf("ReadBufferSize() error: %v", err)
	}
	// Capped by net.core.rmem_max on small hosts; only check it moved off
	// the kernel floor.
	if got <= 0 {
		t.Fatalf("rcvbuf=%d", got)
	}
}
