package udp

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestListen_ReceivesDatagram(t *testing.T) {
	l, err := Listen(context.Background(), "127.0.0.1:0", 0)
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	defer l.Close()

	dest := l.LocalAddr().String()
	b, err := NewBroadcaster(dest)
	if err != nil {
		t.Fatalf("NewBroadcaster() error: %v", err)
	}
	defer b.Close()

	if err := b.Send([]byte("DATA@")); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	_ = l.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := l.ReadDatagram(buf)
	if err != nil {
		t.Fatalf("ReadDatagram() error: %v", err)
	}
	if string(buf[:n]) != "DATA@" {
		t.Fatalf("got %q want %q", buf[:n], "DATA@")
	}
}

func TestListen_BindConflict(t *testing.T) {
	l, err := Listen(context.Background(), "127.0.0.1:0", 0)
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	defer l.Close()

	_, err = Listen(context.Background(), l.LocalAddr().String(), 0)
	if err == nil {
		t.Fatalf("expected bind error")
	}
}

func TestListener_CloseUnblocksRead(t *testing.T) {
	l, err := Listen(context.Background(), "127.0.0.1:0", 0)
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := l.ReadDatagram(make([]byte, 16))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	_ = l.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected read error after close")
		}
		if _, ok := err.(net.Error); !ok {
			t.Fatalf("err=%T want net.Error", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("read did not unblock")
	}
}
