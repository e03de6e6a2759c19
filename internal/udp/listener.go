package udp

import (
	"context"
	"fmt"
	"net"
)

// Listener is a bound UDP receive socket.
type Listener struct {
	addr string
	conn *net.UDPConn
}

// Listen binds addr (e.g. "127.0.0.1:40000"). readBuffer > 0 requests that
// SO_RCVBUF size from the kernel.
func Listen(ctx context.Context, addr string, readBuffer int) (*Listener, error) {
	lc := net.ListenConfig{Control: socketControl(readBuffer)}
	pc, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind udp %s: %w", addr, err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, fmt.Errorf("bind udp %s: unexpected conn type %T", addr, pc)
	}
	return &Listener{addr: addr, conn: conn}, nil
}

// ReadDatagram blocks for the next datagram. Datagrams larger than buf are
// truncated by the kernel.
func (l *Listener) ReadDatagram(buf []byte) (int, error) {
	n, _, err := l.conn.ReadFromUDP(buf)
	return n, err
}

func (l *Listener) LocalAddr() net.Addr {
	return l.conn.LocalAddr()
}

func (l *Listener) String() string {
	return "udp://" + l.conn.LocalAddr().String()
}

func (l *Listener) Close() error {
	if l == nil || l.conn == nil {
		return nil
	}
	return l.conn.Close()
}
