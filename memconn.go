package beacon

import (
	"net"
	"time"
)

// bufferedPacketConn is a net.PacketConn pipe to enable testing.
// Each WriteTo is delivered to a single ReadFrom on the other end.
type bufferedPacketConn struct {
	conn net.Conn
	addr *Addr
}

// NewBufferedConn create a pair of connected in memory packet conns for testing.
// Read deadlines are honoured.
func NewBufferedConn() (a *bufferedPacketConn, b *bufferedPacketConn) {
	a = &bufferedPacketConn{addr: &Addr{MAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 0x0a}}}
	b = &bufferedPacketConn{addr: &Addr{MAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 0x0b}}}
	a.conn, b.conn = net.Pipe()
	return a, b
}

func (p *bufferedPacketConn) Close() error {
	return p.conn.Close()
}

func (p *bufferedPacketConn) LocalAddr() net.Addr                { return p.addr }
func (p *bufferedPacketConn) SetDeadline(t time.Time) error      { return p.conn.SetDeadline(t) }
func (p *bufferedPacketConn) SetReadDeadline(t time.Time) error  { return p.conn.SetReadDeadline(t) }
func (p *bufferedPacketConn) SetWriteDeadline(t time.Time) error { return p.conn.SetWriteDeadline(t) }

func (p *bufferedPacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	n, err := p.conn.Read(b)
	return n, nil, err
}

func (p *bufferedPacketConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	n, err := p.conn.Write(b)
	return n, err
}
