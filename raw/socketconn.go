//go:build linux

package raw

// This is file was originally created by Matt Layher
// as part of the raw package github.com/mdlayher/raw

import (
	"net"
	"os"
	"syscall"
	"time"
	"unsafe"

	"github.com/irai/beacon"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// Must implement net.PacketConn at compile-time.
var _ net.PacketConn = &packetConn{}

// packetConn is the Linux-specific implementation of net.PacketConn for this
// package. ifi is nil for a conn receiving on all interfaces.
type packetConn struct {
	ifi *net.Interface
	s   socket
	pbe uint16
}

// socket is an interface which enables swapping out socket syscalls for
// testing.
type socket interface {
	Bind(unix.Sockaddr) error
	Close() error
	Recvfrom([]byte, int) (int, unix.Sockaddr, error)
	Sendto([]byte, int, unix.Sockaddr) error
	SetSockoptSockFprog(level, name int, fprog *unix.SockFprog) error
	SetDeadline(time.Time) error
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

// htons converts a short (uint16) from host-to-network byte order.
// Thanks to mikioh for this neat trick:
// https://github.com/mikioh/-stdyng/blob/master/afpacket.go
func htons(i uint16) uint16 {
	return (i<<8)&0xff00 | i>>8
}

// openSocket opens a non blocking SOCK_DGRAM packet socket registered with
// the runtime poller so deadlines apply.
func openSocket(filename string) (*sysSocket, error) {
	// Do not specify a protocol: a send socket must not receive and a
	// receive socket gets its protocol from bind() after the filter is attached.
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}

	// When using Go 1.12+, the SetNonblock call we just did puts the file
	// descriptor into non-blocking mode. In that case, os.NewFile
	// registers the file descriptor with the runtime poller, which is then
	// used for all subsequent operations.
	//
	// See also: https://golang.org/pkg/os/#NewFile
	f := os.NewFile(uintptr(fd), filename)
	sc, err := f.SyscallConn()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &sysSocket{f: f, rc: sc}, nil
}

// Dial creates a send only net.PacketConn that writes beacon frames on ifi.
func Dial(ifi *net.Interface) (net.PacketConn, error) {
	if ifi == nil {
		return nil, beacon.ErrInvalidInterface
	}
	s, err := openSocket("beacon-send-socket")
	if err != nil {
		return nil, err
	}
	pc, err := newPacketConn(ifi, s, htons(beacon.EthTypeBeacon), nil)
	if err != nil {
		s.Close()
		return nil, err
	}
	return pc, nil
}

// Listen creates a net.PacketConn receiving beacon frames from every interface.
func Listen() (net.PacketConn, error) {
	filter, err := beaconFilter()
	if err != nil {
		return nil, err
	}
	s, err := openSocket("beacon-recv-socket")
	if err != nil {
		return nil, err
	}
	pc, err := newPacketConn(nil, s, htons(beacon.EthTypeBeacon), filter)
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := pc.bind(); err != nil {
		s.Close()
		return nil, err
	}
	return pc, nil
}

// newPacketConn creates a net.PacketConn using the specified network
// interface, wrapped socket and big endian protocol number.
//
// It is the entry point for tests in this package.
func newPacketConn(ifi *net.Interface, s socket, pbe uint16, filter []bpf.RawInstruction) (*packetConn, error) {
	pc := &packetConn{
		ifi: ifi,
		s:   s,
		pbe: pbe,
	}

	if len(filter) > 0 {
		if err := pc.SetBPF(filter); err != nil {
			return nil, err
		}
	}

	return pc, nil
}

// bind the packet socket to the beacon protocol. Only sll_protocol and
// sll_ifindex are used for binding; ifindex zero binds to all interfaces.
func (p *packetConn) bind() error {
	var index int
	if p.ifi != nil {
		index = p.ifi.Index
	}
	if err := p.s.Bind(&unix.SockaddrLinklayer{Protocol: p.pbe, Ifindex: index}); err != nil {
		return os.NewSyscallError("bind", err)
	}
	return nil
}

// ReadFrom implements the net.PacketConn.ReadFrom method.
// The returned address holds the sender hardware address.
func (p *packetConn) ReadFrom(b []byte) (int, net.Addr, error) {
	n, addr, err := p.s.Recvfrom(b, 0)
	if err != nil {
		return n, nil, err
	}

	sa, ok := addr.(*unix.SockaddrLinklayer)
	if !ok {
		return n, nil, unix.EINVAL
	}

	// Use length specified to convert byte array into a hardware address slice.
	mac := make(net.HardwareAddr, sa.Halen)
	copy(mac, sa.Addr[:])
	return n, &beacon.Addr{MAC: mac}, nil
}

// WriteTo implements the net.PacketConn.WriteTo method.
func (p *packetConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	a, ok := addr.(*beacon.Addr)
	if !ok || a.MAC == nil || p.ifi == nil {
		return 0, unix.EINVAL
	}

	// Convert hardware address back to byte array form.
	var baddr [8]byte
	copy(baddr[:], a.MAC)

	// packet(7):
	//   When you send packets it is enough to specify sll_family, sll_addr,
	//   sll_halen, sll_ifindex, and sll_protocol. The other fields should
	//   be 0.
	// In this case, sll_family is taken care of automatically by unix.
	err := p.s.Sendto(b, 0, &unix.SockaddrLinklayer{
		Ifindex:  p.ifi.Index,
		Halen:    uint8(len(a.MAC)),
		Addr:     baddr,
		Protocol: p.pbe,
	})
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close closes the connection.
func (p *packetConn) Close() error {
	return p.s.Close()
}

// LocalAddr returns the local hardware address or nil when receiving on all interfaces.
func (p *packetConn) LocalAddr() net.Addr {
	if p.ifi == nil {
		return nil
	}
	return &beacon.Addr{MAC: p.ifi.HardwareAddr}
}

// SetDeadline implements the net.PacketConn.SetDeadline method.
func (p *packetConn) SetDeadline(t time.Time) error {
	return p.s.SetDeadline(t)
}

// SetReadDeadline implements the net.PacketConn.SetReadDeadline method.
func (p *packetConn) SetReadDeadline(t time.Time) error {
	return p.s.SetReadDeadline(t)
}

// SetWriteDeadline implements the net.PacketConn.SetWriteDeadline method.
func (p *packetConn) SetWriteDeadline(t time.Time) error {
	return p.s.SetWriteDeadline(t)
}

// SetBPF attaches an assembled BPF program to a raw net.PacketConn.
func (p *packetConn) SetBPF(filter []bpf.RawInstruction) error {
	prog := unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: (*unix.SockFilter)(unsafe.Pointer(&filter[0])),
	}

	err := p.s.SetSockoptSockFprog(
		unix.SOL_SOCKET,
		unix.SO_ATTACH_FILTER,
		&prog,
	)
	if err != nil {
		return os.NewSyscallError("setsockopt", err)
	}
	return nil
}

// sysSocket is the default socket implementation.  It makes use of
// Linux-specific system calls to handle raw socket functionality.
type sysSocket struct {
	f  *os.File
	rc syscall.RawConn
}

func (s *sysSocket) SetDeadline(t time.Time) error {
	return s.f.SetDeadline(t)
}

func (s *sysSocket) SetReadDeadline(t time.Time) error {
	return s.f.SetReadDeadline(t)
}

func (s *sysSocket) SetWriteDeadline(t time.Time) error {
	return s.f.SetWriteDeadline(t)
}

func (s *sysSocket) Bind(sa unix.Sockaddr) error {
	var err error
	cerr := s.rc.Control(func(fd uintptr) {
		err = unix.Bind(int(fd), sa)
	})
	if err != nil {
		return err
	}
	return cerr
}

func (s *sysSocket) Close() error {
	return s.f.Close()
}

func (s *sysSocket) Recvfrom(p []byte, flags int) (n int, addr unix.Sockaddr, err error) {
	cerr := s.rc.Read(func(fd uintptr) bool {
		n, addr, err = unix.Recvfrom(int(fd), p, flags)
		// When the socket is in non-blocking mode, we might see EAGAIN
		// and end up here. In that case, return false to let the
		// poller wait for readiness. See the source code for
		// internal/poll.FD.RawRead for more details.
		return err != unix.EAGAIN
	})
	if err != nil {
		return n, addr, err
	}
	return n, addr, cerr
}

func (s *sysSocket) Sendto(p []byte, flags int, to unix.Sockaddr) error {
	var err error
	cerr := s.rc.Write(func(fd uintptr) bool {
		err = unix.Sendto(int(fd), p, flags, to)
		// See comment in Recvfrom.
		return err != unix.EAGAIN
	})
	if err != nil {
		return err
	}
	return cerr
}

func (s *sysSocket) SetSockoptSockFprog(level, name int, fprog *unix.SockFprog) error {
	var err error
	cerr := s.rc.Control(func(fd uintptr) {
		err = unix.SetsockoptSockFprog(int(fd), level, name, fprog)
	})
	if err != nil {
		return err
	}
	return cerr
}
