//go:build !linux

package raw

import (
	"errors"
	"net"
)

var errUnsupported = errors.New("packet sockets are only supported on linux")

// Dial is not supported on this platform.
func Dial(ifi *net.Interface) (net.PacketConn, error) { return nil, errUnsupported }

// Listen is not supported on this platform.
func Listen() (net.PacketConn, error) { return nil, errUnsupported }
