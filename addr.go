package beacon

import (
	"net"
)

var _ net.Addr = &Addr{}

// EthBroadcast is the all-ones link-layer destination used by every beacon.
var EthBroadcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Addr is a link-layer address which can be used to contact other machines, using
// their hardware addresses.
type Addr struct {
	MAC net.HardwareAddr
}

// String returns the address's hardware address.
func (a Addr) String() string {
	return "mac=" + a.MAC.String()
}

// Network returns the address's network name, "raw".
func (a Addr) Network() string {
	return "raw"
}
