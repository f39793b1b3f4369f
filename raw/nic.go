package raw

import (
	"fmt"
	"net"

	"github.com/irai/beacon"
	"github.com/vishvananda/netlink"
)

// ifNameSize is IFNAMSIZ, including the trailing NUL.
const ifNameSize = 16

// LinkByName resolves an interface name to the link-layer interface used by Dial.
func LinkByName(name string) (*net.Interface, error) {
	if name == "" || len(name) >= ifNameSize {
		return nil, beacon.ErrInvalidInterface
	}
	link, err := netlink.LinkByName(name)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", name, err)
	}
	attrs := link.Attrs()
	return &net.Interface{
		Index:        attrs.Index,
		MTU:          attrs.MTU,
		Name:         attrs.Name,
		HardwareAddr: attrs.HardwareAddr,
		Flags:        attrs.Flags,
	}, nil
}

// Links returns the names of all interfaces a listener receives from.
func Links() ([]string, error) {
	list, err := netlink.LinkList()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list))
	for _, link := range list {
		names = append(names, link.Attrs().Name)
	}
	return names, nil
}
