package network

import (
	"context"
	"net"
	"strings"
)

// Status reports current network reachability and transport class.
type Status struct {
	Online    bool
	Metered   bool
	Interface string
}

// Oracle answers whether a usable network connection exists and whether it
// is metered. The processor consults it once per drain pass.
type Oracle interface {
	Status(ctx context.Context) (Status, error)
}

// InterfaceLister enumerates system network interfaces. Split out so tests
// can substitute synthetic interface sets.
type InterfaceLister func() ([]net.Interface, error)

// AddrLister returns the addresses bound to one interface.
type AddrLister func(iface net.Interface) ([]net.Addr, error)

type systemOracle struct {
	interfaces InterfaceLister
	addrs      AddrLister
}

// NewSystemOracle builds an Oracle backed by the host's interface table.
func NewSystemOracle() Oracle {
	return &systemOracle{
		interfaces: net.Interfaces,
		addrs:      func(iface net.Interface) ([]net.Addr, error) { return iface.Addrs() },
	}
}

// NewOracleWithListers builds an Oracle over injected interface listers (used in tests).
func NewOracleWithListers(interfaces InterfaceLister, addrs AddrLister) Oracle {
	return &systemOracle{interfaces: interfaces, addrs: addrs}
}

// meteredPrefixes are interface-name classes treated as metered transports:
// cellular modems, point-to-point links, and USB tethering.
var meteredPrefixes = []string{"wwan", "wwp", "ppp", "usb", "rmnet"}

func (o *systemOracle) Status(ctx context.Context) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}

	ifaces, err := o.interfaces()
	if err != nil {
		return Status{}, err
	}

	// Prefer an unmetered candidate when both classes are up.
	var metered *Status
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := o.addrs(iface)
		if err != nil || !hasGlobalAddr(addrs) {
			continue
		}
		candidate := Status{Online: true, Metered: isMeteredName(iface.Name), Interface: iface.Name}
		if !candidate.Metered {
			return candidate, nil
		}
		if metered == nil {
			metered = &candidate
		}
	}
	if metered != nil {
		return *metered, nil
	}
	return Status{Online: false}, nil
}

func hasGlobalAddr(addrs []net.Addr) bool {
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		return true
	}
	return false
}

func isMeteredName(name string) bool {
	lowered := strings.ToLower(name)
	for _, prefix := range meteredPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return true
		}
	}
	return false
}
