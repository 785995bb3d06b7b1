package mappingctx

import (
	"net"
	"sync"
)

// Context is the process-wide registry of local interfaces, their IGD
// gateways, and registered simple echo servers. It is populated once at
// construction (spec.md §4.1: interfaces are never refreshed) and is safe
// to share across concurrent mapping operations; only the echo-server
// registries mutate afterward, guarded by mu, mirroring the
// "mutex-protected interior mutability" note in spec.md §9 (and the
// RWMutex-guarded shared state pattern dropbox-llama's API/Summarizer use
// for their own read-mostly caches).
type Context struct {
	mu sync.RWMutex

	interfacesV4 []InterfaceV4
	interfacesV6 []InterfaceV6

	simpleUDPServers []*net.UDPAddr
	simpleTCPServers []*net.TCPAddr
}

// NewFromInterfaces builds a Context from an already-known interface set,
// skipping local enumeration and IGD discovery. Useful for callers that
// already know their topology, and for tests that need a fixed,
// deterministic interface list.
func NewFromInterfaces(v4 []InterfaceV4, v6 []InterfaceV6) *Context {
	return &Context{interfacesV4: v4, interfacesV6: v6}
}

// New enumerates local non-loopback interfaces and probes each IPv4
// interface for an IGD gateway. It never fails outright: interface
// enumeration failure yields a warning and an empty interface set, and a
// failed IGD probe on one interface yields a per-interface warning without
// aborting the others (spec.md §4.1).
func New() (*Context, []Warning) {
	ctx := &Context{}
	var warnings []Warning

	ifaces, err := net.Interfaces()
	if err != nil {
		return ctx, append(warnings, &EnumerateInterfacesWarning{Err: err})
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			warnings = append(warnings, &EnumerateInterfacesWarning{Err: err})
			continue
		}
		for _, a := range addrs {
			ip := addrIP(a)
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if ip4 := ip.To4(); ip4 != nil {
				gw, gwErr := findGateway(ip4, DefaultIGDProbeTimeout)
				if gwErr != nil {
					warnings = append(warnings, &FindGatewayWarning{IfaceAddr: ip4, Err: gwErr})
					gw = nil
				}
				ctx.interfacesV4 = append(ctx.interfacesV4, InterfaceV4{Addr: ip4, Gateway: gw})
			} else {
				ctx.interfacesV6 = append(ctx.interfacesV6, InterfaceV6{Addr: ip})
			}
		}
	}

	return ctx, warnings
}

func addrIP(a net.Addr) net.IP {
	switch v := a.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	default:
		return nil
	}
}

// InterfacesV4 returns the discovered IPv4 interfaces in discovery order.
func (c *Context) InterfacesV4() []InterfaceV4 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]InterfaceV4, len(c.interfacesV4))
	copy(out, c.interfacesV4)
	return out
}

// InterfacesV6 returns the discovered IPv6 interfaces in discovery order.
func (c *Context) InterfacesV6() []InterfaceV6 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]InterfaceV6, len(c.interfacesV6))
	copy(out, c.interfacesV6)
	return out
}

// AddSimpleUDPServers registers additional simple UDP echo servers.
// Duplicates are retained rather than deduplicated (spec.md §8 only
// requires that duplicates not change the discovered results, not that
// they be rejected).
func (c *Context) AddSimpleUDPServers(addrs []*net.UDPAddr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.simpleUDPServers = append(c.simpleUDPServers, addrs...)
}

// AddSimpleTCPServers registers additional simple TCP echo servers.
func (c *Context) AddSimpleTCPServers(addrs []*net.TCPAddr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.simpleTCPServers = append(c.simpleTCPServers, addrs...)
}

// SimpleUDPServers returns the currently registered simple UDP echo servers.
func (c *Context) SimpleUDPServers() []*net.UDPAddr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*net.UDPAddr, len(c.simpleUDPServers))
	copy(out, c.simpleUDPServers)
	return out
}

// SimpleTCPServers returns the currently registered simple TCP echo servers.
func (c *Context) SimpleTCPServers() []*net.TCPAddr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*net.TCPAddr, len(c.simpleTCPServers))
	copy(out, c.simpleTCPServers)
	return out
}
