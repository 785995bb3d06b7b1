// Package mappingctx holds the process-wide registry of local interfaces,
// IGD gateways, and simple echo servers that the mapping engine in
// udpsocket/tcpsocket consults to discover externally visible endpoints.
package mappingctx

import (
	"fmt"
	"net"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// externalIPCacheTTL bounds how long a gateway's external IP is trusted
// before GetExternalIPAddress is queried again. Mirrors port.go's
// gocache.Cache use for short-lived correlation state: a WAN address
// rarely changes within a single mapping session, and re-querying the
// router's SOAP endpoint on every AddAnyPortMapping call is wasted work.
const externalIPCacheTTL = 30 * time.Second

var externalIPCache = gocache.New(externalIPCacheTTL, 2*externalIPCacheTTL)

// InterfaceV4 is a local IPv4 interface address with its optional IGD
// gateway, discovered once at Context construction time.
type InterfaceV4 struct {
	Addr    net.IP
	Gateway *Gateway // nil if no IGD was found for this interface
}

// InterfaceV6 is a local IPv6 interface address. IGD/UPnP port mapping is
// an IPv4-only concern (spec.md §4.1), so there is no gateway field here.
type InterfaceV6 struct {
	Addr net.IP
}

// Gateway is a handle to a discovered IGD/UPnP Internet Gateway Device.
type Gateway struct {
	Addr       net.IP // the gateway's LAN-facing address
	ControlURL string // SOAP control URL used to issue AddAnyPortMapping
	client     gatewayClient
}

// gatewayClient is the subset of the goupnp-generated WANIPConnection
// client surface this package uses; kept small and unexported so callers
// never need to know whether they're talking to IGDv1 or IGDv2.
type gatewayClient interface {
	AddAnyPortMapping(remoteHost string, externalPort uint16, protocol string, internalPort uint16, internalClient string, enabled bool, description string, leaseDuration uint32) (reservedPort uint16, err error)
	GetExternalIPAddress() (externalIPAddress string, err error)
}

// FindGatewayWarning records a failed IGD discovery attempt for one
// interface. Non-fatal: the interface is still usable without a gateway.
type FindGatewayWarning struct {
	IfaceAddr net.IP
	Err       error
}

func (w *FindGatewayWarning) Error() string {
	return fmt.Sprintf("error searching for IGD gateway on interface %s: %s", w.IfaceAddr, w.Err)
}

// EnumerateInterfacesWarning records a failure to enumerate local network
// interfaces. Per spec.md §4.1 this is never fatal: Context.New still
// returns a usable (empty) context.
type EnumerateInterfacesWarning struct {
	Err error
}

func (w *EnumerateInterfacesWarning) Error() string {
	return fmt.Sprintf("error enumerating local interfaces: %s", w.Err)
}

// Warning is the common interface satisfied by every warning type this
// package produces. It is just `error`; the named type exists so callers
// can read call sites as "this returns warnings" rather than "this returns
// errors that aren't really errors."
type Warning = error
