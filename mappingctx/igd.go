package mappingctx

import (
	"net"
	"time"

	"github.com/huin/goupnp/dcps/internetgateway2"
)

// DefaultIGDProbeTimeout is the bounded timeout for a single interface's
// SSDP gateway discovery probe, per spec.md §6.
const DefaultIGDProbeTimeout = 1 * time.Second

// findGateway performs a bounded-timeout SSDP search for an IGD gateway
// on behalf of the interface ifaceAddr. The search is not bound to
// ifaceAddr: it runs over the whole network and returns the first
// WANIPConnection2 gateway that answers, so every probed interface gets
// the same gateway. It never blocks longer than timeout; on timeout or
// any discovery error it returns a non-nil error and the caller demotes
// that to a warning.
//
// Only WANIPConnection2 (IGDv2) is searched: it's the one service in the
// goupnp-generated client set that exposes AddAnyPortMapping, which is
// what spec.md §6 calls for. Grounded on
// other_examples/a688f926_ethereum-go-ethereum__p2p-nat-natupnp.go.go's
// discoverUPnP, trimmed to that single client type.
func findGateway(ifaceAddr net.IP, timeout time.Duration) (*Gateway, error) {
	type result struct {
		gw  *Gateway
		err error
	}
	resultCh := make(chan result, 1)

	go func() {
		clients, _, err := internetgateway2.NewWANIPConnection2Clients()
		if err != nil || len(clients) == 0 {
			if err == nil {
				err = errNoGateway
			}
			resultCh <- result{err: err}
			return
		}
		resultCh <- result{gw: gatewayFromV2(clients[0])}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return nil, r.err
		}
		return r.gw, nil
	case <-time.After(timeout):
		return nil, errTimeout{what: "IGD gateway discovery"}
	}
}

var errNoGateway = errString("no WANIPConnection2 gateway found")

type errString string

func (e errString) Error() string { return string(e) }

// Protocol selects the transport an IGD port mapping applies to.
type Protocol string

const (
	ProtocolUDP Protocol = "UDP"
	ProtocolTCP Protocol = "TCP"
)

// portMappingDescription is the default description string for a mapping,
// the Go rendering of the Rust original's literal "rust nat_traversal".
const portMappingDescription = "go nat_traversal"

// AddAnyPortMapping requests an external port mapping for internalAddr via
// this gateway, letting the router choose the external port, and returns
// the gateway's external (WAN-facing) address and the reserved port. A
// lease duration of 0 requests an indefinite lease, per spec.md §6.
func (g *Gateway) AddAnyPortMapping(proto Protocol, internalAddr *net.UDPAddr) (net.IP, uint16, error) {
	reserved, err := g.client.AddAnyPortMapping(
		"",
		0, // external port: any
		string(proto),
		uint16(internalAddr.Port),
		internalAddr.IP.String(),
		true,
		portMappingDescription,
		0,
	)
	if err != nil {
		return nil, 0, err
	}
	externalIP, err := g.externalIP()
	if err != nil {
		return nil, 0, err
	}
	return externalIP, reserved, nil
}

// externalIP returns the gateway's WAN-facing address, consulting
// externalIPCache first so repeated mappings against the same gateway
// within a session don't each round-trip to the router.
func (g *Gateway) externalIP() (net.IP, error) {
	if cached, ok := externalIPCache.Get(g.ControlURL); ok {
		return cached.(net.IP), nil
	}
	externalIPStr, err := g.client.GetExternalIPAddress()
	if err != nil {
		return nil, err
	}
	externalIP := net.ParseIP(externalIPStr)
	if externalIP == nil {
		return nil, errString("gateway returned invalid external IP: " + externalIPStr)
	}
	externalIPCache.SetDefault(g.ControlURL, externalIP)
	return externalIP, nil
}

func gatewayFromV2(c *internetgateway2.WANIPConnection2) *Gateway {
	loc := c.ServiceClient.Location
	return &Gateway{
		Addr:       net.ParseIP(loc.Hostname()),
		ControlURL: loc.String(),
		client:     c,
	}
}

type errTimeout struct{ what string }

func (e errTimeout) Error() string { return e.what + " timed out" }
