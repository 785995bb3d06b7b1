package mappingctx

import (
	"net"
	"testing"
)

// countingGatewayClient counts GetExternalIPAddress calls so tests can
// assert the externalIPCache is actually short-circuiting repeat queries.
type countingGatewayClient struct {
	ip      string
	gotIPN  int
	reserve uint16
}

func (c *countingGatewayClient) AddAnyPortMapping(remoteHost string, externalPort uint16, protocol string, internalPort uint16, internalClient string, enabled bool, description string, leaseDuration uint32) (uint16, error) {
	return c.reserve, nil
}

func (c *countingGatewayClient) GetExternalIPAddress() (string, error) {
	c.gotIPN++
	return c.ip, nil
}

func TestAddAnyPortMappingCachesExternalIP(t *testing.T) {
	fake := &countingGatewayClient{ip: "203.0.113.9", reserve: 4242}
	gw := &Gateway{Addr: net.ParseIP("192.168.1.1"), ControlURL: "http://gw-under-test.invalid/ctl", client: fake}

	for i := 0; i < 3; i++ {
		extIP, port, err := gw.AddAnyPortMapping(ProtocolUDP, &net.UDPAddr{IP: net.ParseIP("192.168.1.50"), Port: 5000})
		if err != nil {
			t.Fatalf("AddAnyPortMapping call %d: %v", i, err)
		}
		if extIP.String() != fake.ip {
			t.Fatalf("call %d: expected external IP %s, got %s", i, fake.ip, extIP)
		}
		if port != fake.reserve {
			t.Fatalf("call %d: expected reserved port %d, got %d", i, fake.reserve, port)
		}
	}

	if fake.gotIPN != 1 {
		t.Fatalf("expected GetExternalIPAddress to be called once due to caching, got %d calls", fake.gotIPN)
	}
}
