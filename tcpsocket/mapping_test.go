package tcpsocket

import (
	"net"
	"testing"

	"github.com/natpunch/natpunch-go/mappingctx"
	"github.com/natpunch/natpunch-go/socketutil"
)

func TestMapLoopbackOnlyYieldsUnrestrictedEndpoint(t *testing.T) {
	ln, err := socketutil.NewReusableTCPListener(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	ctx, _ := mappingctx.New()
	mapped, warnings, err := Map(ln, ctx)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	t.Logf("got %d warnings", len(warnings))

	if len(mapped.Endpoints) != 1 {
		t.Fatalf("expected exactly the bound address as the only endpoint, got %+v", mapped.Endpoints)
	}
	if mapped.Endpoints[0].NatRestricted {
		t.Fatal("a directly-bound endpoint must not be nat_restricted")
	}
}

func TestMapUnspecifiedSubstitutesV6Interfaces(t *testing.T) {
	// spec.md §4.5 step 1: an unspecified socket must be substituted with
	// every context interface, v4 and v6 alike.
	ln, err := socketutil.NewReusableTCPListener(&net.TCPAddr{IP: net.IPv6unspecified, Port: 0})
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	v6Addr := net.ParseIP("2001:db8::1")
	ctx := mappingctx.NewFromInterfaces(nil, []mappingctx.InterfaceV6{{Addr: v6Addr}})

	mapped, _, err := Map(ln, ctx)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}

	var sawV6 bool
	for _, ep := range mapped.Endpoints {
		if ep.Addr.Equal(v6Addr) {
			sawV6 = true
			if ep.NatRestricted {
				t.Fatal("a local interface endpoint must not be nat_restricted")
			}
		}
	}
	if !sawV6 {
		t.Fatalf("expected the injected v6 interface to appear as an endpoint, got %+v", mapped.Endpoints)
	}
}
