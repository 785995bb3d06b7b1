package mappingctx

import (
	"net"
	"testing"
)

func TestNewNeverFails(t *testing.T) {
	ctx, warnings := New()
	if ctx == nil {
		t.Fatal("New returned a nil context")
	}
	// IGD probing may or may not find a gateway in the test environment,
	// but New must always hand back a usable context either way.
	t.Logf("got %d warnings", len(warnings))
}

func TestAddSimpleUDPServersAppends(t *testing.T) {
	ctx, _ := New()
	addr1, _ := net.ResolveUDPAddr("udp", "127.0.0.1:9000")
	addr2, _ := net.ResolveUDPAddr("udp", "127.0.0.1:9001")

	ctx.AddSimpleUDPServers([]*net.UDPAddr{addr1})
	ctx.AddSimpleUDPServers([]*net.UDPAddr{addr2})

	got := ctx.SimpleUDPServers()
	if len(got) != 2 {
		t.Fatalf("expected 2 registered servers, got %d", len(got))
	}
}

func TestAddSimpleUDPServersDuplicatesRetained(t *testing.T) {
	// Calling AddSimpleUDPServers twice with the same address set should
	// leave the context functionally equivalent: duplicates at most
	// double worker count, per spec.md §8.
	ctx, _ := New()
	addr, _ := net.ResolveUDPAddr("udp", "127.0.0.1:9000")

	ctx.AddSimpleUDPServers([]*net.UDPAddr{addr})
	ctx.AddSimpleUDPServers([]*net.UDPAddr{addr})

	got := ctx.SimpleUDPServers()
	if len(got) != 2 {
		t.Fatalf("expected 2 entries (duplicates retained), got %d", len(got))
	}
	for _, a := range got {
		if a.String() != addr.String() {
			t.Errorf("unexpected server address %v", a)
		}
	}
}

func TestInterfacesV4PopulatedOnce(t *testing.T) {
	ctx, _ := New()
	first := ctx.InterfacesV4()
	second := ctx.InterfacesV4()
	if len(first) != len(second) {
		t.Fatal("interface list changed between calls; it should be fixed at construction")
	}
}
