package socketutil

import (
	"net"
	"testing"
)

func TestNewReusableUDPSocketBindsToRequestedPort(t *testing.T) {
	addr, err := net.ResolveUDPAddr("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	conn, err := NewReusableUDPSocket(addr)
	if err != nil {
		t.Fatalf("NewReusableUDPSocket: %v", err)
	}
	defer conn.Close()

	if conn.LocalAddr().(*net.UDPAddr).IP == nil {
		t.Fatal("expected a bound local address")
	}
}

func TestNewReusableUDPSocketsShareOnePort(t *testing.T) {
	first, err := NewReusableUDPSocket(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	boundPort := first.LocalAddr().(*net.UDPAddr).Port

	second, err := NewReusableUDPSocket(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: boundPort})
	if err != nil {
		t.Fatalf("expected second bind to the same port to succeed with SO_REUSEPORT set: %v", err)
	}
	defer second.Close()
}

func TestNewReusableTCPListenerBinds(t *testing.T) {
	addr, err := net.ResolveTCPAddr("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ln, err := NewReusableTCPListener(addr)
	if err != nil {
		t.Fatalf("NewReusableTCPListener: %v", err)
	}
	defer ln.Close()

	if ln.Addr().(*net.TCPAddr).Port == 0 {
		t.Fatal("expected a concrete bound port")
	}
}
