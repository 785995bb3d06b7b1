package echo

import (
	"log"
	"net"
	"os"
	"testing"
	"time"
)

func TestRequestUDPAgainstLocalServer(t *testing.T) {
	serverConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer serverConn.Close()

	logger := log.New(os.Stderr, "", 0)
	go ServeUDP(serverConn, logger)

	clientConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer clientConn.Close()

	got, err := RequestUDP(clientConn, serverConn.LocalAddr().(*net.UDPAddr), DefaultTimeout)
	if err != nil {
		t.Fatalf("RequestUDP: %v", err)
	}

	gotAddr := got.(*net.UDPAddr)
	clientAddr := clientConn.LocalAddr().(*net.UDPAddr)
	if gotAddr.Port != clientAddr.Port {
		t.Fatalf("expected observed port %d, got %d", clientAddr.Port, gotAddr.Port)
	}
}

func TestRequestUDPTimesOutAgainstSilentServer(t *testing.T) {
	silent, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer silent.Close()

	clientConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer clientConn.Close()

	_, err = RequestUDP(clientConn, silent.LocalAddr().(*net.UDPAddr), 100*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error against a server that never replies")
	}
}

func TestRequestTCPAgainstLocalServer(t *testing.T) {
	ln, err := net.ListenTCP("tcp4", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	logger := log.New(os.Stderr, "", 0)
	go ServeTCP(ln, logger)

	dial := func(network, local, remote string) (net.Conn, error) {
		return net.Dial(network, remote)
	}

	got, err := RequestTCP(dial, "", ln.Addr().String(), DefaultTimeout)
	if err != nil {
		t.Fatalf("RequestTCP: %v", err)
	}
	if got == nil {
		t.Fatal("expected a non-nil observed address")
	}
}
