package echo

import (
	"net"
	"testing"
)

func TestEchoExternalAddrRoundTripV4(t *testing.T) {
	orig := &EchoExternalAddr{ExternalAddr: &net.UDPAddr{IP: net.IPv4(203, 0, 113, 7), Port: 4242}}

	data, err := orig.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded EchoExternalAddr
	if err := decoded.Unmarshal(data); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	got := decoded.ExternalAddr.(*net.UDPAddr)
	if !got.IP.Equal(net.IPv4(203, 0, 113, 7)) || got.Port != 4242 {
		t.Fatalf("round trip mismatch: got %v", got)
	}
}

func TestEchoExternalAddrRoundTripV6(t *testing.T) {
	ip := net.ParseIP("2001:db8::1")
	orig := &EchoExternalAddr{ExternalAddr: &net.UDPAddr{IP: ip, Port: 9}}

	data, err := orig.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if data[0] != tagV6 {
		t.Fatalf("expected v6 tag, got %d", data[0])
	}

	var decoded EchoExternalAddr
	if err := decoded.Unmarshal(data); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	got := decoded.ExternalAddr.(*net.UDPAddr)
	if !got.IP.Equal(ip) || got.Port != 9 {
		t.Fatalf("round trip mismatch: got %v", got)
	}
}

func TestEchoExternalAddrUnmarshalRejectsMalformed(t *testing.T) {
	var decoded EchoExternalAddr
	if err := decoded.Unmarshal([]byte{tagV4, 1, 2, 3}); err == nil {
		t.Fatal("expected an error decoding a truncated v4 message")
	}
}

func TestFramedRoundTrip(t *testing.T) {
	orig := &EchoExternalAddr{ExternalAddr: &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 1}}
	framed, err := encodeFramed(orig)
	if err != nil {
		t.Fatalf("encodeFramed: %v", err)
	}

	var decoded EchoExternalAddr
	if err := decodeFramed(framed, &decoded); err != nil {
		t.Fatalf("decodeFramed: %v", err)
	}
	got := decoded.ExternalAddr.(*net.UDPAddr)
	if !got.IP.Equal(net.IPv4(10, 0, 0, 1)) || got.Port != 1 {
		t.Fatalf("round trip mismatch: got %v", got)
	}
}
