package tcpsocket

import (
	"net"
	"testing"
	"time"

	"github.com/natpunch/natpunch-go/rendezvous"
	"github.com/natpunch/natpunch-go/socketutil"
)

func bindLoopback(t *testing.T) *net.TCPListener {
	t.Helper()
	ln, err := socketutil.NewReusableTCPListener(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatal(err)
	}
	return ln
}

func TestPunchHoleConnectorWins(t *testing.T) {
	lnA := bindLoopback(t)
	defer lnA.Close()
	lnB := bindLoopback(t)
	defer lnB.Close()

	addrA := lnA.Addr().(*net.TCPAddr)
	addrB := lnB.Addr().(*net.TCPAddr)

	// Peer A knows about B's endpoint; peer B knows about none, so A's
	// connector must reach B's acceptor (spec.md §8 scenario 2).
	privA, pubA, err := rendezvous.Gen(nil)
	if err != nil {
		t.Fatal(err)
	}
	privB, pubB, err := rendezvous.Gen([]rendezvous.MappedSocketAddr{{Addr: addrB.IP, Port: uint16(addrB.Port)}})
	if err != nil {
		t.Fatal(err)
	}

	mappedA := &MappedTcpSocket{Listener: lnA}
	mappedB := &MappedTcpSocket{Listener: lnB}

	type outcome struct {
		stream *PunchedTcpStream
		err    error
	}
	resultsA := make(chan outcome, 1)
	resultsB := make(chan outcome, 1)

	// A has B's address as its peer list; B has none (empty peer list,
	// spec.md §8's "must still listen and accept" boundary case). B still
	// needs A's secret to validate the handshake, so it gets pubA, whose
	// endpoint list is empty.
	go func() {
		s, _, err := punchHoleWithParams(mappedA, privA, pubB, 5*time.Second)
		resultsA <- outcome{stream: s, err: err}
	}()
	go func() {
		s, _, err := punchHoleWithParams(mappedB, privB, pubA, 5*time.Second)
		resultsB <- outcome{stream: s, err: err}
	}()

	outA := <-resultsA
	outB := <-resultsB

	if outA.err != nil {
		t.Fatalf("peer A punch failed: %v", outA.err)
	}
	if outB.err != nil {
		t.Fatalf("peer B punch failed: %v", outB.err)
	}
	if outA.stream == nil || outB.stream == nil {
		t.Fatal("expected both sides to return a connected stream")
	}
}

func emptyPub() rendezvous.PubRendezvousInfo {
	_, pub, _ := rendezvous.Gen(nil)
	return pub
}

func TestPunchHoleTimeoutAgainstUnreachablePeer(t *testing.T) {
	ln := bindLoopback(t)
	defer ln.Close()

	deadLn := bindLoopback(t)
	deadAddr := deadLn.Addr().(*net.TCPAddr)
	deadLn.Close()

	priv, _, err := rendezvous.Gen(nil)
	if err != nil {
		t.Fatal(err)
	}
	_, pub, err := rendezvous.Gen([]rendezvous.MappedSocketAddr{{Addr: deadAddr.IP, Port: uint16(deadAddr.Port)}})
	if err != nil {
		t.Fatal(err)
	}

	mapped := &MappedTcpSocket{Listener: ln}
	_, _, err = punchHoleWithParams(mapped, priv, pub, 300*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error when nothing validates a handshake")
	}
	if _, ok := err.(*TimeoutError); !ok {
		t.Fatalf("expected a *TimeoutError, got %T: %v", err, err)
	}
}
