package udpsocket

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/natpunch/natpunch-go/rendezvous"
)

// DefaultPunchCadence is how often the handshake datagram is resent to
// every peer endpoint while probing (spec.md §4.7; an open question
// left untuned by the reference material, defaulted here as recommended).
const DefaultPunchCadence = 200 * time.Millisecond

// DefaultPunchTimeout is the global deadline for a UDP hole-punch
// attempt (spec.md §6).
const DefaultPunchTimeout = 20 * time.Second

// AckBurstSize is how many acknowledgment datagrams are sent to the
// confirmed peer address once a match is found, raising the odds the peer
// also observes a match before its own timeout (spec.md §4.7).
const AckBurstSize = 5

// PunchedUdpSocket is an unconnected UDP socket plus the single peer
// address confirmed by the handshake. Application code filters incoming
// traffic on PeerAddr.
type PunchedUdpSocket struct {
	Socket   *net.UDPConn
	PeerAddr *net.UDPAddr
}

// TimeoutError is returned when no matching handshake arrived before the
// global deadline. It carries the accumulated warnings as context.
type TimeoutError struct {
	Warnings []error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("udpsocket: hole punch timed out with %d warnings", len(e.Warnings))
}

// InvalidResponse is a non-fatal warning recorded when a datagram arrives
// on the punching socket that doesn't carry the peer secret we expect
// (spec.md §8 scenario 4, "wrong secret").
type InvalidResponse struct {
	Data []byte
}

func (e *InvalidResponse) Error() string {
	return fmt.Sprintf("udpsocket: invalid handshake response: %v", e.Data)
}

// PunchHole performs the UDP hole-punch protocol described in spec.md
// §4.7: it sends an 8-byte handshake datagram (our secret || expected
// peer secret) to every endpoint in theirs at DefaultPunchCadence while
// concurrently reading for a matching reply, and returns as soon as one
// endpoint's reply validates.
func PunchHole(mapped *MappedUdpSocket, ours rendezvous.PrivRendezvousInfo, theirs rendezvous.PubRendezvousInfo) (*PunchedUdpSocket, []error, error) {
	return punchHoleWithParams(mapped, ours, theirs, DefaultPunchCadence, DefaultPunchTimeout)
}

func punchHoleWithParams(mapped *MappedUdpSocket, ours rendezvous.PrivRendezvousInfo, theirs rendezvous.PubRendezvousInfo, cadence, timeout time.Duration) (*PunchedUdpSocket, []error, error) {
	conn := mapped.Socket
	peerEndpoints, peerSecret := rendezvous.Decompose(theirs)
	ourSecret := rendezvous.PrivSecret(ours)

	handshake := make([]byte, 0, 8)
	handshake = append(handshake, ourSecret[:]...)
	handshake = append(handshake, peerSecret[:]...)

	peerAddrs := make([]*net.UDPAddr, 0, len(peerEndpoints))
	for _, ep := range peerEndpoints {
		peerAddrs = append(peerAddrs, ep.UDPAddr())
	}

	deadline := time.Now().Add(timeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, nil, &SetupError{Err: err}
	}

	type matchResult struct {
		peer *net.UDPAddr
		err  error
	}
	matchCh := make(chan matchResult, 1)
	warnCh := make(chan error, 64)
	stopSend := make(chan struct{})
	limiter := rate.NewLimiter(rate.Every(cadence), 1)
	go sendLoop(conn, handshake, peerAddrs, limiter, stopSend)

	go func() {
		buf := make([]byte, 512)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				matchCh <- matchResult{err: err}
				return
			}
			if n < 4 || !bytes.Equal(buf[:4], peerSecret[:]) {
				data := append([]byte(nil), buf[:n]...)
				select {
				case warnCh <- &InvalidResponse{Data: data}:
				default:
					// Warning buffer full; drop it rather than block the
					// receive loop. The call site still sees the others.
				}
				continue
			}
			matchCh <- matchResult{peer: from}
			return
		}
	}()

	var warnings []error
	r := <-matchCh
	close(stopSend)
	warnings = append(warnings, drainWarnings(warnCh)...)
	if r.err != nil {
		if isTimeout(r.err) {
			return nil, warnings, &TimeoutError{Warnings: warnings}
		}
		return nil, warnings, r.err
	}
	sendAckBurst(conn, handshake, r.peer)
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		warnings = append(warnings, fmt.Errorf("udpsocket: clearing read deadline: %w", err))
	}
	return &PunchedUdpSocket{Socket: conn, PeerAddr: r.peer}, warnings, nil
}

// sendLoop resends handshake to every peer at the rate limiter's cadence,
// using Reserve/Delay rather than Wait so a stop signal during the delay
// is noticed immediately instead of being stuck inside the rate limiter.
func sendLoop(conn *net.UDPConn, handshake []byte, peers []*net.UDPAddr, limiter *rate.Limiter, stop <-chan struct{}) {
	for {
		reservation := limiter.Reserve()
		delay := reservation.Delay()
		timer := time.NewTimer(delay)
		select {
		case <-stop:
			timer.Stop()
			reservation.Cancel()
			return
		case <-timer.C:
			for _, peer := range peers {
				conn.WriteToUDP(handshake, peer)
			}
		}
	}
}

func sendAckBurst(conn *net.UDPConn, handshake []byte, peer *net.UDPAddr) {
	for i := 0; i < AckBurstSize; i++ {
		conn.WriteToUDP(handshake, peer)
	}
}

// drainWarnings collects everything currently buffered on ch without
// blocking, for use once the punch loop has already decided to return.
func drainWarnings(ch <-chan error) []error {
	var out []error
	for {
		select {
		case w := <-ch:
			out = append(out, w)
		default:
			return out
		}
	}
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	t, ok := err.(timeout)
	return ok && t.Timeout()
}
