package tcpsocket

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"github.com/natpunch/natpunch-go/rendezvous"
	"github.com/natpunch/natpunch-go/socketutil"
)

// DefaultPunchTimeout is the global deadline for a TCP hole-punch
// attempt (spec.md §6), applied both as the overall deadline and as each
// connected stream's read/write timeout so no worker can leak past it.
const DefaultPunchTimeout = 20 * time.Second

// acceptBacklog mirrors the reference implementation's listen(128).
const acceptBacklog = 128

// PunchedTcpStream is an established, bidirectional byte stream plus the
// peer address it was confirmed against.
type PunchedTcpStream struct {
	Conn     net.Conn
	PeerAddr net.Addr
}

// ListenError is returned when the provided socket cannot be switched
// into listening mode.
type ListenError struct{ Err error }

func (e *ListenError) Error() string { return fmt.Sprintf("tcpsocket: listen: %s", e.Err) }

// TimeoutError is returned when neither a connector nor the acceptor
// produced a validated handshake before the global deadline. It carries
// the accumulated warnings as context.
type TimeoutError struct {
	Warnings []error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tcpsocket: hole punch timed out with %d warnings", len(e.Warnings))
}

type workerResult struct {
	stream *PunchedTcpStream
	warn   error
}

// PunchHole performs the TCP hole-punch protocol from spec.md §4.8: one
// connector goroutine per peer endpoint races against one acceptor
// goroutine accepting on mapped.Listener, each validating a 4-byte secret
// handshake; the first validated stream wins. mapped.Listener is closed
// before PunchHole returns, on success and on timeout alike.
func PunchHole(mapped *MappedTcpSocket, ours rendezvous.PrivRendezvousInfo, theirs rendezvous.PubRendezvousInfo) (*PunchedTcpStream, []error, error) {
	return punchHoleWithParams(mapped, ours, theirs, DefaultPunchTimeout)
}

func punchHoleWithParams(mapped *MappedTcpSocket, ours rendezvous.PrivRendezvousInfo, theirs rendezvous.PubRendezvousInfo, timeout time.Duration) (*PunchedTcpStream, []error, error) {
	ln := mapped.Listener
	localAddr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return nil, nil, &SocketLocalAddrError{Err: fmt.Errorf("unexpected local address type %T", ln.Addr())}
	}

	ourSecret := rendezvous.PrivSecret(ours)
	peerEndpoints, peerSecret := rendezvous.Decompose(theirs)

	results := make(chan workerResult, len(peerEndpoints)+2)

	for _, ep := range peerEndpoints {
		go runConnector(ep.TCPAddr(), localAddr, ourSecret, peerSecret, timeout, results)
	}

	shutdown := make(chan struct{})
	go runAcceptor(ln, ourSecret, peerSecret, timeout, shutdown, results)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var warnings []error
	for {
		select {
		case r := <-results:
			if r.warn != nil {
				warnings = append(warnings, r.warn)
				continue
			}
			close(shutdown)
			selfDialNudge(localAddr)
			ln.Close()
			return r.stream, warnings, nil
		case <-timer.C:
			close(shutdown)
			selfDialNudge(localAddr)
			ln.Close()
			return nil, warnings, &TimeoutError{Warnings: warnings}
		}
	}
}

// selfDialNudge dials the listener's own local address once so an
// Accept() in progress returns at once rather than at the acceptor's next
// 200 ms accept deadline (spec.md §4.8, §9).
func selfDialNudge(localAddr *net.TCPAddr) {
	conn, err := net.DialTimeout("tcp", localAddr.String(), 1*time.Second)
	if err == nil {
		conn.Close()
	}
}

func runConnector(peerAddr, localAddr *net.TCPAddr, ourSecret, peerSecret [rendezvous.SecretLen]byte, timeout time.Duration, results chan<- workerResult) {
	dialer := socketutil.NewReusableDialer(localAddr)
	conn, err := dialer.Dial("tcp", peerAddr.String())
	if err != nil {
		results <- workerResult{warn: fmt.Errorf("tcpsocket: connector: %w", err)}
		return
	}
	handshakeAndReport(conn, ourSecret, peerSecret, timeout, results)
}

func runAcceptor(ln *net.TCPListener, ourSecret, peerSecret [rendezvous.SecretLen]byte, timeout time.Duration, shutdown <-chan struct{}, results chan<- workerResult) {
	for {
		select {
		case <-shutdown:
			return
		default:
		}
		ln.SetDeadline(time.Now().Add(200 * time.Millisecond))
		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-shutdown:
				return
			default:
			}
			results <- workerResult{warn: fmt.Errorf("tcpsocket: acceptor: %w", err)}
			continue
		}
		go handshakeAndReport(conn, ourSecret, peerSecret, timeout, results)
	}
}

func handshakeAndReport(conn net.Conn, ourSecret, peerSecret [rendezvous.SecretLen]byte, timeout time.Duration, results chan<- workerResult) {
	deadline := time.Now().Add(timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		results <- workerResult{warn: fmt.Errorf("tcpsocket: setting stream deadline: %w", err)}
		return
	}
	if _, err := conn.Write(ourSecret[:]); err != nil {
		conn.Close()
		results <- workerResult{warn: fmt.Errorf("tcpsocket: writing handshake: %w", err)}
		return
	}
	recv := make([]byte, rendezvous.SecretLen)
	if _, err := readFull(conn, recv); err != nil {
		conn.Close()
		results <- workerResult{warn: fmt.Errorf("tcpsocket: reading handshake: %w", err)}
		return
	}
	if !bytes.Equal(recv, peerSecret[:]) {
		conn.Close()
		results <- workerResult{warn: fmt.Errorf("tcpsocket: invalid handshake response: %v", recv)}
		return
	}
	results <- workerResult{stream: &PunchedTcpStream{Conn: conn, PeerAddr: conn.RemoteAddr()}}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
