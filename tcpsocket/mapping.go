// Package tcpsocket implements the TCP half of endpoint discovery and
// hole punching, mirroring udpsocket's shape but with connect/accept
// instead of datagram exchange.
//
// Grounded directly on original_source/src/mapped_tcp_socket.rs: the
// MappedTcpSocket.map local-endpoint/IGD/echo-worker structure, and
// tcp_punch_hole's connector/acceptor/timeout-sentinel fan-in over one
// channel with the self-dial listener shutdown nudge.
package tcpsocket

import (
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/natpunch/natpunch-go/echo"
	"github.com/natpunch/natpunch-go/mappingctx"
	"github.com/natpunch/natpunch-go/rendezvous"
	"github.com/natpunch/natpunch-go/socketutil"
)

// MappedTcpSocket pairs a bound TCP socket, already listening (see
// socketutil.NewReusableTCPSocket), with the endpoints discovered for it. Destroying a MappedTcpSocket without
// punching (calling Close) closes the underlying descriptor.
type MappedTcpSocket struct {
	Listener  *net.TCPListener
	Endpoints []rendezvous.MappedSocketAddr
}

// Close releases the underlying socket. Call this if the mapped socket is
// never handed to PunchHole.
func (m *MappedTcpSocket) Close() error {
	return m.Listener.Close()
}

// SocketLocalAddrError is returned when the local address of the provided
// socket cannot be determined (have you called bind() on it?).
type SocketLocalAddrError struct{ Err error }

func (e *SocketLocalAddrError) Error() string {
	return fmt.Sprintf("tcpsocket: error getting local address of socket (have you called bind()?): %s", e.Err)
}

// NewMappedTcpSocket creates a reuse-bound v4 socket on 0.0.0.0:0 and maps
// it, per spec.md §4.5's MappedTcpSocket::new convenience constructor.
func NewMappedTcpSocket(ctx *mappingctx.Context) (*MappedTcpSocket, []error, error) {
	ln, err := socketutil.NewReusableTCPSocket(&net.TCPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, nil, err
	}
	return Map(ln, ctx)
}

// Map discovers the externally visible endpoints of ln: local interface
// addresses, IGD port mappings, and simple-echo-server observations, per
// spec.md §4.5. ln must already be bound with reuse flags set (see
// socketutil.NewReusableTCPListener, which also puts it in listening mode).
func Map(ln *net.TCPListener, ctx *mappingctx.Context) (*MappedTcpSocket, []error, error) {
	localAddr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return nil, nil, &SocketLocalAddrError{Err: fmt.Errorf("unexpected local address type %T", ln.Addr())}
	}

	var warnings []error
	var endpoints []rendezvous.MappedSocketAddr

	unspecified := localAddr.IP == nil || localAddr.IP.IsUnspecified()

	if unspecified {
		for _, iface := range ctx.InterfacesV4() {
			endpoints = append(endpoints, rendezvous.MappedSocketAddr{
				Addr: iface.Addr, Port: uint16(localAddr.Port), NatRestricted: false,
			})
			if iface.Gateway == nil {
				continue
			}
			extIP, extPort, err := iface.Gateway.AddAnyPortMapping(mappingctx.ProtocolTCP, &net.UDPAddr{
				IP: iface.Addr, Port: localAddr.Port,
			})
			if err != nil {
				warnings = append(warnings, fmt.Errorf("tcpsocket: IGD mapping on %s: %w", iface.Addr, err))
				continue
			}
			endpoints = append(endpoints, rendezvous.MappedSocketAddr{Addr: extIP, Port: extPort, NatRestricted: false})
		}
		for _, iface := range ctx.InterfacesV6() {
			endpoints = append(endpoints, rendezvous.MappedSocketAddr{
				Addr: iface.Addr, Port: uint16(localAddr.Port), NatRestricted: false,
			})
		}
	} else {
		endpoints = append(endpoints, rendezvous.MappedSocketAddr{
			Addr: localAddr.IP, Port: uint16(localAddr.Port), NatRestricted: false,
		})
		for _, iface := range ctx.InterfacesV4() {
			if !iface.Addr.Equal(localAddr.IP) || iface.Gateway == nil {
				continue
			}
			extIP, extPort, err := iface.Gateway.AddAnyPortMapping(mappingctx.ProtocolTCP, &net.UDPAddr{
				IP: iface.Addr, Port: localAddr.Port,
			})
			if err != nil {
				warnings = append(warnings, fmt.Errorf("tcpsocket: IGD mapping on %s: %w", iface.Addr, err))
				continue
			}
			endpoints = append(endpoints, rendezvous.MappedSocketAddr{Addr: extIP, Port: extPort, NatRestricted: false})
			break
		}
	}

	echoServers := ctx.SimpleTCPServers()
	if len(echoServers) > 0 {
		type echoResult struct {
			addr rendezvous.MappedSocketAddr
			err  error
		}
		results := make(chan echoResult, len(echoServers))
		var eg errgroup.Group
		for _, server := range echoServers {
			server := server
			eg.Go(func() error {
				dial := func(network, local, remote string) (net.Conn, error) {
					d := socketutil.NewReusableDialer(localAddr)
					return d.Dial(network, remote)
				}
				observed, err := echo.RequestTCP(dial, localAddr.String(), server.String(), echo.DefaultTimeout)
				if err != nil {
					results <- echoResult{err: fmt.Errorf("tcpsocket: echo request to %s: %w", server, err)}
					return nil
				}
				tcpObserved, ok := observed.(*net.UDPAddr)
				if !ok {
					results <- echoResult{err: fmt.Errorf("tcpsocket: echo server %s returned unexpected address type", server)}
					return nil
				}
				results <- echoResult{addr: rendezvous.MappedSocketAddr{
					Addr: tcpObserved.IP, Port: uint16(tcpObserved.Port), NatRestricted: true,
				}}
				return nil
			})
		}
		go func() {
			eg.Wait()
			close(results)
		}()
		for r := range results {
			if r.err != nil {
				warnings = append(warnings, r.err)
				continue
			}
			endpoints = append(endpoints, r.addr)
		}
	}

	return &MappedTcpSocket{Listener: ln, Endpoints: endpoints}, warnings, nil
}
