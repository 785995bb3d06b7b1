// Package udpsocket implements the UDP half of endpoint discovery and
// hole punching: MappedUdpSocket.Map discovers the externally visible
// endpoints of a bound UDP socket, and PunchHole uses those endpoints (and
// the peer's) to establish a confirmed channel.
//
// Grounded on original_source/src/mapped_udp_socket.rs (the analogous TCP
// file, mapped_tcp_socket.rs, was read in full; the UDP mapping loop
// mirrors its structure) and on dropbox-llama's TestRunner/PortGroup
// (stop channel plus rate.Limiter-throttled loop) for the punch cadence.
package udpsocket

import (
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/natpunch/natpunch-go/echo"
	"github.com/natpunch/natpunch-go/mappingctx"
	"github.com/natpunch/natpunch-go/rendezvous"
	"github.com/natpunch/natpunch-go/socketutil"
)

// DefaultEchoTimeout is the per-server deadline for a single echo
// exchange during mapping (spec.md §6).
const DefaultEchoTimeout = echo.DefaultTimeout

// MappedUdpSocket pairs a bound, unconnected UDP socket with the
// endpoints discovered for it. Destroying a MappedUdpSocket without
// punching (calling Close) closes the underlying descriptor.
type MappedUdpSocket struct {
	Socket    *net.UDPConn
	Endpoints []rendezvous.MappedSocketAddr
}

// Close releases the underlying socket. Call this if the mapped socket is
// never handed to PunchHole.
func (m *MappedUdpSocket) Close() error {
	return m.Socket.Close()
}

// SetupError is a fatal error from a step that has no meaningful degraded
// form: querying the local address of an already-bound socket.
type SetupError struct{ Err error }

func (e *SetupError) Error() string { return fmt.Sprintf("udpsocket: %s", e.Err) }

// NewMappedUdpSocket creates a reuse-bound v4 socket on 0.0.0.0:0 and maps
// it, mirroring MappedTcpSocket::new's convenience constructor (spec.md
// §4.5).
func NewMappedUdpSocket(ctx *mappingctx.Context) (*MappedUdpSocket, []error, error) {
	conn, err := socketutil.NewReusableUDPSocket(&net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, nil, err
	}
	return Map(conn, ctx)
}

// Map discovers the externally visible endpoints of conn: local
// interface addresses, IGD port mappings, and simple-echo-server
// observations, per spec.md §4.4. conn must already be bound with reuse
// flags set (see socketutil.NewReusableUDPSocket).
func Map(conn *net.UDPConn, ctx *mappingctx.Context) (*MappedUdpSocket, []error, error) {
	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, nil, &SetupError{Err: fmt.Errorf("unexpected local address type %T", conn.LocalAddr())}
	}

	var warnings []error
	var endpoints []rendezvous.MappedSocketAddr

	unspecified := localAddr.IP == nil || localAddr.IP.IsUnspecified()

	if unspecified {
		for _, iface := range ctx.InterfacesV4() {
			endpoints = append(endpoints, rendezvous.MappedSocketAddr{
				Addr: iface.Addr, Port: uint16(localAddr.Port), NatRestricted: false,
			})
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
	}

	for _, iface := range ctx.InterfacesV4() {
		if !unspecified && !iface.Addr.Equal(localAddr.IP) {
			continue
		}
		if iface.Gateway == nil {
			continue
		}
		extIP, extPort, err := iface.Gateway.AddAnyPortMapping(mappingctx.ProtocolUDP, &net.UDPAddr{
			IP: iface.Addr, Port: localAddr.Port,
		})
		if err != nil {
			warnings = append(warnings, fmt.Errorf("udpsocket: IGD mapping on %s: %w", iface.Addr, err))
			continue
		}
		endpoints = append(endpoints, rendezvous.MappedSocketAddr{Addr: extIP, Port: extPort, NatRestricted: false})
	}

	echoServers := ctx.SimpleUDPServers()
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
				probeConn, err := socketutil.NewReusableUDPSocket(localAddr)
				if err != nil {
					results <- echoResult{err: fmt.Errorf("udpsocket: echo probe socket for %s: %w", server, err)}
					return nil
				}
				defer probeConn.Close()

				observed, err := echo.RequestUDP(probeConn, server, DefaultEchoTimeout)
				if err != nil {
					results <- echoResult{err: fmt.Errorf("udpsocket: echo request to %s: %w", server, err)}
					return nil
				}
				udpObserved, ok := observed.(*net.UDPAddr)
				if !ok {
					results <- echoResult{err: fmt.Errorf("udpsocket: echo server %s returned non-UDP address", server)}
					return nil
				}
				results <- echoResult{addr: rendezvous.MappedSocketAddr{
					Addr: udpObserved.IP, Port: uint16(udpObserved.Port), NatRestricted: true,
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

	return &MappedUdpSocket{Socket: conn, Endpoints: endpoints}, warnings, nil
}
