// Package socketutil constructs sockets bound with the platform's
// equivalent of SO_REUSEADDR and SO_REUSEPORT set before bind, so the
// hole-punch engines can bind many transient sockets to the same local
// port used by a MappedSocket's primary socket.
//
// Grounded on dropbox-llama/udp.go's SetTos/GetTos/EnableTimestamps, which
// reach for golang.org/x/sys/unix directly on the fd obtained via
// (*net.UDPConn).File() because the plain syscall package doesn't expose
// every socket option portably; SO_REUSEPORT is the same story.
package socketutil

import (
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// CreateError is returned when the raw socket cannot be created.
type CreateError struct{ Err error }

func (e *CreateError) Error() string { return fmt.Sprintf("error creating socket: %s", e.Err) }

// EnableReuseAddrError is returned when SO_REUSEADDR cannot be set.
type EnableReuseAddrError struct{ Err error }

func (e *EnableReuseAddrError) Error() string {
	return fmt.Sprintf("error enabling SO_REUSEADDR on new socket: %s", e.Err)
}

// EnableReusePortError is returned when SO_REUSEPORT cannot be set.
type EnableReusePortError struct{ Err error }

func (e *EnableReusePortError) Error() string {
	return fmt.Sprintf("error enabling SO_REUSEPORT on new socket: %s", e.Err)
}

// BindError is returned when bind() fails. Likely cause: another socket is
// already bound to this address without reuse flags set.
type BindError struct{ Err error }

func (e *BindError) Error() string {
	return fmt.Sprintf("error binding new socket to the provided address (likely a socket "+
		"was already bound to this address without SO_REUSEADDR/SO_REUSEPORT set): %s", e.Err)
}

// NewReusableUDPSocket creates a UDP socket bound to localAddr with
// SO_REUSEADDR and SO_REUSEPORT enabled.
func NewReusableUDPSocket(localAddr *net.UDPAddr) (*net.UDPConn, error) {
	network := "udp4"
	if localAddr.IP != nil && localAddr.IP.To4() == nil {
		network = "udp6"
	}
	var conn *net.UDPConn
	err := controlledListen(network, localAddr.String(), func(fd uintptr) error {
		return nil
	}, func(c net.PacketConn, e error) error {
		if e != nil {
			return e
		}
		var ok bool
		conn, ok = c.(*net.UDPConn)
		if !ok {
			return fmt.Errorf("unexpected connection type %T", c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// NewReusableTCPListener creates a TCP listener bound to localAddr with
// SO_REUSEADDR and SO_REUSEPORT enabled.
func NewReusableTCPListener(localAddr *net.TCPAddr) (*net.TCPListener, error) {
	network := "tcp4"
	if localAddr.IP != nil && localAddr.IP.To4() == nil {
		network = "tcp6"
	}
	lc := reusableListenConfig()
	ln, err := lc.Listen(nil, network, localAddr.String())
	if err != nil {
		return nil, classifyListenErr(err)
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		return nil, &CreateError{Err: fmt.Errorf("unexpected listener type %T", ln)}
	}
	return tcpLn, nil
}

// NewReusableTCPSocket creates the reuse-bound TCP socket a
// MappedTcpSocket holds. Go's net package has no bind-without-listen
// primitive, so this returns the same already-listening *net.TCPListener
// as NewReusableTCPListener: the socket accepts connections from the
// moment it is created, not only once hole punching starts.
func NewReusableTCPSocket(localAddr *net.TCPAddr) (*net.TCPListener, error) {
	return NewReusableTCPListener(localAddr)
}

func classifyListenErr(err error) error {
	return &BindError{Err: err}
}

// NewReusableDialer returns a net.Dialer that binds its local endpoint to
// localAddr with reuse flags set before connecting, so an outgoing
// mapping-server probe can share the port of an already-bound primary
// socket (spec.md §4.5's new_reusably_bound_socket, used for outgoing
// connections rather than listening).
func NewReusableDialer(localAddr *net.TCPAddr) net.Dialer {
	return net.Dialer{
		LocalAddr: localAddr,
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = setReuseOpts(fd)
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}
}

// setReuseOpts sets SO_REUSEADDR and, where available, SO_REUSEPORT on fd.
// A kernel that rejects SO_REUSEPORT as unknown (ENOPROTOOPT) leaves only
// SO_REUSEADDR set; any other failure is wrapped in its own named error so
// callers can tell which flag failed.
func setReuseOpts(fd uintptr) error {
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return &EnableReuseAddrError{Err: err}
	}
	if err := setReusePort(fd); err != nil && err != unix.ENOPROTOOPT {
		return &EnableReusePortError{Err: err}
	}
	return nil
}

func reusableListenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = setReuseOpts(fd)
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}
}

// controlledListen binds a UDP socket with reuse flags set, using
// net.ListenConfig.Control the same way reusableListenConfig does for TCP.
func controlledListen(network, address string, _ func(uintptr) error, assign func(net.PacketConn, error) error) error {
	lc := reusableListenConfig()
	pc, err := lc.ListenPacket(nil, network, address)
	return assign(pc, err)
}
