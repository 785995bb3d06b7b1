// Package echo implements the client side of the "simple echo" protocol:
// a tiny request/response exchange that lets a peer learn the address a
// remote server observed it connecting or sending from.
//
// Grounded on original_source/src/mapped_tcp_socket.rs's echo-address
// exchange and on dropbox-llama/udp.go's length-prefixed framing style
// (dropbox-llama frames its own protobuf Reflection messages with a
// uint32 length prefix before the payload); EchoExternalAddr here uses
// github.com/gogo/protobuf/proto the same way, with hand-written
// Marshal/Unmarshal methods rather than protoc-generated ones.
package echo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"github.com/gogo/protobuf/proto"
)

// Magic is the fixed 4-byte request payload a client sends to identify an
// echo request. Chosen to be unlikely to collide with casual traffic.
var Magic = [4]byte{0x4e, 0x41, 0x54, 0x21} // "NAT!"

const (
	tagV4 byte = 4
	tagV6 byte = 6
)

// EchoExternalAddr is the echo server's reply: its view of the requester's
// source address. It implements proto.Message by hand so it can be
// serialized with proto.Marshal/proto.Unmarshal without a .proto/protoc
// step.
type EchoExternalAddr struct {
	ExternalAddr net.Addr
}

func (m *EchoExternalAddr) Reset()         { *m = EchoExternalAddr{} }
func (m *EchoExternalAddr) String() string { return fmt.Sprintf("EchoExternalAddr{%v}", m.ExternalAddr) }
func (m *EchoExternalAddr) ProtoMessage()  {}

// Marshal encodes the external address as: tag byte (4 or 6), IP bytes
// (4 or 16), port (2 bytes, big-endian).
func (m *EchoExternalAddr) Marshal() ([]byte, error) {
	ip, port, err := splitAddr(m.ExternalAddr)
	if err != nil {
		return nil, err
	}
	ip4 := ip.To4()
	buf := make([]byte, 0, 1+16+2)
	if ip4 != nil {
		buf = append(buf, tagV4)
		buf = append(buf, ip4...)
	} else {
		ip16 := ip.To16()
		if ip16 == nil {
			return nil, errors.New("echo: address is neither IPv4 nor IPv6")
		}
		buf = append(buf, tagV6)
		buf = append(buf, ip16...)
	}
	portBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(portBytes, uint16(port))
	return append(buf, portBytes...), nil
}

// Unmarshal decodes bytes produced by Marshal.
func (m *EchoExternalAddr) Unmarshal(data []byte) error {
	if len(data) < 1 {
		return errors.New("echo: empty message")
	}
	tag := data[0]
	rest := data[1:]
	var ipLen int
	switch tag {
	case tagV4:
		ipLen = 4
	case tagV6:
		ipLen = 16
	default:
		return fmt.Errorf("echo: unknown address tag %d", tag)
	}
	if len(rest) != ipLen+2 {
		return fmt.Errorf("echo: malformed message, expected %d bytes, got %d", ipLen+2, len(rest))
	}
	ip := net.IP(append([]byte(nil), rest[:ipLen]...))
	port := binary.BigEndian.Uint16(rest[ipLen:])
	m.ExternalAddr = &net.UDPAddr{IP: ip, Port: int(port)}
	return nil
}

func splitAddr(a net.Addr) (net.IP, int, error) {
	switch v := a.(type) {
	case *net.UDPAddr:
		return v.IP, v.Port, nil
	case *net.TCPAddr:
		return v.IP, v.Port, nil
	default:
		host, portStr, err := net.SplitHostPort(a.String())
		if err != nil {
			return nil, 0, err
		}
		ip := net.ParseIP(host)
		if ip == nil {
			return nil, 0, fmt.Errorf("echo: cannot parse host %q", host)
		}
		var port int
		if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
			return nil, 0, err
		}
		return ip, port, nil
	}
}

// encodeFramed marshals msg with proto.Marshal and prefixes the result
// with a 4-byte big-endian length, mirroring dropbox-llama's framing of
// its own wire messages.
func encodeFramed(msg proto.Message) ([]byte, error) {
	body, err := proto.Marshal(msg)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:], body)
	return out, nil
}

// decodeFramed reads a 4-byte length prefix from framed and unmarshals the
// following body into msg.
func decodeFramed(framed []byte, msg proto.Message) error {
	if len(framed) < 4 {
		return errors.New("echo: frame too short for length prefix")
	}
	n := binary.BigEndian.Uint32(framed[:4])
	body := framed[4:]
	if uint32(len(body)) != n {
		return fmt.Errorf("echo: length prefix says %d bytes, got %d", n, len(body))
	}
	return proto.Unmarshal(body, msg)
}
