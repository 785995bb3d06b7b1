package echo

import (
	"bytes"
	"log"
	"net"
)

// ServeUDP runs a simple echo server on conn until it is closed: any
// datagram whose payload equals Magic gets a framed EchoExternalAddr
// reply describing its source address. Unrecognized datagrams are
// dropped. This is the reference server implementation described but not
// required by spec.md §4.3; cmd/echoserver uses it directly.
func ServeUDP(conn *net.UDPConn, logger *log.Logger) error {
	buf := make([]byte, 512)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		if n != len(Magic) || !bytes.Equal(buf[:n], Magic[:]) {
			continue
		}
		reply := &EchoExternalAddr{ExternalAddr: from}
		framed, err := encodeFramed(reply)
		if err != nil {
			logger.Printf("echo: encoding reply for %s: %s", from, err)
			continue
		}
		if _, err := conn.WriteToUDP(framed, from); err != nil {
			logger.Printf("echo: replying to %s: %s", from, err)
		}
	}
}

// ServeTCP accepts connections on ln until it is closed: any connection
// whose first 4 bytes equal Magic gets a framed EchoExternalAddr reply
// describing its remote address, then the connection is closed.
func ServeTCP(ln *net.TCPListener, logger *log.Logger) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go handleTCPEcho(conn, logger)
	}
}

func handleTCPEcho(conn net.Conn, logger *log.Logger) {
	defer conn.Close()

	req := make([]byte, len(Magic))
	if _, err := readFull(conn, req); err != nil {
		logger.Printf("echo: reading request from %s: %s", conn.RemoteAddr(), err)
		return
	}
	if !bytes.Equal(req, Magic[:]) {
		return
	}
	reply := &EchoExternalAddr{ExternalAddr: conn.RemoteAddr()}
	framed, err := encodeFramed(reply)
	if err != nil {
		logger.Printf("echo: encoding reply for %s: %s", conn.RemoteAddr(), err)
		return
	}
	if _, err := conn.Write(framed); err != nil {
		logger.Printf("echo: replying to %s: %s", conn.RemoteAddr(), err)
	}
}
