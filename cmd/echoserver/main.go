// echoserver runs a standalone simple echo server, the out-of-band
// service spec.md §4.3 describes but leaves to the deployer: it tells a
// UDP or TCP client the source address it observed for their request.
package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/natpunch/natpunch-go/echo"
)

func main() {
	udpAddr := flag.String("udp", "0.0.0.0:3478", "address to serve the UDP echo protocol on, empty to disable")
	tcpAddr := flag.String("tcp", "0.0.0.0:3478", "address to serve the TCP echo protocol on, empty to disable")
	flag.Parse()

	logger := log.New(os.Stderr, "echoserver: ", log.LstdFlags)

	if *udpAddr != "" {
		addr, err := net.ResolveUDPAddr("udp", *udpAddr)
		if err != nil {
			log.Fatal(err)
		}
		conn, err := net.ListenUDP("udp", addr)
		if err != nil {
			log.Fatal(err)
		}
		logger.Println("serving UDP echo on", conn.LocalAddr())
		go func() {
			if err := echo.ServeUDP(conn, logger); err != nil {
				logger.Println("UDP echo server stopped:", err)
			}
		}()
	}

	if *tcpAddr != "" {
		addr, err := net.ResolveTCPAddr("tcp", *tcpAddr)
		if err != nil {
			log.Fatal(err)
		}
		ln, err := net.ListenTCP("tcp", addr)
		if err != nil {
			log.Fatal(err)
		}
		logger.Println("serving TCP echo on", ln.Addr())
		go func() {
			if err := echo.ServeTCP(ln, logger); err != nil {
				logger.Println("TCP echo server stopped:", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, unix.SIGINT, unix.SIGTERM)
	sig := <-sigChan
	logger.Printf("received %s, shutting down", sig)
}
