// chat is a demonstration program: it maps a local socket, exchanges
// rendezvous info with a peer by having the user paste it by hand, punches
// a hole to the peer, and then relays lines typed on stdin in both
// directions. It exists to exercise the library end-to-end, not as a
// production chat client.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/natpunch/natpunch-go/diag"
	"github.com/natpunch/natpunch-go/mappingctx"
	"github.com/natpunch/natpunch-go/rendezvous"
	"github.com/natpunch/natpunch-go/tcpsocket"
	"github.com/natpunch/natpunch-go/udpsocket"
)

// diagSnapshotInterval is how often the recorder folds buffered outcomes
// into the snapshot the warnings API serves.
const diagSnapshotInterval = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a chat config YAML file (defaults built in if omitted)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	recorder := diag.NewRecorder(diagSnapshotInterval)
	recorder.Run()
	defer recorder.Stop()

	if cfg.DiagAddr != "" {
		api := diag.NewAPI(recorder, cfg.DiagAddr)
		api.Run()
		defer api.Stop()
		log.Println("serving diagnostics on", cfg.DiagAddr)
	}

	ctx, warnings := mappingctx.New()
	for _, w := range warnings {
		log.Println("warning creating mapping context:", w)
	}

	registerEchoServers(ctx, cfg)

	switch cfg.Transport {
	case TransportTCP:
		runTCP(ctx, recorder)
	default:
		runUDP(ctx, recorder)
	}
}

// recordOutcome logs each warning (as the demo always has) and also feeds
// the outcome to recorder so it's visible through the diag warnings API.
func recordOutcome(recorder *diag.Recorder, operation string, warnings []error, err error) {
	asStrings := make([]string, len(warnings))
	for i, w := range warnings {
		log.Printf("warning %s: %s", operation, w)
		asStrings[i] = w.Error()
	}
	recorder.Record(diag.Outcome{
		Operation: operation,
		Warnings:  asStrings,
		Success:   err == nil,
		At:        time.Now(),
	})
}

func loadConfig(path string) (*ChatConfig, error) {
	if path == "" {
		return NewDefaultChatConfig()
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return NewChatConfig(data)
}

func registerEchoServers(ctx *mappingctx.Context, cfg *ChatConfig) {
	var udpAddrs []*net.UDPAddr
	for _, s := range cfg.EchoServersUDP {
		addr, err := net.ResolveUDPAddr("udp", s)
		if err != nil {
			log.Println("skipping invalid UDP echo server", s, err)
			continue
		}
		udpAddrs = append(udpAddrs, addr)
	}
	if len(udpAddrs) > 0 {
		ctx.AddSimpleUDPServers(udpAddrs)
	}

	var tcpAddrs []*net.TCPAddr
	for _, s := range cfg.EchoServersTCP {
		addr, err := net.ResolveTCPAddr("tcp", s)
		if err != nil {
			log.Println("skipping invalid TCP echo server", s, err)
			continue
		}
		tcpAddrs = append(tcpAddrs, addr)
	}
	if len(tcpAddrs) > 0 {
		ctx.AddSimpleTCPServers(tcpAddrs)
	}
}

func runUDP(ctx *mappingctx.Context, recorder *diag.Recorder) {
	mapped, warnings, err := udpsocket.NewMappedUdpSocket(ctx)
	recordOutcome(recorder, "udp-map", warnings, err)
	if err != nil {
		log.Fatal("error mapping socket: ", err)
	}
	fmt.Println("Created a socket. Its endpoints are:", mapped.Endpoints)

	priv, pub, err := rendezvous.Gen(mapped.Endpoints)
	if err != nil {
		log.Fatal("error generating rendezvous info: ", err)
	}

	theirPub := exchangeRendezvousInfo(pub)

	punched, warnings, err := udpsocket.PunchHole(mapped, priv, theirPub)
	recordOutcome(recorder, "udp-punch", warnings, err)
	if err != nil {
		log.Fatal("error punching hole: ", err)
	}

	fmt.Println("Connected! You can now chat to your buddy. ^D to exit.")
	go recvLoopUDP(punched)
	sendLoopUDP(punched)
}

func recvLoopUDP(p *udpsocket.PunchedUdpSocket) {
	buf := make([]byte, 1024)
	for {
		n, from, err := p.Socket.ReadFromUDP(buf)
		if err != nil {
			log.Println("error receiving:", err)
			continue
		}
		if from.String() != p.PeerAddr.String() {
			continue
		}
		fmt.Println(string(buf[:n]))
	}
}

func sendLoopUDP(p *udpsocket.PunchedUdpSocket) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if _, err := p.Socket.WriteToUDP(scanner.Bytes(), p.PeerAddr); err != nil {
			log.Println("error sending:", err)
		}
	}
	fmt.Println("Exiting.")
}

func runTCP(ctx *mappingctx.Context, recorder *diag.Recorder) {
	mapped, warnings, err := tcpsocket.NewMappedTcpSocket(ctx)
	recordOutcome(recorder, "tcp-map", warnings, err)
	if err != nil {
		log.Fatal("error mapping socket: ", err)
	}
	fmt.Println("Created a socket. Its endpoints are:", mapped.Endpoints)

	priv, pub, err := rendezvous.Gen(mapped.Endpoints)
	if err != nil {
		log.Fatal("error generating rendezvous info: ", err)
	}

	theirPub := exchangeRendezvousInfo(pub)

	punched, warnings, err := tcpsocket.PunchHole(mapped, priv, theirPub)
	recordOutcome(recorder, "tcp-punch", warnings, err)
	if err != nil {
		log.Fatal("error punching hole: ", err)
	}

	fmt.Println("Connected! You can now chat to your buddy. ^D to exit.")
	go recvLoopTCP(punched)
	sendLoopTCP(punched)
}

func recvLoopTCP(p *tcpsocket.PunchedTcpStream) {
	scanner := bufio.NewScanner(p.Conn)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}
}

func sendLoopTCP(p *tcpsocket.PunchedTcpStream) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if _, err := p.Conn.Write(append(scanner.Bytes(), '\n')); err != nil {
			log.Println("error sending:", err)
		}
	}
	fmt.Println("Exiting.")
}

// exchangeRendezvousInfo prints our public rendezvous info for the user to
// send to their peer out-of-band, then reads the peer's info pasted back
// in on one line as JSON (spec.md §6's recommended wire encoding).
func exchangeRendezvousInfo(pub rendezvous.PubRendezvousInfo) rendezvous.PubRendezvousInfo {
	encoded, err := json.Marshal(pub)
	if err != nil {
		log.Fatal("error encoding our rendezvous info: ", err)
	}
	fmt.Println("")
	fmt.Println("Your public rendezvous info is:")
	fmt.Println("")
	fmt.Println(string(encoded))
	fmt.Println("")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Println("Paste the peer's pub rendezvous info below and hit return. The peer must")
		fmt.Println("initiate their side of the connection at the same time.")
		fmt.Println("")
		if !scanner.Scan() {
			fmt.Println("Exiting.")
			os.Exit(0)
		}
		line := strings.TrimSpace(scanner.Text())
		var theirPub rendezvous.PubRendezvousInfo
		if err := json.Unmarshal([]byte(line), &theirPub); err != nil {
			fmt.Println("Error decoding peer's rendezvous info:", err)
			fmt.Println("Make sure to paste their complete info all on one line.")
			continue
		}
		return theirPub
	}
}
