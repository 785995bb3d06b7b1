package main

import "testing"

func TestNewDefaultChatConfig(t *testing.T) {
	cfg, err := NewDefaultChatConfig()
	if err != nil {
		t.Fatalf("NewDefaultChatConfig: %v", err)
	}
	if cfg.Transport != TransportUDP {
		t.Fatalf("expected default transport %q, got %q", TransportUDP, cfg.Transport)
	}
	if cfg.Listen != "0.0.0.0:0" {
		t.Fatalf("unexpected default listen address %q", cfg.Listen)
	}
	if cfg.DiagAddr != "" {
		t.Fatalf("expected diagnostics API disabled by default, got %q", cfg.DiagAddr)
	}
}

func TestNewChatConfigParsesDiagAddr(t *testing.T) {
	data := []byte(`
transport: udp
listen: 0.0.0.0:0
diag_addr: 127.0.0.1:6060
`)
	cfg, err := NewChatConfig(data)
	if err != nil {
		t.Fatalf("NewChatConfig: %v", err)
	}
	if cfg.DiagAddr != "127.0.0.1:6060" {
		t.Fatalf("unexpected diag addr %q", cfg.DiagAddr)
	}
}

func TestNewChatConfigParsesEchoServers(t *testing.T) {
	data := []byte(`
transport: tcp
listen: 127.0.0.1:9000
echo_servers_udp:
  - 203.0.113.1:3478
echo_servers_tcp:
  - 203.0.113.2:3478
`)
	cfg, err := NewChatConfig(data)
	if err != nil {
		t.Fatalf("NewChatConfig: %v", err)
	}
	if cfg.Transport != TransportTCP {
		t.Fatalf("expected tcp transport, got %q", cfg.Transport)
	}
	if len(cfg.EchoServersUDP) != 1 || cfg.EchoServersUDP[0] != "203.0.113.1:3478" {
		t.Fatalf("unexpected UDP echo servers: %+v", cfg.EchoServersUDP)
	}
	if len(cfg.EchoServersTCP) != 1 || cfg.EchoServersTCP[0] != "203.0.113.2:3478" {
		t.Fatalf("unexpected TCP echo servers: %+v", cfg.EchoServersTCP)
	}
}
