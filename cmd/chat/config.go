package main

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

// A sensible default configuration for the chat demo in YAML.
var defaultChatConfigYAML = `
transport:       udp
listen:          0.0.0.0:0
echo_servers_udp: []
echo_servers_tcp: []
diag_addr:       ""
`

// TransportConfig names which hole-punch engine the demo drives.
type TransportConfig string

const (
	TransportUDP TransportConfig = "udp"
	TransportTCP TransportConfig = "tcp"
)

// ChatConfig describes the bootstrap configuration for the chat demo:
// which transport to punch over and any simple echo servers to register
// with the mapping context. Listen is parsed but main does not use it:
// both transports always bind 0.0.0.0:0.
type ChatConfig struct {
	Transport      TransportConfig `yaml:"transport"`
	Listen         string          `yaml:"listen"`
	EchoServersUDP []string        `yaml:"echo_servers_udp"`
	EchoServersTCP []string        `yaml:"echo_servers_tcp"`

	// DiagAddr, if non-empty, is the address the diagnostics HTTP API
	// listens on (see diag.API). Left empty, the demo still records
	// outcomes into an in-process diag.Recorder but serves nothing.
	DiagAddr string `yaml:"diag_addr"`
}

// NewDefaultChatConfig returns the default chat demo configuration.
func NewDefaultChatConfig() (*ChatConfig, error) {
	return NewChatConfig([]byte(defaultChatConfigYAML))
}

// NewChatConfig parses a YAML-encoded ChatConfig.
func NewChatConfig(data []byte) (*ChatConfig, error) {
	cc := &ChatConfig{}
	if err := yaml.Unmarshal(data, cc); err != nil {
		return cc, fmt.Errorf("failed to parse chat config: %s", err)
	}
	return cc, nil
}
