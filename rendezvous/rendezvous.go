// Package rendezvous builds and decomposes the bundle of candidate
// endpoints and shared secret that two peers exchange out-of-band before
// hole punching.
//
// Grounded on original_source/src/mapped_tcp_socket.rs's
// PrivRendezvousInfo/PubRendezvousInfo split, rendered as two small Go
// structs rather than a Rust enum pair; the secret is drawn from
// crypto/rand the way dropbox-llama draws request IDs from
// github.com/satori/go.uuid elsewhere in this module (a correlation
// nonce, not a cryptographic key, but still worth a strong source).
package rendezvous

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net"
)

// SecretLen is the width of the handshake nonce exchanged between peers.
const SecretLen = 4

// MappedSocketAddr is one externally visible endpoint discovered for a
// mapped socket.
type MappedSocketAddr struct {
	Addr          net.IP `json:"addr"`
	Port          uint16 `json:"port"`
	NatRestricted bool   `json:"nat_restricted"`
}

func (a MappedSocketAddr) String() string {
	return fmt.Sprintf("%s:%d", a.Addr, a.Port)
}

// UDPAddr renders this endpoint as a *net.UDPAddr.
func (a MappedSocketAddr) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: a.Addr, Port: int(a.Port)}
}

// TCPAddr renders this endpoint as a *net.TCPAddr.
func (a MappedSocketAddr) TCPAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: a.Addr, Port: int(a.Port)}
}

// PrivRendezvousInfo is the half of a rendezvous bundle that never leaves
// the local process.
type PrivRendezvousInfo struct {
	secret [SecretLen]byte
}

// PubRendezvousInfo is the half of a rendezvous bundle sent to the peer.
type PubRendezvousInfo struct {
	Endpoints []MappedSocketAddr `json:"endpoints"`
	Secret    [SecretLen]byte    `json:"secret"`
}

// Gen draws a fresh secret and builds the matching Priv/Pub pair for the
// given endpoint list. Both halves are produced atomically from one
// endpoint list and share the same secret.
func Gen(endpoints []MappedSocketAddr) (PrivRendezvousInfo, PubRendezvousInfo, error) {
	var secret [SecretLen]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return PrivRendezvousInfo{}, PubRendezvousInfo{}, fmt.Errorf("rendezvous: generating secret: %w", err)
	}
	priv := PrivRendezvousInfo{secret: secret}
	pub := PubRendezvousInfo{
		Endpoints: append([]MappedSocketAddr(nil), endpoints...),
		Secret:    secret,
	}
	return priv, pub, nil
}

// Decompose splits a PubRendezvousInfo into its endpoint list and secret.
func Decompose(pub PubRendezvousInfo) ([]MappedSocketAddr, [SecretLen]byte) {
	endpoints := append([]MappedSocketAddr(nil), pub.Endpoints...)
	return endpoints, pub.Secret
}

// PrivSecret returns the secret held by the private half of a rendezvous
// pair.
func PrivSecret(priv PrivRendezvousInfo) [SecretLen]byte {
	return priv.secret
}

// MarshalJSON and UnmarshalJSON on PubRendezvousInfo round-trip the wire
// encoding recommended by spec.md §6: {"endpoints": [...], "secret": [...]}.
func (p PubRendezvousInfo) MarshalJSON() ([]byte, error) {
	aux := struct {
		Endpoints []MappedSocketAddr `json:"endpoints"`
		Secret    []byte             `json:"secret"`
	}{
		Endpoints: p.Endpoints,
		Secret:    p.Secret[:],
	}
	return json.Marshal(aux)
}

func (p *PubRendezvousInfo) UnmarshalJSON(data []byte) error {
	var aux struct {
		Endpoints []MappedSocketAddr `json:"endpoints"`
		Secret    []byte             `json:"secret"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Secret) != SecretLen {
		return fmt.Errorf("rendezvous: expected a %d-byte secret, got %d", SecretLen, len(aux.Secret))
	}
	p.Endpoints = aux.Endpoints
	copy(p.Secret[:], aux.Secret)
	return nil
}
