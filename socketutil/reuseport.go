package socketutil

import "golang.org/x/sys/unix"

// setReusePort sets SO_REUSEPORT on fd. Split into its own file because
// the teacher's udp.go keeps each raw sockopt call isolated rather than
// folding them together, which also gives this one option an obvious spot
// to special-case per platform later.
func setReusePort(fd uintptr) error {
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
}
