// Package freeport finds unused loopback TCP ports for the engine to bind.
package freeport

import (
	"fmt"
	"net"
)

// Host is the loopback address every engine endpoint is bound to.
const Host = "127.0.0.1"

// Allocate asks the kernel for an ephemeral port on the loopback interface,
// releases it and returns its number. The port is free at the instant of
// return; nothing reserves it afterwards.
func Allocate() (int, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(Host, "0"))
	if err != nil {
		return 0, fmt.Errorf("allocate free port: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if err := ln.Close(); err != nil {
		return 0, fmt.Errorf("allocate free port: release %d: %w", port, err)
	}
	return port, nil
}
