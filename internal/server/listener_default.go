//go:build !linux && !darwin

// Package server provides network listener functionality
package server

import (
	"net"

	"github.com/m-mizutani/goerr/v2"
)

// GetListener listens on addr. Socket activation is not available on this
// platform.
func GetListener(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, goerr.Wrap(err, "listen", goerr.V("addr", addr))
	}
	return ln, nil
}
