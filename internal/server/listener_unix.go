//go:build linux || darwin

// Package server provides network listener functionality
package server

import (
	"net"
	"os"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
)

// listenFDsStart is SD_LISTEN_FDS_START.
const listenFDsStart = 3

// GetListener supports systemd socket activation when SOCKET_ACTIVATION=1:
// the first inherited descriptor is used if LISTEN_FDS and LISTEN_PID name
// this process. Otherwise it listens on addr.
func GetListener(addr string) (net.Listener, error) {
	if os.Getenv("SOCKET_ACTIVATION") != "1" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, goerr.Wrap(err, "listen", goerr.V("addr", addr))
		}
		return ln, nil
	}
	if os.Getenv("LISTEN_FDS") != "1" {
		return nil, goerr.New("socket activation requested but LISTEN_FDS is not 1")
	}
	if pid, err := strconv.Atoi(os.Getenv("LISTEN_PID")); err != nil || pid != os.Getpid() {
		return nil, goerr.New("socket activation requested but LISTEN_PID does not match",
			goerr.V("listen_pid", os.Getenv("LISTEN_PID")))
	}
	f := os.NewFile(uintptr(listenFDsStart), "listener")
	if f == nil {
		return nil, goerr.New("inherited descriptor is not open")
	}
	ln, err := net.FileListener(f)
	if err != nil {
		return nil, goerr.Wrap(err, "wrap inherited descriptor")
	}
	return ln, nil
}
