// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package rpc carries the admin IPC transport for the console package: a
// Unix-domain socket (named pipe on Windows, see ipc_windows.go) that
// reads line-oriented admin commands from each connection and writes back
// one line of response per command. It deliberately does not reimplement go-ethereum's
// full JSON-RPC codec/subscription machinery (OptionMethodInvocation,
// OptionSubscriptions, the jsre/web3ext bridging) since the admin surface
// here is the handful of Handler methods in console.AdminAPI, not an
// Ethereum-shaped JSON-RPC namespace.
package rpc

import (
	"bufio"
	"context"
	"fmt"
	"net"

	"github.com/ironforge-pool/poolcoordinator/internal/log"
)

// Handler answers one admin command line and returns the response line to
// write back to the client.
type Handler interface {
	HandleLine(line string) string
}

// ServeListener accepts connections on l, handing each to handler one line
// at a time, in the same accept-loop-with-temporary-error-retry shape as
// the teacher's Server.ServeListener.
func ServeListener(l net.Listener, handler Handler) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				log.Warn("IPC accept error", "err", err)
				continue
			}
			return err
		}
		log.Trace("IPC accepted connection", "remote", conn.RemoteAddr())
		go serveConn(conn, handler)
	}
}

func serveConn(conn net.Conn, handler Handler) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		resp := handler.HandleLine(scanner.Text())
		if _, err := fmt.Fprintln(conn, resp); err != nil {
			log.Debug("IPC write error", "err", err)
			return
		}
	}
}

// DialIPC connects to endpoint, the full path to a Unix socket on POSIX
// platforms or a named-pipe identifier on Windows (see ipc_windows.go's
// platform-specific dialer).
func DialIPC(ctx context.Context, endpoint string) (net.Conn, error) {
	return dialIPC(ctx, endpoint)
}
