//go:build windows

package rpc

import (
	"context"
	"net"

	npipe "gopkg.in/natefinch/npipe.v2"
)

// dialIPC connects to a named pipe endpoint on Windows, where Unix-domain
// sockets are unavailable; this is the teacher's declared (but in the
// retrieved files unused) gopkg.in/natefinch/npipe.v2 dependency, wired in
// for the one platform that actually needs it.
func dialIPC(ctx context.Context, endpoint string) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := npipe.Dial(endpoint)
		ch <- result{conn, err}
	}()
	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
