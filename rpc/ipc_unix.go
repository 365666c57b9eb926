//go:build !windows

package rpc

import (
	"context"
	"net"
)

func dialIPC(ctx context.Context, endpoint string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", endpoint)
}
