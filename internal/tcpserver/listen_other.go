//go:build !unix

package tcpserver

import (
	"context"
	"net"
)

// listen falls back to the runtime listener where raw sockets are unavailable.
// The runtime picks the backlog.
func listen(addr string, _ int) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(context.Background(), "tcp", addr)
}
