package backend

import (
	"context"
	"net"
	"strconv"
)

// Backend is a downstream TCP endpoint that services forwarded requests.
// Backends are immutable once created.
type Backend struct {
	host string
	port int
}

// New creates a Backend for host:port.
func New(host string, port int) *Backend {
	return &Backend{
		host: host,
		port: port,
	}
}

// Host returns the backend host name or IP.
func (b *Backend) Host() string {
	return b.host
}

// Port returns the backend TCP port.
func (b *Backend) Port() int {
	return b.port
}

// Address returns the dialable "host:port" form.
func (b *Backend) Address() string {
	return net.JoinHostPort(b.host, strconv.Itoa(b.port))
}

func (b *Backend) String() string {
	return b.Address()
}

// Dial opens a fresh TCP connection to the backend. The dialer's Timeout and
// the context bound the connect; with neither set the call blocks until the
// operating system gives up.
func (b *Backend) Dial(ctx context.Context, dialer *net.Dialer) (net.Conn, error) {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	return dialer.DialContext(ctx, "tcp", b.Address())
}
