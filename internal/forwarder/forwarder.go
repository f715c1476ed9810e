package forwarder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/angeloszaimis/tcp-load-balancer/internal/backend"
)

const (
	// RequestSize is the fixed length of a client request.
	RequestSize = 2
	// ResponseBufferSize caps the single backend read that gets relayed.
	ResponseBufferSize = 4096
)

// Balancer picks the backend for the next admitted connection.
type Balancer interface {
	Next() (*backend.Backend, error)
}

// Options holds optional deadlines. Zero values block without a deadline.
type Options struct {
	DialTimeout time.Duration
	IOTimeout   time.Duration
}

type Forwarder struct {
	logger    *slog.Logger
	balancer  Balancer
	dialer    *net.Dialer
	ioTimeout time.Duration
}

func New(logger *slog.Logger, balancer Balancer, opts Options) *Forwarder {
	return &Forwarder{
		logger:    logger,
		balancer:  balancer,
		dialer:    &net.Dialer{Timeout: opts.DialTimeout},
		ioTimeout: opts.IOTimeout,
	}
}

// ServeTCP handles one client and logs the outcome. Short requests are dropped
// quietly; every other failure is logged and contained to this connection.
func (f *Forwarder) ServeTCP(ctx context.Context, client net.Conn) {
	clientAddr := client.RemoteAddr().String()

	err := f.Handle(ctx, client)
	switch {
	case err == nil:
	case errors.Is(err, ErrShortRequest):
		f.logger.Debug("Dropping short request",
			slog.String("client", clientAddr),
			slog.Any("err", err))
	default:
		f.logger.Error("Error forwarding connection",
			slog.String("client", clientAddr),
			slog.Any("err", err))
	}
}

// Handle reads the fixed-size request, forwards it to the next backend over a
// fresh connection, relays the first chunk of the reply and closes both ends.
// The backend is only selected once a full request has arrived. Sends are a
// single Write and the reply is a single Read of at most ResponseBufferSize
// bytes; anything the backend sends after that chunk is discarded.
func (f *Forwarder) Handle(ctx context.Context, client net.Conn) error {
	defer client.Close()

	f.applyDeadline(ctx, client)

	req, err := readPrefix(client, RequestSize)
	if err != nil {
		return err
	}

	chosen, err := f.balancer.Next()
	if err != nil {
		return fmt.Errorf("select backend: %w", err)
	}

	conn, err := chosen.Dial(ctx, f.dialer)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBackendConnect, chosen, err)
	}
	defer conn.Close()

	f.applyDeadline(ctx, conn)

	f.logger.Debug("Forwarding to backend",
		slog.String("client", client.RemoteAddr().String()),
		slog.String("backend", chosen.Address()))

	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("%w: send to %s: %w", ErrBackendIO, chosen, err)
	}

	resp := make([]byte, ResponseBufferSize)
	n, err := conn.Read(resp)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: receive from %s: %w", ErrBackendIO, chosen, err)
	}

	if n == 0 {
		return nil
	}

	if _, err := client.Write(resp[:n]); err != nil {
		return fmt.Errorf("%w: relay %d bytes: %w", ErrClientIO, n, err)
	}

	return nil
}

// applyDeadline sets the earlier of the I/O timeout and the context deadline
// on conn. With neither configured the connection stays fully blocking.
func (f *Forwarder) applyDeadline(ctx context.Context, conn net.Conn) {
	var deadline time.Time
	if f.ioTimeout > 0 {
		deadline = time.Now().Add(f.ioTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if deadline.IsZero() {
		return
	}

	if err := conn.SetDeadline(deadline); err != nil {
		f.logger.Warn("Failed to set connection deadline", slog.Any("err", err))
	}
}

// readPrefix collects exactly n bytes from r across partial reads. If the peer
// closes first, the bytes read so far are returned with ErrShortRequest.
func readPrefix(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)

	read, err := io.ReadFull(r, buf)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return buf[:read], fmt.Errorf("%w: got %d of %d bytes", ErrShortRequest, read, n)
	default:
		return buf[:read], fmt.Errorf("%w: read request: %w", ErrClientIO, err)
	}
}
