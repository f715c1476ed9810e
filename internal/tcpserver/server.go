package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// DefaultBacklog is the listen queue length requested from the kernel.
const DefaultBacklog = 128

var (
	ErrBind         = errors.New("bind failed")
	ErrNotListening = errors.New("server is not listening")
)

// Handler serves one accepted connection. ServeTCP owns conn and must close it.
type Handler interface {
	ServeTCP(ctx context.Context, conn net.Conn)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, conn net.Conn)

func (f HandlerFunc) ServeTCP(ctx context.Context, conn net.Conn) {
	f(ctx, conn)
}

// Server accepts TCP connections and hands them to its Handler one at a time.
// The next connection is accepted only after the handler returns.
type Server struct {
	addr     string
	handler  Handler
	logger   *slog.Logger
	backlog  int
	mutex    sync.Mutex
	listener net.Listener
}

// New creates a server for addr. The address is validated before creating the
// server; nothing is bound until Listen.
func New(addr string, handler Handler, logger *slog.Logger) (*Server, error) {
	if err := validateHost(addr); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		addr:    addr,
		handler: handler,
		logger:  logger,
		backlog: DefaultBacklog,
	}, nil
}

// NewWithListener creates a server around an already bound listener.
func NewWithListener(ln net.Listener, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		addr:     ln.Addr().String(),
		handler:  handler,
		logger:   logger,
		backlog:  DefaultBacklog,
		listener: ln,
	}
}

// Listen binds the listening socket with SO_REUSEADDR and the default backlog.
// Errors wrap ErrBind.
func (s *Server) Listen() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.listener != nil {
		return fmt.Errorf("%w: %s: already listening", ErrBind, s.addr)
	}

	ln, err := listen(s.addr, s.backlog)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBind, s.addr, err)
	}

	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the accept loop until ctx is cancelled or the listener is closed.
// Accept errors are logged and the loop keeps going. Cancelling ctx returns nil.
func (s *Server) Serve(ctx context.Context) error {
	s.mutex.Lock()
	ln := s.listener
	s.mutex.Unlock()

	if ln == nil {
		return ErrNotListening
	}

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Error("Failed to accept connection",
				slog.String("address", s.addr),
				slog.Any("err", err))
			continue
		}

		s.handler.ServeTCP(ctx, conn)
	}
}

// Start binds and serves. It returns a bind error immediately.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Close closes the listener. In-flight handling is not waited for.
func (s *Server) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func validateHost(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cant be empty")
	}

	if err := validation.Validate(port, is.Digit); err != nil {
		return validation.NewError("validation_invalid_port", "port must be numeric")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}
