package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/angeloszaimis/tcp-load-balancer/config"
	"github.com/angeloszaimis/tcp-load-balancer/internal/backend"
	"github.com/angeloszaimis/tcp-load-balancer/internal/forwarder"
	"github.com/angeloszaimis/tcp-load-balancer/internal/loadbalancer"
	"github.com/angeloszaimis/tcp-load-balancer/internal/strategy"
	"github.com/angeloszaimis/tcp-load-balancer/internal/tcpserver"
	"github.com/angeloszaimis/tcp-load-balancer/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, false, cfg.Server.Environment)

	// Signals only stop the accept loop; an in-flight exchange is not drained.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv, err := newServer(cfg, log)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	if err := srv.Listen(); err != nil {
		log.Error("Failed to bind listener", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Listening", slog.String("address", srv.Addr().String()))

	if err := srv.Serve(ctx); err != nil {
		log.Error("Accept loop stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

func newServer(cfg *config.Config, log *slog.Logger) (*tcpserver.Server, error) {
	lb, err := loadbalancer.NewLoadBalancer(strategy.NewRoundRobinStrategy(), initializeBackends(cfg, log))
	if err != nil {
		return nil, err
	}

	fwd := forwarder.New(log, lb, forwarder.Options{
		DialTimeout: cfg.DialTimeout(),
		IOTimeout:   cfg.IOTimeout(),
	})

	return tcpserver.New(cfg.Server.Address, fwd, log)
}

func initializeBackends(cfg *config.Config, log *slog.Logger) []*backend.Backend {
	backends := make([]*backend.Backend, 0, len(cfg.Backends))

	for _, bc := range cfg.Backends {
		b := backend.New(bc.Host, bc.Port)
		backends = append(backends, b)
		log.Debug("Registered backend", slog.String("backend", b.Address()))
	}

	return backends
}
