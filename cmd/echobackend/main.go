// Echobackend is a raw TCP backend for trying the load balancer by hand.
// For every connection it reads the 2-byte request and answers with one line
// naming itself and the request in hex, then closes the connection.
//
// Usage:
//
//	go run ./cmd/echobackend -port 8081 -name srv0
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/angeloszaimis/tcp-load-balancer/pkg/logger"
)

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	name := flag.String("name", "", "name put in every reply (defaults to the listen address)")
	delay := flag.Duration("delay", 0, "sleep before replying, to observe sequential handling")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	log := logger.New(*level, false, "dev")

	addr := fmt.Sprintf(":%d", *port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("Failed to listen", slog.String("address", addr), slog.Any("err", err))
		os.Exit(1)
	}

	if *name == "" {
		*name = ln.Addr().String()
	}

	log.Info("Starting backend", slog.String("address", ln.Addr().String()), slog.String("name", *name))

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Error("Failed to accept connection", slog.Any("err", err))
			continue
		}
		go serve(conn, *name, *delay, log)
	}
}

func serve(conn net.Conn, name string, delay time.Duration, log *slog.Logger) {
	defer conn.Close()

	req := make([]byte, 2)
	if _, err := io.ReadFull(conn, req); err != nil {
		log.Warn("Short request", slog.String("from", conn.RemoteAddr().String()), slog.Any("err", err))
		return
	}

	log.Info("request", slog.String("from", conn.RemoteAddr().String()), slog.String("payload", hex.EncodeToString(req)))

	if delay > 0 {
		time.Sleep(delay)
	}

	if _, err := fmt.Fprintf(conn, "%s: %s\n", name, hex.EncodeToString(req)); err != nil {
		log.Error("Failed to reply", slog.Any("err", err))
	}
}
