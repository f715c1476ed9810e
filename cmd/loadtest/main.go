// Loadtest drives the load balancer with sequential 2-byte requests and
// reports how the replies were distributed across backends.
//
// Usage:
//
//	go run ./cmd/loadtest -addr 127.0.0.1:80 -requests 300
//	go run ./cmd/loadtest -addr 127.0.0.1:80 -requests 30 -out summary.json -v
//
// Replies are grouped by the text before the last ": " which is how
// echobackend names itself. Empty replies (dropped or failed exchanges) are
// counted separately.
package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strings"
	"time"
)

// Summary is the JSON report printed at the end of a run.
type Summary struct {
	Target   string         `json:"target"`
	Requests int            `json:"requests"`
	Empty    int            `json:"empty"`
	Errors   int            `json:"errors"`
	Backends map[string]int `json:"backends"`
	Order    []string       `json:"order,omitempty"`
	P50      time.Duration  `json:"p50"`
	P95      time.Duration  `json:"p95"`
	P99      time.Duration  `json:"p99"`
}

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:80", "load balancer address")
		requests   = flag.Int("requests", 30, "number of sequential requests")
		timeoutSec = flag.Int("timeout", 10, "per-request timeout in seconds")
		outJSON    = flag.String("out", "", "write the JSON summary to this file (optional)")
		verbose    = flag.Bool("v", false, "print every reply")
	)
	flag.Parse()

	timeout := time.Duration(*timeoutSec) * time.Second
	summary := Summary{
		Target:   *addr,
		Requests: *requests,
		Backends: make(map[string]int),
	}
	latencies := make([]time.Duration, 0, *requests)

	for i := 0; i < *requests; i++ {
		req := make([]byte, 2)
		binary.BigEndian.PutUint16(req, uint16(i))

		start := time.Now()
		reply, err := roundTrip(*addr, req, timeout)
		latencies = append(latencies, time.Since(start))

		switch {
		case err != nil:
			summary.Errors++
			fmt.Fprintf(os.Stderr, "request %d: %v\n", i, err)
			continue
		case len(reply) == 0:
			summary.Empty++
			summary.Order = append(summary.Order, "")
			continue
		}

		name := backendName(reply)
		summary.Backends[name]++
		summary.Order = append(summary.Order, name)

		if *verbose {
			fmt.Printf("%d: %q\n", i, reply)
		}
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	summary.P50 = percentile(latencies, 0.50)
	summary.P95 = percentile(latencies, 0.95)
	summary.P99 = percentile(latencies, 0.99)

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode summary: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if *outJSON != "" {
		if err := os.WriteFile(*outJSON, out, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", *outJSON, err)
			os.Exit(1)
		}
	}
}

// roundTrip sends one request and reads until the load balancer closes.
func roundTrip(addr string, req []byte, timeout time.Duration) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	if _, err := conn.Write(req); err != nil {
		return nil, err
	}

	return io.ReadAll(conn)
}

func backendName(reply []byte) string {
	s := strings.TrimSpace(string(reply))
	if i := strings.LastIndex(s, ": "); i >= 0 {
		return s[:i]
	}
	return s
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
