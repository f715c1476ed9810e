package forwarder_test

import (
	"bytes"
	"context"
	"errors"
	"net"
	"syscall"
	"testing/iotest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"

	"github.com/angeloszaimis/tcp-load-balancer/internal/backend"
	"github.com/angeloszaimis/tcp-load-balancer/internal/forwarder"
	"github.com/angeloszaimis/tcp-load-balancer/internal/loadbalancer"
	"github.com/angeloszaimis/tcp-load-balancer/internal/strategy"
	"github.com/angeloszaimis/tcp-load-balancer/pkg/logger"
)

var _ = Describe("ReadPrefix", func() {
	It("should return exactly n bytes", func() {
		req, err := forwarder.ReadPrefix(bytes.NewReader([]byte{1, 2, 3}), 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(req).To(Equal([]byte{1, 2}))
	})

	It("should accumulate partial reads", func() {
		req, err := forwarder.ReadPrefix(iotest.OneByteReader(bytes.NewReader([]byte{7, 8})), 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(req).To(Equal([]byte{7, 8}))
	})

	DescribeTable("peer closes early",
		func(input []byte) {
			req, err := forwarder.ReadPrefix(bytes.NewReader(input), 2)
			Expect(err).To(MatchError(forwarder.ErrShortRequest))
			Expect(req).To(Equal(input))
		},
		Entry("no bytes", []byte{}),
		Entry("one byte", []byte{1}),
	)

	It("should classify other read failures as client errors", func() {
		_, err := forwarder.ReadPrefix(iotest.ErrReader(syscall.ECONNRESET), 2)
		Expect(err).To(MatchError(forwarder.ErrClientIO))
		Expect(err).To(MatchError(syscall.ECONNRESET))
	})
})

var _ = Describe("Forwarder.Handle", func() {
	var (
		ctx      context.Context
		logBuf   *gbytes.Buffer
		strat    *strategy.RoundRobinStrategy
		fwd      *forwarder.Forwarder
		backends []*testBackend
	)

	build := func(pool []*backend.Backend, opts forwarder.Options) {
		lb, err := loadbalancer.NewLoadBalancer(strat, pool)
		Expect(err).NotTo(HaveOccurred())
		fwd = forwarder.New(logger.NewWithWriter(logBuf, "debug", false, "dev"), lb, opts)
	}

	BeforeEach(func() {
		ctx = context.Background()
		logBuf = gbytes.NewBuffer()
		strat = strategy.NewRoundRobinStrategy()
		backends = []*testBackend{
			startBackend("srv0", echoReply("srv0")),
			startBackend("srv1", echoReply("srv1")),
		}
		build([]*backend.Backend{backends[0].Backend(), backends[1].Backend()}, forwarder.Options{})
	})

	AfterEach(func() {
		for _, b := range backends {
			b.Close()
		}
	})

	It("should relay the backend reply and close the client", func() {
		client := newFakeConn([]byte{0x01, 0x02})

		Expect(fwd.Handle(ctx, client)).To(Succeed())
		Expect(client.Written()).To(Equal([]byte("srv0:\x01\x02")))
		Expect(client.closed.Load()).To(BeTrue())
		Eventually(backends[0].requests).Should(Receive(Equal([]byte{0x01, 0x02})))
	})

	It("should only forward the first two bytes of a longer request", func() {
		client := newFakeConn([]byte{0x01, 0x02, 0x03})

		Expect(fwd.Handle(ctx, client)).To(Succeed())
		Expect(client.Written()).To(Equal([]byte("srv0:\x01\x02")))
	})

	Context("with a short request", func() {
		It("should close the client without selecting a backend", func() {
			client := newFakeConn([]byte{0x01})

			err := fwd.Handle(ctx, client)
			Expect(err).To(MatchError(forwarder.ErrShortRequest))
			Expect(client.closed.Load()).To(BeTrue())
			Expect(client.Written()).To(BeEmpty())
			Expect(strat.Cursor()).To(BeZero())
			Consistently(backends[0].requests, 100*time.Millisecond).ShouldNot(Receive())
		})
	})

	Context("when the client read fails", func() {
		It("should report a client error and close the client", func() {
			client := newFakeConn(nil)
			client.readErr = syscall.ECONNRESET

			Expect(fwd.Handle(ctx, client)).To(MatchError(forwarder.ErrClientIO))
			Expect(client.closed.Load()).To(BeTrue())
			Expect(strat.Cursor()).To(BeZero())
		})
	})

	Context("when the relay to the client fails", func() {
		It("should report a client error after the backend was used", func() {
			client := newFakeConn([]byte{0x05, 0x06})
			client.writeErr = syscall.EPIPE

			err := fwd.Handle(ctx, client)
			Expect(err).To(MatchError(forwarder.ErrClientIO))
			Expect(err).To(MatchError(syscall.EPIPE))
			Expect(client.closed.Load()).To(BeTrue())
			Eventually(backends[0].requests).Should(Receive())
		})
	})

	Context("when the backend is unreachable", func() {
		It("should report a connect error naming the backend", func() {
			dead := deadBackend()
			build([]*backend.Backend{dead}, forwarder.Options{})
			client := newFakeConn([]byte{0x01, 0x02})

			err := fwd.Handle(ctx, client)
			Expect(err).To(MatchError(forwarder.ErrBackendConnect))
			Expect(err.Error()).To(ContainSubstring(dead.Address()))
			Expect(client.Written()).To(BeEmpty())
			Expect(client.closed.Load()).To(BeTrue())
		})
	})

	Context("when the backend closes without replying", func() {
		It("should relay nothing and succeed", func() {
			silent := startBackend("silent", func(net.Conn, []byte) {})
			backends = append(backends, silent)
			build([]*backend.Backend{silent.Backend()}, forwarder.Options{})
			client := newFakeConn([]byte{0x01, 0x02})

			Expect(fwd.Handle(ctx, client)).To(Succeed())
			Expect(client.Written()).To(BeEmpty())
		})
	})

	Context("when the backend reply arrives in several pieces", func() {
		It("should relay only the first piece", func() {
			chunked := startBackend("chunked", func(conn net.Conn, _ []byte) {
				conn.Write([]byte("abc"))
				time.Sleep(200 * time.Millisecond)
				conn.Write([]byte("def"))
			})
			backends = append(backends, chunked)
			build([]*backend.Backend{chunked.Backend()}, forwarder.Options{})
			client := newFakeConn([]byte{0x01, 0x02})

			Expect(fwd.Handle(ctx, client)).To(Succeed())
			Expect(client.Written()).To(Equal([]byte("abc")))
		})
	})

	Context("with an I/O timeout", func() {
		It("should give up on a backend that never answers", func() {
			hold := make(chan struct{})
			stuck := startBackend("stuck", func(net.Conn, []byte) { <-hold })
			backends = append(backends, stuck)
			defer close(hold)

			build([]*backend.Backend{stuck.Backend()}, forwarder.Options{IOTimeout: 100 * time.Millisecond})
			client := newFakeConn([]byte{0x01, 0x02})

			err := fwd.Handle(ctx, client)
			Expect(err).To(MatchError(forwarder.ErrBackendIO))

			var netErr net.Error
			Expect(errors.As(err, &netErr)).To(BeTrue())
			Expect(netErr.Timeout()).To(BeTrue())
			Expect(client.Written()).To(BeEmpty())
		})
	})

	Describe("ServeTCP", func() {
		It("should log forwarding failures at error level", func() {
			build([]*backend.Backend{deadBackend()}, forwarder.Options{})

			fwd.ServeTCP(ctx, newFakeConn([]byte{0x01, 0x02}))
			Expect(logBuf).To(gbytes.Say("level=ERROR"))
			Expect(logBuf).To(gbytes.Say("backend connect failed"))
		})

		It("should drop short requests at debug level only", func() {
			fwd.ServeTCP(ctx, newFakeConn(nil))
			Expect(logBuf).To(gbytes.Say("level=DEBUG msg=\"Dropping short request\""))
			Expect(string(logBuf.Contents())).NotTo(ContainSubstring("level=ERROR"))
		})

		It("should stay quiet above debug on success", func() {
			quiet := gbytes.NewBuffer()
			lb, err := loadbalancer.NewLoadBalancer(strat, []*backend.Backend{backends[0].Backend()})
			Expect(err).NotTo(HaveOccurred())
			fwd = forwarder.New(logger.NewWithWriter(quiet, "info", false, "dev"), lb, forwarder.Options{})

			client := newFakeConn([]byte{0x01, 0x02})
			fwd.ServeTCP(ctx, client)
			Expect(client.Written()).To(Equal([]byte("srv0:\x01\x02")))
			Expect(quiet.Contents()).To(BeEmpty())
		})
	})

})
