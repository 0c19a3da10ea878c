/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/NVIDIA/xltop/internal/xerr"
)

func startReactor() (*Reactor, context.CancelFunc) {
	r := NewReactor(64)
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	return r, cancel
}

var _ = Describe("Conn", func() {
	var (
		reactor *Reactor
		cancel  context.CancelFunc
		client  net.Conn
		conn    *Conn
	)

	BeforeEach(func() {
		reactor, cancel = startReactor()
	})

	AfterEach(func() {
		cancel()
	})

	newConn := func(ops Ops) (*Conn, net.Conn) {
		if ops.RDBufSize == 0 {
			ops.RDBufSize = 256
		}
		if ops.WRBufSize == 0 {
			ops.WRBufSize = 256
		}
		if ops.Timeout == 0 {
			ops.Timeout = time.Minute
		}
		c := &Conn{}
		c.Init(&ops)
		server, cl := net.Pipe()
		c.Set(server, "t")
		return c, cl
	}

	// Testable Property 3: dispatch routes a control frame to the
	// handler whose name matches exactly, and reports NoCtl for an
	// unregistered name, regardless of the order handlers were
	// registered in (Init sorts defensively).
	Describe("control dispatch", func() {
		It("finds a registered handler and reports NoCtl for an unknown one", func() {
			var sawArgs string
			ops := Ops{
				Ctl: []Ctl{
					{Name: "zeta", Handler: func(_ *Conn, cd *CtlData) *xerr.Error { return xerr.New(xerr.OK) }},
					{Name: "auth", Handler: func(_ *Conn, cd *CtlData) *xerr.Error {
						sawArgs = cd.Args
						return xerr.New(xerr.OK)
					}},
				},
			}
			conn, client = newConn(ops)
			conn.Start(reactor)

			_, err := client.Write([]byte("%auth 1 token123\n"))
			Expect(err).NotTo(HaveOccurred())

			buf := make([]byte, 256)
			client.SetReadDeadline(time.Now().Add(time.Second))
			n, err := client.Read(buf)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(buf[:n])).To(ContainSubstring("%auth 1 0"))
			Expect(sawArgs).To(Equal("token123"))

			_, err = client.Write([]byte("%bogus 2\n"))
			Expect(err).NotTo(HaveOccurred())
			client.SetReadDeadline(time.Now().Add(time.Second))
			n, err = client.Read(buf)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(buf[:n])).To(ContainSubstring("%bogus 2 " + strconv.Itoa(int(xerr.NoCtl))))
		})
	})

	// Testable Property 4: Destroy is safe to call more than once.
	Describe("Destroy", func() {
		It("is idempotent", func() {
			conn, client = newConn(Ops{})
			defer client.Close()
			conn.Start(reactor)
			conn.Stop()
			Expect(func() {
				conn.Destroy()
				conn.Destroy()
			}).NotTo(Panic())
		})
	})

	// Testable Property 5: Move preserves unread/unsent bytes buffered
	// on the source connection.
	Describe("Move", func() {
		It("carries buffered read and write data to the destination", func() {
			src, srcClient := newConn(Ops{})
			defer srcClient.Close()
			dst, dstClient := newConn(Ops{})
			defer dstClient.Close()
			go io.Copy(io.Discard, srcClient)

			src.Start(reactor)

			// Seed buffered-but-not-yet-sent data directly on the Bufs
			// (bypassing Writef/signalWriter) so the writer goroutine
			// never attempts to drain it onto the still-unread pipe.
			_, err := src.rd.Write([]byte("buffered\n"))
			Expect(err).NotTo(HaveOccurred())
			_, err = src.wr.Write([]byte("pending-out"))
			Expect(err).NotTo(HaveOccurred())

			Expect(Move(dst, src)).To(Succeed())

			line, ok := dst.rd.GetMsg()
			Expect(ok).To(BeTrue())
			Expect(string(line)).To(Equal("buffered"))
			Expect(string(dst.wr.Unread())).To(Equal("pending-out"))

			dst.Close()
			dst.Destroy()
		})
	})

	// Testable Property 6: an idle connection is ended after Timeout.
	Describe("idle timeout", func() {
		It("ends the connection once the idle timer fires", func() {
			ended := make(chan *xerr.Error, 1)
			ops := Ops{
				Timeout: 20 * time.Millisecond,
				EndCB: func(_ *Conn, err *xerr.Error) {
					ended <- err
				},
			}
			conn, client = newConn(ops)
			defer client.Close()
			conn.Start(reactor)

			Eventually(ended, time.Second).Should(Receive())
		})
	})

	// Testable Property 10: Writef reports ErrNoBufSpace without
	// ending the connection when the write buffer cannot hold the
	// message.
	Describe("Writef overflow", func() {
		It("returns ErrNoBufSpace and leaves the connection alive", func() {
			ended := false
			ops := Ops{
				WRBufSize: 8,
				EndCB:     func(_ *Conn, _ *xerr.Error) { ended = true },
			}
			conn, client = newConn(ops)
			defer client.Close()
			conn.Start(reactor)

			err := conn.Writef("%s", strings.Repeat("x", 64))
			Expect(err).To(MatchError(xerr.ErrNoBufSpace))
			Consistently(func() bool { return ended }, 50*time.Millisecond).Should(BeFalse())
		})
	})
})
