// Pusher dials an aggregator's control listener and pushes periodic
// %sample (and, if configured, %auth) frames over a persistent
// transport.Conn, reconnecting with backoff on transport errors
// (SPEC_FULL §5.7).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package agent

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/NVIDIA/xltop/internal/xerr"
	"github.com/NVIDIA/xltop/internal/xlog"
	"github.com/NVIDIA/xltop/transport"
)

// Pusher owns one outbound Conn to the aggregator and the Collector it
// samples from.
type Pusher struct {
	RemoteAddr   string
	AuthToken    string
	PushInterval time.Duration
	Collector    *Collector

	RDBufSize int
	WRBufSize int
	Timeout   time.Duration
}

// Run dials, authenticates (if AuthToken is set), and pushes samples on
// PushInterval until ctx is done, reconnecting with capped exponential
// backoff whenever the connection ends.
func (p *Pusher) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for ctx.Err() == nil {
		err := p.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			xlog.Warnf("agent: connection to %s ended: %v", p.RemoteAddr, err)
		}

		jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff + jitter):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return nil
}

func (p *Pusher) runOnce(ctx context.Context) error {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	nc, err := dialer.DialContext(ctx, "tcp", p.RemoteAddr)
	if err != nil {
		return xerr.Wrap(err, "dial")
	}
	transport.TuneConn(nc)

	reactor := transport.NewReactor(64)
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go reactor.Run(rctx)

	ended := make(chan *xerr.Error, 1)
	c := &transport.Conn{}
	c.Init(&transport.Ops{
		RDBufSize:  p.RDBufSize,
		WRBufSize:  p.WRBufSize,
		Timeout:    p.Timeout,
		ReplyNames: map[string]bool{"sample": true, "auth": true},
		ReplyCB: func(_ *transport.Conn, name string, tid uint64, kind xerr.Kind, msg string) {
			if kind != xerr.OK && xlog.V(1) {
				xlog.Warnf("agent: %s tid=%x rejected: %s", name, tid, msg)
			}
		},
		EndCB: func(c *transport.Conn, err *xerr.Error) {
			c.Stop()
			c.Destroy()
			select {
			case ended <- err:
			default:
			}
		},
	})
	c.Set(nc, p.RemoteAddr)
	c.Start(reactor)

	var tid uint64
	if p.AuthToken != "" {
		tid++
		if err := c.Writef("%cauth %x %s\n", transport.DefaultCtlChar, tid, p.AuthToken); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(p.PushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return nil
		case e := <-ended:
			if e == nil {
				return nil
			}
			return e
		case <-ticker.C:
			s, err := p.Collector.Collect()
			if err != nil {
				xlog.Warnf("agent: collect: %v", err)
				continue
			}
			tid++
			if err := c.Writef("%c%s\n", transport.DefaultCtlChar, sampleFrame(tid, s)); err != nil {
				xlog.Warnf("agent: push dropped (buffer full): %v", err)
			}
		}
	}
}

func sampleFrame(tid uint64, s Sample) string {
	return fmt.Sprintf("sample %x %s %s %d %d %g %g %g %d %d %d %d %d",
		tid, s.Host, s.FS, s.NRMDT, s.NROST, s.Load[0], s.Load[1], s.Load[2],
		s.NRTask, s.NRNID, s.WRBytesSum, s.RDBytesSum, s.NRReqsSum)
}
