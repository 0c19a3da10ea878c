// Aggregator wires the Store, TopK, control-frame ingest, HTTP query
// surface, and metrics endpoint into one running process — the Go
// counterpart of whatever long-running service originally answered the
// curl_x_get requests this package's refreshers and handlers mirror.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package agg

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/singleflight"

	"github.com/NVIDIA/xltop/internal/xconf"
	"github.com/NVIDIA/xltop/internal/xerr"
	"github.com/NVIDIA/xltop/internal/xlog"
	"github.com/NVIDIA/xltop/internal/xstats"
	"github.com/NVIDIA/xltop/transport"
)

type Aggregator struct {
	cfg     xconf.Aggregator
	reactor *transport.Reactor
	store   *Store
	topk    *TopK
	ingest  *Ingest
	group   singleflight.Group

	clusRefreshers map[string]*ClusterRefresher
	fsRefreshers   map[string]*FSRefresher
}

func New(cfg xconf.Aggregator) *Aggregator {
	store := NewStore(nil)
	topk := NewTopK(store)
	return &Aggregator{
		cfg:            cfg,
		reactor:        transport.NewReactor(4096),
		store:          store,
		topk:           topk,
		ingest:         NewIngest(store, topk, cfg.AuthVerifyKey),
		clusRefreshers: make(map[string]*ClusterRefresher),
		fsRefreshers:   make(map[string]*FSRefresher),
	}
}

// Serve runs the control-connection listener, the HTTP query surface,
// and the metrics endpoint until ctx is done.
func (a *Aggregator) Serve(ctx context.Context) error {
	go a.reactor.Run(ctx)

	lc := transport.ListenConfig()
	ln, err := lc.Listen(ctx, "tcp", a.cfg.ListenAddr)
	if err != nil {
		return xerr.Wrap(err, "listen")
	}
	go a.acceptLoop(ctx, ln)

	httpSrv := &fasthttp.Server{Handler: a.routeHTTP()}
	go func() {
		if err := httpSrv.ListenAndServe(a.cfg.HTTPAddr); err != nil {
			xlog.Errorf("agg: http surface: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			xlog.Errorf("agg: metrics surface: %v", err)
		}
	}()

	if a.cfg.SourceAddr != "" {
		go a.discoverLoop(ctx, &Source{BaseURL: a.cfg.SourceAddr})
	}

	<-ctx.Done()
	_ = ln.Close()
	_ = httpSrv.Shutdown()
	return metricsSrv.Shutdown(context.Background())
}

// discoverLoop periodically lists "/clus" and "/fs" on the configured
// upstream Source and ensures a refresher exists for every name seen,
// the Go counterpart of xl_clus_init/xl_fs_init's startup enumeration
// generalized to keep noticing newly stood-up clusters/filesystems.
func (a *Aggregator) discoverLoop(ctx context.Context, src *Source) {
	a.discoverOnce(ctx, src)

	t := time.NewTicker(a.cfg.DiscoverPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.discoverOnce(ctx, src)
		}
	}
}

func (a *Aggregator) discoverOnce(ctx context.Context, src *Source) {
	names, err := src.get(ctx, "clus")
	if err != nil {
		xlog.Warnf("agg: discover clus: %v", err)
	}
	for _, name := range names {
		done := make(chan struct{})
		a.reactor.Post(func() {
			if err := a.EnsureCluster(ctx, src, name); err != nil {
				xlog.Warnf("agg: ensure clus %q: %v", name, err)
			}
			close(done)
		})
		<-done
	}

	fsNames, err := src.get(ctx, "fs")
	if err != nil {
		xlog.Warnf("agg: discover fs: %v", err)
	}
	for _, name := range fsNames {
		done := make(chan struct{})
		a.reactor.Post(func() {
			a.EnsureFilesystem(src, name, a.cfg.FSInterval, 0)
			close(done)
		})
		<-done
	}
}

func (a *Aggregator) routeHTTP() fasthttp.RequestHandler {
	query := NewServer(a.store, a.topk).Handler()
	admin := AdminHandler(a.clusRefreshers, a.fsRefreshers)
	return func(ctx *fasthttp.RequestCtx) {
		if ctx.IsPost() {
			admin(ctx)
			return
		}
		query(ctx)
	}
}

func (a *Aggregator) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				xlog.Warnf("agg: accept: %v", err)
				return
			}
		}
		xstats.ActiveConns.Inc()
		a.serveAgent(nc)
	}
}

func (a *Aggregator) serveAgent(nc net.Conn) {
	transport.TuneConn(nc)
	c := &transport.Conn{}
	c.Init(&transport.Ops{
		RDBufSize: a.cfg.RDBufSize,
		WRBufSize: a.cfg.WRBufSize,
		Timeout:   a.cfg.IdleTimeout,
		CtlChar:   a.cfg.CtlChar,
		Ctl:       a.ingest.CtlTable(),
		EndCB: func(c *transport.Conn, err *xerr.Error) {
			a.ingest.OnEnd(c)
			xstats.ActiveConns.Dec()
			c.Stop()
			c.Destroy()
		},
	})
	c.Set(nc, nc.RemoteAddr().String())
	c.Start(a.reactor)
}

// EnsureCluster registers a ClusterRefresher for name if one doesn't
// already exist, the Go equivalent of a first sighting of the cluster
// via xl_clus_init's enumeration of "clus".
func (a *Aggregator) EnsureCluster(ctx context.Context, src *Source, name string) error {
	if _, ok := a.clusRefreshers[name]; ok {
		return nil
	}
	r, err := NewClusterRefresher(ctx, a.store, src, a.reactor, &a.group, name)
	if err != nil {
		return err
	}
	if r != nil {
		a.clusRefreshers[name] = r
	}
	return nil
}

// EnsureFilesystem registers an FSRefresher for name if one doesn't
// already exist.
func (a *Aggregator) EnsureFilesystem(src *Source, name string, interval, offset time.Duration) {
	if _, ok := a.fsRefreshers[name]; ok {
		return
	}
	a.fsRefreshers[name] = NewFSRefresher(a.store, src, a.reactor, &a.group, name, interval, offset)
}
