// HTTP query surface: the GET endpoints from spec.md §6, served over
// fasthttp (domain-stack fit: the teacher depends on valyala/fasthttp
// directly), plus the small admin POST endpoints SPEC_FULL §6 adds.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package agg

import (
	"bufio"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"github.com/NVIDIA/xltop/core"
	"github.com/NVIDIA/xltop/internal/xstats"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Server wires the Store/TopK/refreshers into fasthttp handlers.
type Server struct {
	store *Store
	topk  *TopK
}

func NewServer(store *Store, topk *TopK) *Server { return &Server{store: store, topk: topk} }

func streamLines(ctx *fasthttp.RequestCtx, lines func(w *bufio.Writer)) {
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		lines(w)
		w.Flush()
	})
}

// Handler returns the fasthttp.RequestHandler that routes every path
// from spec.md §6's endpoint table.
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		switch {
		case path == "/top":
			s.handleTop(ctx)
		case path == "/clus":
			handleList(ctx, s.store.Clus)
		case path == "/clus/_info":
			s.handleInfo(ctx, core.Clus, s.store.Clus.Len())
		case strings.HasPrefix(path, "/clus/") && strings.HasSuffix(path, "/_info"):
			s.handleClusInfo(ctx, strings.TrimSuffix(strings.TrimPrefix(path, "/clus/"), "/_info"))
		case strings.HasPrefix(path, "/clus/"):
			s.handleClus(ctx, strings.TrimPrefix(path, "/clus/"))
		case path == "/fs":
			handleList(ctx, s.store.FS)
		case strings.HasPrefix(path, "/fs/") && strings.HasSuffix(path, "/_status"):
			s.handleFSStatus(ctx, strings.TrimSuffix(strings.TrimPrefix(path, "/fs/"), "/_status"))
		case path == "/host/_info":
			s.handleInfo(ctx, core.Host, s.store.Hosts.Len())
		case path == "/job/_info":
			s.handleInfo(ctx, core.Job, s.store.Jobs.Len())
		case path == "/serv/_info":
			s.handleInfo(ctx, core.Serv, s.store.Servers.Len())
		case path == "/fs/_info":
			s.handleInfo(ctx, core.FS, s.store.FS.Len())
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}
}

func (s *Server) handleInfo(ctx *fasthttp.RequestCtx, kind core.Kind, n int) {
	if string(ctx.QueryArgs().Peek("fmt")) == "json" {
		ctx.SetContentType("application/json")
		b, _ := jsonAPI.Marshal(map[string]int{"x_nr": n})
		ctx.SetBody(b)
		return
	}
	streamLines(ctx, func(w *bufio.Writer) {
		fmt.Fprintf(w, "x_nr: %d\n", n)
	})
}

// handleList renders one name per line, the grammar of /clus and /fs.
func handleList[T core.Named](ctx *fasthttp.RequestCtx, r *core.Registry[T]) {
	streamLines(ctx, func(w *bufio.Writer) {
		r.Range(func(rec T) bool {
			fmt.Fprintln(w, rec.Name())
			return true
		})
	})
}

func (s *Server) handleClus(ctx *fasthttp.RequestCtx, name string) {
	c, ok := s.store.Clus.Lookup(name)
	if !ok {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}

	member := make(map[*core.Job]bool, len(c.Jobs))
	for _, j := range c.Jobs {
		member[j] = true
	}

	streamLines(ctx, func(w *bufio.Writer) {
		s.store.Hosts.Range(func(h *core.Host) bool {
			j := h.Job
			if j == nil || !member[j] {
				return true
			}
			fmt.Fprintf(w, "%s %s %s %s %.0f %d\n", h.Name(), j.Name(), j.Owner, j.Title, float64(j.Start.Unix()), j.NRHosts)
			return true
		})
	})
}

func (s *Server) handleClusInfo(ctx *fasthttp.RequestCtx, name string) {
	c, ok := s.store.Clus.Lookup(name)
	if !ok {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	streamLines(ctx, func(w *bufio.Writer) {
		fmt.Fprintf(w, "interval: %g\n", c.Interval.Seconds())
		fmt.Fprintf(w, "offset: %g\n", c.Offset.Seconds())
	})
}

func (s *Server) handleFSStatus(ctx *fasthttp.RequestCtx, name string) {
	f, ok := s.store.FS.Lookup(name)
	if !ok {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	streamLines(ctx, func(w *bufio.Writer) {
		fmt.Fprintf(w, "mds %d %d %g %g %g %d %d\n",
			f.NRMDT, f.NROST, f.MDSLoad[0], f.MDSLoad[1], f.MDSLoad[2], f.MaxMDSTask, f.NRNID)
		fmt.Fprintf(w, "oss %d %d %g %g %g %d %d\n",
			f.NRMDT, f.NROST, f.OSSLoad[0], f.OSSLoad[1], f.OSSLoad[2], f.MaxOSSTask, f.NRNID)
	})
}

func (s *Server) handleTop(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	q, err := parseTopQuery(ctx.QueryArgs())
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		fmt.Fprintln(ctx, err)
		return
	}
	rows := s.topk.Query(q)
	xstats.TopQueryDuration.Observe(time.Since(start).Seconds())
	xstats.TopQueryResultLen.Observe(float64(len(rows)))
	streamLines(ctx, func(w *bufio.Writer) {
		for i := range rows {
			fmt.Fprintln(w, rows[i].FormatTop())
		}
	})
}

// parseTopQuery decodes "x0=<type>:<name>&d0=<uint>&x1=...&d1=...&limit=..."
// (spec.md §6), the receiving end of viewer.BuildQuery.
func parseTopQuery(args *fasthttp.Args) (Query, error) {
	x0, err := url.QueryUnescape(string(args.Peek("x0")))
	if err != nil {
		return Query{}, err
	}
	x1, err := url.QueryUnescape(string(args.Peek("x1")))
	if err != nil {
		return Query{}, err
	}

	var q Query
	t0, n0, ok := strings.Cut(x0, ":")
	if !ok {
		return Query{}, fmt.Errorf("malformed x0 %q", x0)
	}
	t1, n1, ok := strings.Cut(x1, ":")
	if !ok {
		return Query{}, fmt.Errorf("malformed x1 %q", x1)
	}
	if q.Kind0, err = core.ParseKind(t0); err != nil {
		return Query{}, err
	}
	if q.Kind1, err = core.ParseKind(t1); err != nil {
		return Query{}, err
	}
	q.Name0, q.Name1 = n0, n1
	q.D0, _ = strconv.Atoi(string(args.Peek("d0")))
	q.D1, _ = strconv.Atoi(string(args.Peek("d1")))
	q.Limit, _ = strconv.Atoi(string(args.Peek("limit")))
	return q, nil
}
