// Control-frame handlers for agent connections: %sample ingests one
// agent's rolled-up counters into TopK and the named Filesystem;
// %auth gates subsequent frames behind a bearer JWT when the
// aggregator is configured with a verification key (spec.md §4.7/§9's
// NO_AUTH, wired per SPEC_FULL §6).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package agg

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/NVIDIA/xltop/core"
	"github.com/NVIDIA/xltop/internal/xerr"
	"github.com/NVIDIA/xltop/internal/xstats"
	"github.com/NVIDIA/xltop/transport"
	"github.com/NVIDIA/xltop/xk"
)

// authTable tracks, per live Conn, whether %auth has succeeded. Keyed
// by the Conn pointer since Conn carries no user-data field of its
// own; the map is guarded by a mutex.
type authTable struct {
	mu       sync.Mutex
	verified map[*transport.Conn]bool
}

func newAuthTable() *authTable { return &authTable{verified: make(map[*transport.Conn]bool)} }

func (a *authTable) mark(c *transport.Conn) {
	a.mu.Lock()
	a.verified[c] = true
	a.mu.Unlock()
}

func (a *authTable) ok(c *transport.Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.verified[c]
}

func (a *authTable) forget(c *transport.Conn) {
	a.mu.Lock()
	delete(a.verified, c)
	a.mu.Unlock()
}

// Ingest is where %sample lands: it owns TopK and the Store, and must
// only be invoked from the reactor goroutine that serializes access to
// both (spec.md §5).
type Ingest struct {
	store    *Store
	topk     *TopK
	auth     *authTable
	verifyKey string
}

func NewIngest(store *Store, topk *TopK, verifyKey string) *Ingest {
	return &Ingest{store: store, topk: topk, auth: newAuthTable(), verifyKey: verifyKey}
}

// CtlTable returns the sorted control handler table Conn.Init expects.
func (in *Ingest) CtlTable() []transport.Ctl {
	return []transport.Ctl{
		{Name: "auth", Handler: in.handleAuth},
		{Name: "sample", Handler: in.handleSample},
	}
}

// OnEnd releases any auth bookkeeping for a connection that ended.
func (in *Ingest) OnEnd(c *transport.Conn) { in.auth.forget(c) }

func (in *Ingest) requireAuth(c *transport.Conn) *xerr.Error {
	if in.verifyKey == "" || in.auth.ok(c) {
		return nil
	}
	return xerr.New(xerr.NoAuth)
}

func (in *Ingest) handleAuth(c *transport.Conn, cd *transport.CtlData) *xerr.Error {
	if in.verifyKey == "" {
		return xerr.New(xerr.OK)
	}
	token := strings.TrimSpace(cd.Args)
	if token == "" {
		return xerr.New(xerr.NrArgs)
	}
	_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return []byte(in.verifyKey), nil
	})
	if err != nil {
		return xerr.Newf(xerr.NoAuth, "auth: %v", err)
	}
	in.auth.mark(c)
	return xerr.New(xerr.OK)
}

// handleSample parses "<host> <fs> <nr_mdt> <nr_ost> <load1> <load5>
// <load15> <nr_task> <nr_nid> <wr_bytes_sum> <rd_bytes_sum>
// <nr_reqs_sum>" and folds it into TopK (always keyed at raw HOST:host
// / FS:fs granularity — TopK.Query groups coarser-grained requests up
// from there, per the Depth-driven grouping spec.md's GLOSSARY calls
// for) and the named Filesystem's rolling status (xl_fs_msg_cb's merge
// logic, reused via core.Filesystem.Merge). Only the cumulative sums
// are stored in the key: its Rate and Pending fields stay zero.
func (in *Ingest) handleSample(c *transport.Conn, cd *transport.CtlData) *xerr.Error {
	if aerr := in.requireAuth(c); aerr != nil {
		return aerr
	}

	fields := strings.Fields(cd.Args)
	if len(fields) != 12 {
		xstats.DispatchTotal.WithLabelValues("sample", xerr.NrArgs.String()).Inc()
		return xerr.New(xerr.NrArgs)
	}
	host, fs := fields[0], fields[1]

	nums := make([]float64, 10)
	for i, s := range fields[2:] {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			xstats.DispatchTotal.WithLabelValues("sample", xerr.NrArgs.String()).Inc()
			return xerr.New(xerr.NrArgs)
		}
		nums[i] = v
	}

	in.store.host(host)
	f, _ := in.store.filesystem(fs)

	var ss core.ServerStatus
	ss.NRMDT = uint64(nums[0])
	ss.NROST = uint64(nums[1])
	ss.Load = [3]float64{nums[2], nums[3], nums[4]}
	ss.NRTask = uint64(nums[5])
	ss.NRNID = uint64(nums[6])
	f.Merge(ss)

	k := xk.Key{
		X:    [2]string{host, fs},
		Type: [2]core.Kind{core.Host, core.FS},
		T:    float64(time.Now().Unix()),
	}
	k.Sum[xk.WRBytes] = nums[7]
	k.Sum[xk.RDBytes] = nums[8]
	k.Sum[xk.NRReqs] = nums[9]
	in.topk.Update(k)

	xstats.DispatchTotal.WithLabelValues("sample", xerr.OK.String()).Inc()
	return xerr.New(xerr.OK)
}
