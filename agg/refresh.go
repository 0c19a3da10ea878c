// ClusterRefresher and FSRefresher are the Go translation of
// xl_clus_cb/xl_clus_add and xl_fs_cb/xl_fs_add: periodic pulls of
// cluster membership and filesystem server status from an upstream
// source, reconciled into the Store's registries (spec.md §4.4).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package agg

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/NVIDIA/xltop/core"
	"github.com/NVIDIA/xltop/internal/xerr"
	"github.com/NVIDIA/xltop/internal/xlog"
	"github.com/NVIDIA/xltop/internal/xstats"
	"github.com/NVIDIA/xltop/transport"
)

// Source fetches the newline-delimited record body for path, the Go
// translation of curl_x_get: one HTTP client shared by every
// refresher, pointed at an upstream xltop-aggd (or a compatible status
// provider) per spec.md §6's GET endpoints.
type Source struct {
	BaseURL string
	Client  *http.Client
}

func (s *Source) get(ctx context.Context, path string) ([]string, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(s.BaseURL, "/")+"/"+path, nil)
	if err != nil {
		return nil, xerr.Wrap(err, "build request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, xerr.Wrap(err, "curl_x_get")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, xerr.Newf(xerr.Internal, "GET %s: status %d", path, resp.StatusCode)
	}

	var lines []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

// ClusterRefresher periodically reconciles one Cluster's job list.
type ClusterRefresher struct {
	store  *Store
	src    *Source
	name   string
	group  *singleflight.Group
	stopFn func()
}

// NewClusterRefresher creates the named cluster, arms its periodic
// refresh on reactor per the interval/offset it reports at
// <name>/_info, and returns without waiting for the first refresh —
// the Go shape of xl_clus_add. If the cluster is already in the store
// it returns a nil refresher and a nil error.
func NewClusterRefresher(ctx context.Context, store *Store, src *Source, reactor *transport.Reactor, group *singleflight.Group, name string) (*ClusterRefresher, error) {
	c, existed := store.cluster(name)
	if existed {
		return nil, nil
	}

	info, err := src.get(ctx, fmt.Sprintf("clus/%s/_info", name))
	if err != nil {
		return nil, err
	}
	interval, offset := -1.0, -1.0
	for _, line := range info {
		k, v, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		switch k {
		case "interval:":
			interval, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
		case "offset:":
			offset, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
		}
	}
	if interval <= 0 || offset < 0 {
		return nil, xerr.Newf(xerr.NoClus, "clus %q: missing interval/offset", name)
	}

	c.Interval = time.Duration(interval * float64(time.Second))
	// XXX matches xl_clus_add's "c_off = fmod(c_off + 1, c_int)".
	c.Offset = time.Duration(int64(offset+1)%int64(interval)) * time.Second

	r := &ClusterRefresher{store: store, src: src, name: name, group: group}
	stop := reactor.Ticker(c.Offset, c.Interval, func() { r.refreshOnce(ctx) })
	c.SetCancel(stop)
	r.stopFn = stop
	return r, nil
}

func (r *ClusterRefresher) refreshOnce(ctx context.Context) {
	start := time.Now()
	_, _, _ = r.group.Do("clus:"+r.name, func() (any, error) {
		return nil, r.doRefresh(ctx)
	})
	xstats.RefreshDuration.WithLabelValues("clus").Observe(time.Since(start).Seconds())
}

func (r *ClusterRefresher) doRefresh(ctx context.Context) error {
	c, ok := r.store.Clus.Lookup(r.name)
	if !ok {
		return xerr.New(xerr.NoClus)
	}

	lines, err := r.src.get(ctx, "clus/"+r.name)
	if err != nil {
		xlog.Warnf("agg: cluster %q refresh: %v", r.name, err)
		return err
	}

	aside := c.BeginRefresh()
	seen := make(map[string]bool, len(lines))

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != 6 {
			continue
		}
		hostName, jobName, owner, title, startStr, nrHostsStr := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5]

		h := r.store.host(hostName)
		j := r.store.job(jobName)
		h.Job = j

		startSecs, _ := strconv.ParseFloat(startStr, 64)
		nrHosts, _ := strconv.ParseUint(nrHostsStr, 10, 64)
		j.Seed(owner, title, time.Unix(int64(startSecs), 0), nrHosts)

		c.MoveJob(j)
		seen[jobName] = true
	}

	// quiesce-then-destroy: anything left aside was not re-sighted this
	// cycle and is released (spec.md Testable Property 7).
	for _, j := range aside {
		if !seen[j.Name()] {
			r.store.Jobs.Delete(j.Name())
		}
	}
	return nil
}

// Stop cancels the refresh ticker.
func (r *ClusterRefresher) Stop() {
	if r.stopFn != nil {
		r.stopFn()
	}
}

// FSRefresher periodically recomputes one Filesystem's rolling status.
type FSRefresher struct {
	store *Store
	src   *Source
	name  string
	group *singleflight.Group
}

// NewFSRefresher looks up (or creates) the named filesystem and arms
// its periodic status refresh on reactor, the Go shape of xl_fs_add.
func NewFSRefresher(store *Store, src *Source, reactor *transport.Reactor, group *singleflight.Group, name string, interval, offset time.Duration) *FSRefresher {
	f, _ := store.filesystem(name)
	r := &FSRefresher{store: store, src: src, name: name, group: group}
	f.Cancel()
	stop := reactor.Ticker(offset, interval, func() { r.refreshOnce(context.Background()) })
	f.SetCancel(stop)
	return r
}

func (r *FSRefresher) refreshOnce(ctx context.Context) {
	start := time.Now()
	_, _, _ = r.group.Do("fs:"+r.name, func() (any, error) {
		return nil, r.doRefresh(ctx)
	})
	xstats.RefreshDuration.WithLabelValues("fs").Observe(time.Since(start).Seconds())
}

func (r *FSRefresher) doRefresh(ctx context.Context) error {
	f, ok := r.store.FS.Lookup(r.name)
	if !ok {
		return xerr.New(xerr.NoFS)
	}

	lines, err := r.src.get(ctx, fmt.Sprintf("fs/%s/_status", r.name))
	if err != nil {
		xlog.Warnf("agg: fs %q refresh: %v", r.name, err)
		return err
	}

	f.Reset()
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != 8 {
			continue
		}
		r.store.server(fields[0])

		var ss core.ServerStatus
		ss.NRMDT, _ = strconv.ParseUint(fields[1], 10, 64)
		ss.NROST, _ = strconv.ParseUint(fields[2], 10, 64)
		for i := 0; i < 3; i++ {
			ss.Load[i], _ = strconv.ParseFloat(fields[3+i], 64)
		}
		ss.NRTask, _ = strconv.ParseUint(fields[6], 10, 64)
		ss.NRNID, _ = strconv.ParseUint(fields[7], 10, 64)

		f.Merge(ss)
	}
	return nil
}
