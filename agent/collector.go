// Package agent implements the monitoring agent: local counter
// collection and the periodic push of rolled-up samples to an
// aggregator over a persistent control connection (spec.md §1's "the
// wire contract it emits is specified; its acquisition is not" —
// SPEC_FULL §5.7 picks a concrete real acquisition library since the
// spec leaves this unspecified, not prohibited).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package agent

import (
	"sync"
	"time"

	"github.com/lufia/iostat"

	"github.com/NVIDIA/xltop/internal/xlog"
)

// Sample is one rolled-up observation ready to be framed onto the wire
// as "%sample <tid> <host> <fs> <nr_mdt> <nr_ost> <load1> <load5>
// <load15> <nr_task> <nr_nid> <wr_bytes_sum> <rd_bytes_sum>
// <nr_reqs_sum>" (SPEC_FULL §6).
type Sample struct {
	Host string
	FS   string

	NRMDT  uint64
	NROST  uint64
	Load   [3]float64
	NRTask uint64
	NRNID  uint64

	WRBytesSum uint64
	RDBytesSum uint64
	NRReqsSum  uint64
}

// Role distinguishes whether this agent's host is watching an MDS or
// an OSS mount, matching the original's per-node role configuration
// (a single node is never both for a given fs in xltop's model).
type Role int

const (
	RoleMDS Role = iota
	RoleOSS
)

// Collector samples real per-device iostat counters via
// github.com/lufia/iostat and folds them into a Sample, inferring
// nr_mdt/nr_ost from the configured role and nr_task from the number
// of requests the device completed since the previous sample.
type Collector struct {
	Host      string
	FS        string
	Role      Role
	MountRoot string // device/mount whose iostat counters back this fs
	NRNID     uint64 // configured count of distinct network identifiers

	mu       sync.Mutex
	prev     *iostat.DriveStats
	prevTime time.Time
}

// Collect reads the current iostat snapshot and returns a Sample ready
// to push, carrying the device's cumulative byte and request counters.
// The only delta against the previous snapshot is nr_task; no rate is
// computed here, and the aggregator stores the sums without deriving
// a rate from them.
func (c *Collector) Collect() (Sample, error) {
	drives, err := iostat.ReadDriveStats()
	if err != nil {
		return Sample{}, err
	}

	var cur *iostat.DriveStats
	for _, d := range drives {
		if d.Name == c.MountRoot {
			cur = d
			break
		}
	}
	if cur == nil {
		xlog.Warnf("agent: no iostat device matching mount root %q", c.MountRoot)
		cur = &iostat.DriveStats{Name: c.MountRoot}
	}

	c.mu.Lock()
	prev, prevTime := c.prev, c.prevTime
	c.prev, c.prevTime = cur, time.Now()
	c.mu.Unlock()

	s := Sample{Host: c.Host, FS: c.FS, NRNID: c.NRNID}
	if c.Role == RoleMDS {
		s.NRMDT = 1
	} else {
		s.NROST = 1
	}

	load, err := readLoadAvg()
	if err != nil {
		xlog.Warnf("agent: load average unavailable: %v", err)
	} else {
		s.Load = load
	}

	s.WRBytesSum = cur.WriteBytes
	s.RDBytesSum = cur.ReadBytes
	s.NRReqsSum = cur.ReadCount + cur.WriteCount

	if prev != nil {
		dt := time.Since(prevTime).Seconds()
		if dt > 0 {
			s.NRTask = inFlight(prev, cur, dt)
		}
	}

	return s, nil
}
