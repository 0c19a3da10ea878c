// Entity records, translated from original_source/xltop.c's
// struct xl_host/xl_job/xl_clus/xl_fs.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package core

import "time"

// Host is a weak reference to at most one Job: the job pointer is
// repopulated on every cluster refresh and is nil until first seen.
type Host struct {
	HostName string
	Job      *Job // weak reference, nullable
}

func (h *Host) Name() string { return h.HostName }

// Job is globally qualified JOBID@CLUS. Membership in exactly one
// Cluster's job list is tracked by the Cluster itself (list-move, not
// duplicate-insert, per spec.md §3's invariant); Job does not hold a
// back-pointer to its Cluster because the original xl_job doesn't
// either — only c_job_list ever references it.
type Job struct {
	JobName  string
	Owner    string
	Title    string
	Start    time.Time
	NRHosts  uint64
	seeded   bool // true once Owner/Title/Start/NRHosts have been set once
}

func (j *Job) Name() string { return j.JobName }

// Seed populates Owner/Title/Start/NRHosts the first time a job is
// observed during a refresh; subsequent sightings in the same or later
// refreshes do not overwrite it (xl_clus_msg_cb: "if j_clus_link.next
// == NULL", i.e. first sight only).
func (j *Job) Seed(owner, title string, start time.Time, nrHosts uint64) {
	if j.seeded {
		return
	}
	j.Owner, j.Title, j.Start, j.NRHosts = owner, title, start, nrHosts
	j.seeded = true
}

// Cluster holds its member jobs as an explicit slice rather than the
// original's intrusive list_head, plus the phase-offset refresh
// parameters fetched from /clus/<name>/_info.
type Cluster struct {
	ClusName string
	Jobs     []*Job
	Interval time.Duration
	Offset   time.Duration
	cancel   func() // stops the refresh ticker; nil until started
}

func (c *Cluster) Name() string { return c.ClusName }

// BeginRefresh moves the current job list aside and returns it, ready
// for the caller to re-merge fresh sightings into c.Jobs and then
// discard whatever remains (spec.md §4.4 steps a–d).
func (c *Cluster) BeginRefresh() []*Job {
	aside := c.Jobs
	c.Jobs = nil
	return aside
}

// MoveJob appends j to the fresh list, the Go equivalent of
// list_move(&j->j_clus_link, &c->c_job_list).
func (c *Cluster) MoveJob(j *Job) { c.Jobs = append(c.Jobs, j) }

// SetCancel/Cancel manage the refresh ticker's lifetime; Cluster does
// not start its own ticker (the refresher in package agg does), it
// just remembers how to stop it.
func (c *Cluster) SetCancel(f func()) { c.cancel = f }
func (c *Cluster) Cancel() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Filesystem tracks rolling MDS/OSS load maxima recomputed from
// scratch on every fs_status refresh (spec.md §4.4).
type Filesystem struct {
	FSName string

	MDSLoad    [3]float64
	NRMDS      uint64
	NRMDT      uint64
	MaxMDSTask uint64

	OSSLoad    [3]float64
	NROSS      uint64
	NROST      uint64
	MaxOSSTask uint64

	NRNID  uint64
	cancel func()
}

func (f *Filesystem) Name() string { return f.FSName }

// Reset zeroes the accumulators at the start of a refresh cycle, the
// Go equivalent of xl_fs_cb's block of memset()/= 0 statements.
func (f *Filesystem) Reset() {
	f.MDSLoad, f.OSSLoad = [3]float64{}, [3]float64{}
	f.NRMDS, f.NRMDT, f.MaxMDSTask = 0, 0, 0
	f.NROSS, f.NROST, f.MaxOSSTask = 0, 0, 0
	f.NRNID = 0
}

func (f *Filesystem) SetCancel(cancel func()) { f.cancel = cancel }
func (f *Filesystem) Cancel() {
	if f.cancel != nil {
		f.cancel()
	}
}

// ServerStatus is the wire-only record parsed from one line of
// "/fs/<name>/_status": struct serv_status in the original.
type ServerStatus struct {
	NRMDT  uint64
	NROST  uint64
	Load   [3]float64
	NRTask uint64
	NRNID  uint64
}

// Merge folds one server's status sample into the filesystem's running
// maxima/counters, the Go translation of xl_fs_msg_cb.
func (f *Filesystem) Merge(ss ServerStatus) {
	if ss.NRMDT > 0 {
		for i := range f.MDSLoad {
			if ss.Load[i] > f.MDSLoad[i] {
				f.MDSLoad[i] = ss.Load[i]
			}
		}
		f.NRMDS++
		if ss.NRTask > f.MaxMDSTask {
			f.MaxMDSTask = ss.NRTask
		}
	} else if ss.NROST > 0 {
		for i := range f.OSSLoad {
			if ss.Load[i] > f.OSSLoad[i] {
				f.OSSLoad[i] = ss.Load[i]
			}
		}
		f.NROSS++
		if ss.NRTask > f.MaxOSSTask {
			f.MaxOSSTask = ss.NRTask
		}
	}
	f.NRMDT += ss.NRMDT
	f.NROST += ss.NROST
	if ss.NRNID > f.NRNID {
		f.NRNID = ss.NRNID
	}
}

// Server is the axis-1 leaf entity (a storage target host); it has no
// fields of its own beyond its name in the original source (servers
// only ever appear as a wire-format token, never as a standalone
// registry record with metadata), but a Registry[*Server] still exists
// so /serv/_info sizing and Top-K lookups share the same Named
// contract as every other entity kind.
type Server struct {
	ServName string
}

func (s *Server) Name() string { return s.ServName }
