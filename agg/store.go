// Package agg implements the aggregator: the entity registries, the
// Top-K cross-sectional index, the periodic cluster/filesystem
// refreshers, and the HTTP/control surface agents and viewers talk to.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package agg

import (
	"github.com/NVIDIA/xltop/core"
)

// Store holds one Registry per entity kind, the Go translation of
// xl_hash_table[NR_X_TYPES] indexed by x_type.
type Store struct {
	Hosts   *core.Registry[*core.Host]
	Jobs    *core.Registry[*core.Job]
	Clus    *core.Registry[*core.Cluster]
	Servers *core.Registry[*core.Server]
	FS      *core.Registry[*core.Filesystem]
}

// NewStore builds a Store with per-kind bucket-count hints, matching
// xl_hash_init's "/<kind>/_info" size hint lookup (spec.md §4.2); a
// zero hint falls back to Registry's own default.
func NewStore(hints map[core.Kind]uint64) *Store {
	return &Store{
		Hosts:   core.NewRegistry[*core.Host](hints[core.Host]),
		Jobs:    core.NewRegistry[*core.Job](hints[core.Job]),
		Clus:    core.NewRegistry[*core.Cluster](hints[core.Clus]),
		Servers: core.NewRegistry[*core.Server](hints[core.Serv]),
		FS:      core.NewRegistry[*core.Filesystem](hints[core.FS]),
	}
}

func (s *Store) host(name string) *core.Host {
	h, _ := s.Hosts.LookupOrCreate(name, func() *core.Host { return &core.Host{HostName: name} })
	return h
}

func (s *Store) job(name string) *core.Job {
	j, _ := s.Jobs.LookupOrCreate(name, func() *core.Job { return &core.Job{JobName: name} })
	return j
}

func (s *Store) cluster(name string) (*core.Cluster, bool) {
	return s.Clus.LookupOrCreate(name, func() *core.Cluster { return &core.Cluster{ClusName: name} })
}

func (s *Store) filesystem(name string) (*core.Filesystem, bool) {
	return s.FS.LookupOrCreate(name, func() *core.Filesystem { return &core.Filesystem{FSName: name} })
}

func (s *Store) server(name string) *core.Server {
	sv, _ := s.Servers.LookupOrCreate(name, func() *core.Server { return &core.Server{ServName: name} })
	return sv
}

// ancestor0 resolves a raw axis-0 identity (always a host name, per
// handleSample's ingest) up to kind, walking Host -> Job -> Cluster
// (spec.md GLOSSARY's "Depth... select[s] grouping granularity"). If a
// parent link isn't known yet (a sample can arrive before a cluster
// refresh has populated Host.Job, or before any refresher has learned
// which cluster owns a job), resolution falls back to the most
// specific identity it can still name rather than dropping the row.
func (s *Store) ancestor0(hostName string, kind core.Kind) string {
	switch kind {
	case core.Host:
		return hostName
	case core.All0:
		return "ALL"
	}

	h, ok := s.Hosts.Lookup(hostName)
	if !ok || h.Job == nil {
		return hostName
	}
	if kind == core.Job {
		return h.Job.Name()
	}

	// kind == core.Clus: Job carries no back-reference to its owning
	// Cluster (core.Job's own doc comment: only Cluster.Jobs ever
	// references it, mirroring the original xl_job), so the cluster is
	// found by checking which Cluster currently lists the job.
	if name, ok := s.clusterOfJob(h.Job.Name()); ok {
		return name
	}
	return h.Job.Name()
}

func (s *Store) clusterOfJob(jobName string) (string, bool) {
	var name string
	var found bool
	s.Clus.Range(func(c *core.Cluster) bool {
		for _, j := range c.Jobs {
			if j.Name() == jobName {
				name, found = c.Name(), true
				return false
			}
		}
		return true
	})
	return name, found
}

// ancestor1 resolves a raw axis-1 identity (always a filesystem name:
// %sample carries host+fs, never an individual server, see DESIGN.md)
// up to kind. FS and SERV collapse to the same raw identity since no
// per-server raw sample exists to group further down; ALL_1 collapses
// every filesystem into one row.
func (s *Store) ancestor1(fsName string, kind core.Kind) string {
	if kind == core.All1 {
		return "ALL"
	}
	return fsName
}
