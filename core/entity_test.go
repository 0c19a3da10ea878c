/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobSeedOnlyAppliesOnce(t *testing.T) {
	j := &Job{JobName: "j1@c"}
	start := time.Unix(100, 0)
	j.Seed("alice", "first-title", start, 4)
	j.Seed("bob", "second-title", time.Unix(200, 0), 8)

	assert.Equal(t, "alice", j.Owner)
	assert.Equal(t, "first-title", j.Title)
	assert.Equal(t, uint64(4), j.NRHosts)
	assert.Equal(t, start, j.Start)
}

func TestClusterBeginRefreshMoveJob(t *testing.T) {
	c := &Cluster{ClusName: "c"}
	j1 := &Job{JobName: "j1@c"}
	c.MoveJob(j1)

	aside := c.BeginRefresh()
	assert.Equal(t, []*Job{j1}, aside)
	assert.Empty(t, c.Jobs)

	j2 := &Job{JobName: "j2@c"}
	c.MoveJob(j2)
	assert.Equal(t, []*Job{j2}, c.Jobs)
}

func TestFilesystemMergeAndReset(t *testing.T) {
	f := &Filesystem{FSName: "tank"}

	f.Merge(ServerStatus{NRMDT: 1, Load: [3]float64{1, 2, 3}, NRTask: 5, NRNID: 10})
	f.Merge(ServerStatus{NRMDT: 1, Load: [3]float64{4, 1, 1}, NRTask: 2, NRNID: 5})

	assert.Equal(t, [3]float64{4, 2, 3}, f.MDSLoad)
	assert.Equal(t, uint64(2), f.NRMDS)
	assert.Equal(t, uint64(5), f.MaxMDSTask)
	assert.Equal(t, uint64(10), f.NRNID)

	f.Merge(ServerStatus{NROST: 1, Load: [3]float64{9, 9, 9}, NRTask: 1, NRNID: 1})
	assert.Equal(t, uint64(1), f.NROSS)

	f.Reset()
	assert.Equal(t, [3]float64{}, f.MDSLoad)
	assert.Equal(t, uint64(0), f.NRMDS)
	assert.Equal(t, uint64(0), f.NRNID)
}
