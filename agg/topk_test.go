/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package agg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/xltop/core"
	"github.com/NVIDIA/xltop/xk"
)

func rawSample(host, fs string, wr, rd, reqs float64) xk.Key {
	k := xk.Key{X: [2]string{host, fs}, Type: [2]core.Kind{core.Host, core.FS}}
	k.Sum[xk.WRBytes] = wr
	k.Sum[xk.RDBytes] = rd
	k.Sum[xk.NRReqs] = reqs
	k.Rate[xk.WRBytes] = wr
	k.Rate[xk.RDBytes] = rd
	return k
}

// Testable Property: a HOST/FS-level query with no grouping reflects
// raw ingested rows one-to-one.
func TestTopKQueryHostLevel(t *testing.T) {
	store := NewStore(nil)
	topk := NewTopK(store)

	topk.Update(rawSample("h1", "fsA", 10, 5, 1))
	topk.Update(rawSample("h2", "fsA", 20, 5, 1))

	rows := topk.Query(Query{Kind0: core.Host, Name0: "h1", Kind1: core.FS, Name1: "fsA"})
	require.Len(t, rows, 1)
	assert.Equal(t, "h1", rows[0].X[0])
	assert.Equal(t, 10.0, rows[0].Sum[xk.WRBytes])
}

// Testable Property: an ALL_0/depth-2 query (the viewer's default view,
// per spec.md's GLOSSARY Depth entry) groups raw HOST samples up to JOB
// and sums their stats, rather than returning one row per host.
func TestTopKQueryGroupsByJob(t *testing.T) {
	store := NewStore(nil)
	topk := NewTopK(store)

	h1 := store.host("h1")
	h2 := store.host("h2")
	h3 := store.host("h3")
	j1 := store.job("j1@c")
	j2 := store.job("j2@c")
	h1.Job, h2.Job = j1, j1
	h3.Job = j2

	topk.Update(rawSample("h1", "fsA", 10, 0, 1))
	topk.Update(rawSample("h2", "fsA", 20, 0, 1))
	topk.Update(rawSample("h3", "fsA", 5, 0, 1))

	rows := topk.Query(Query{
		Kind0: core.All0, Kind1: core.All1,
		D0: core.Depth(core.All0, core.Job),
	})
	require.Len(t, rows, 2)

	byName := map[string]xk.Key{}
	for _, r := range rows {
		byName[r.X[0]] = r
	}
	require.Contains(t, byName, "j1@c")
	require.Contains(t, byName, "j2@c")
	assert.Equal(t, 30.0, byName["j1@c"].Sum[xk.WRBytes])
	assert.Equal(t, 5.0, byName["j2@c"].Sum[xk.WRBytes])
	assert.Equal(t, core.Job, byName["j1@c"].Type[0])
}

// Testable Property: grouping to CLUS resolves through the job->cluster
// reverse scan (core.Job carries no back-reference of its own).
func TestTopKQueryGroupsByCluster(t *testing.T) {
	store := NewStore(nil)
	topk := NewTopK(store)

	h1 := store.host("h1")
	h2 := store.host("h2")
	j1 := store.job("j1@c")
	j2 := store.job("j2@c")
	h1.Job, h2.Job = j1, j2

	clus, _ := store.cluster("c")
	clus.MoveJob(j1)
	clus.MoveJob(j2)

	topk.Update(rawSample("h1", "fsA", 10, 0, 1))
	topk.Update(rawSample("h2", "fsA", 7, 0, 1))

	rows := topk.Query(Query{
		Kind0: core.All0, Kind1: core.All1,
		D0: core.Depth(core.All0, core.Clus),
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "c", rows[0].X[0])
	assert.Equal(t, 17.0, rows[0].Sum[xk.WRBytes])
}

// Testable Property: a concrete-kind filter (JOB) only matches rows
// whose ancestor at that kind equals the requested name.
func TestTopKQueryFiltersByJob(t *testing.T) {
	store := NewStore(nil)
	topk := NewTopK(store)

	h1 := store.host("h1")
	h2 := store.host("h2")
	j1 := store.job("j1@c")
	j2 := store.job("j2@c")
	h1.Job, h2.Job = j1, j2

	topk.Update(rawSample("h1", "fsA", 10, 0, 1))
	topk.Update(rawSample("h2", "fsA", 20, 0, 1))

	rows := topk.Query(Query{Kind0: core.Job, Name0: "j1@c", Kind1: core.All1})
	require.Len(t, rows, 1)
	assert.Equal(t, "j1@c", rows[0].X[0])

	rows = topk.Query(Query{Kind0: core.Job, Name0: "nonexistent@c", Kind1: core.All1})
	assert.Len(t, rows, 0)
}

// Testable Property: a host with no Job assigned yet still resolves
// (falls back to its own name) rather than being dropped from a
// coarser-grained query.
func TestTopKQueryUnassignedHostFallsBack(t *testing.T) {
	store := NewStore(nil)
	topk := NewTopK(store)

	topk.Update(rawSample("orphan", "fsA", 3, 0, 1))

	rows := topk.Query(Query{Kind0: core.All0, Kind1: core.All1, D0: core.Depth(core.All0, core.Job)})
	require.Len(t, rows, 1)
	assert.Equal(t, "orphan", rows[0].X[0])
}

// Testable Property: Limit caps the result set after sorting
// descending by wr+rd rate.
func TestTopKQueryLimitAndSort(t *testing.T) {
	store := NewStore(nil)
	topk := NewTopK(store)

	topk.Update(rawSample("h1", "fsA", 1, 1, 1))
	topk.Update(rawSample("h2", "fsA", 100, 0, 1))
	topk.Update(rawSample("h3", "fsA", 50, 0, 1))

	rows := topk.Query(Query{Kind0: core.All0, Kind1: core.All1, D0: core.Depth(core.All0, core.Host), Limit: 2})
	require.Len(t, rows, 2)
	assert.Equal(t, "h2", rows[0].X[0])
	assert.Equal(t, "h3", rows[1].X[0])
}

func TestTopKUpdateReplacesLatestSample(t *testing.T) {
	store := NewStore(nil)
	topk := NewTopK(store)

	topk.Update(rawSample("h1", "fsA", 1, 0, 0))
	topk.Update(rawSample("h1", "fsA", 9, 0, 0))

	assert.Equal(t, 1, topk.Len())
	rows := topk.Query(Query{Kind0: core.Host, Name0: "h1", Kind1: core.FS, Name1: "fsA"})
	require.Len(t, rows, 1)
	assert.Equal(t, 9.0, rows[0].Sum[xk.WRBytes])
}
