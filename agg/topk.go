// TopK is the cross-sectional sample index: the Go translation of the
// original's top_k[] array plus the implicit map top_msg_cb populates
// it from, generalized to a real lookup structure instead of a
// fixed-size scan buffer (spec.md §4.5).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package agg

import (
	"sort"

	"github.com/NVIDIA/xltop/core"
	"github.com/NVIDIA/xltop/xk"
)

type rawKey struct {
	name0, name1 string
}

// TopK must only be touched from the transport.Reactor goroutine that
// owns the aggregator's entity state (spec.md §5's single-threaded
// invariant) — it does not lock itself.
type TopK struct {
	store *Store
	byKey map[rawKey]*xk.Key
}

// NewTopK builds a TopK bound to store, which it consults to resolve a
// raw (host, fs) sample's ancestor identity when a query asks for a
// coarser grouping than the ingest granularity (spec.md GLOSSARY's
// Depth).
func NewTopK(store *Store) *TopK {
	return &TopK{store: store, byKey: make(map[rawKey]*xk.Key)}
}

// Update replaces (or inserts) the latest raw sample for k's axis
// pair. Raw samples always arrive at (Host, FS) granularity
// (agg/ctl.go's handleSample); Query groups them up from there.
func (t *TopK) Update(k xk.Key) {
	t.byKey[rawKey{k.X[0], k.X[1]}] = &k
}

// Query is the Go translation of the x0/d0/x1/d1/limit query string
// (spec.md §6). Kind0/Kind1+Name0/Name1 are the filter: a Rollup kind
// matches every entity on that axis, a concrete kind matches only
// records whose ancestor at that kind equals the given name. D0/D1
// select the grouping granularity (spec.md GLOSSARY: "Depth... passed
// to the aggregator to select grouping granularity") independently of
// the filter: groupKind = filterKind - depth, so e.g. a default
// ALL_0/depth-2 query filters nothing on axis 0 but still groups and
// sums every raw sample up to its owning JOB.
type Query struct {
	Kind0, Kind1 core.Kind
	Name0, Name1 string
	D0, D1       int
	Limit        int
}

// groupKind0 is the axis-0 kind raw samples are summed up to, clamped
// to the HOST..ALL_0 range (a malformed or out-of-range d0 degrades to
// the nearest valid granularity rather than panicking).
func (q Query) groupKind0() core.Kind {
	return clampKind(int(q.Kind0)-q.D0, core.Host, core.All0)
}

// groupKind1 is the analogous axis-1 grouping kind, SERV..ALL_1.
func (q Query) groupKind1() core.Kind {
	return clampKind(int(q.Kind1)-q.D1, core.Serv, core.All1)
}

func clampKind(v int, lo, hi core.Kind) core.Kind {
	if v < int(lo) {
		return lo
	}
	if v > int(hi) {
		return hi
	}
	return core.Kind(v)
}

type groupKey struct {
	kind0, kind1 core.Kind
	name0, name1 string
}

// Query groups every raw sample whose ancestor matches q's filter up
// to q's requested granularity, sums their Pending/Rate/Sum fields per
// distinct group, and returns up to q.Limit groups sorted descending
// by rate[WRBytes]+rate[RDBytes] with ties broken by name (spec.md
// §9's "sort key is server-chosen" Open Question, decided in
// SPEC_FULL §5.5).
func (t *TopK) Query(q Query) []xk.Key {
	g0, g1 := q.groupKind0(), q.groupKind1()

	grouped := make(map[groupKey]*xk.Key)
	for _, k := range t.byKey {
		if !q.Kind0.Rollup() && t.store.ancestor0(k.X[0], q.Kind0) != q.Name0 {
			continue
		}
		if !q.Kind1.Rollup() && t.store.ancestor1(k.X[1], q.Kind1) != q.Name1 {
			continue
		}

		gn0 := t.store.ancestor0(k.X[0], g0)
		gn1 := t.store.ancestor1(k.X[1], g1)
		gk := groupKey{g0, g1, gn0, gn1}

		acc, ok := grouped[gk]
		if !ok {
			acc = &xk.Key{Type: [2]core.Kind{g0, g1}, X: [2]string{gn0, gn1}}
			grouped[gk] = acc
		}
		if k.T > acc.T {
			acc.T = k.T
		}
		for i := range acc.Pending {
			acc.Pending[i] += k.Pending[i]
		}
		for i := range acc.Rate {
			acc.Rate[i] += k.Rate[i]
		}
		for i := range acc.Sum {
			acc.Sum[i] += k.Sum[i]
		}
	}

	rows := make([]*xk.Key, 0, len(grouped))
	for _, k := range grouped {
		rows = append(rows, k)
	}

	sort.Slice(rows, func(i, j int) bool {
		ri := rows[i].Rate[xk.WRBytes] + rows[i].Rate[xk.RDBytes]
		rj := rows[j].Rate[xk.WRBytes] + rows[j].Rate[xk.RDBytes]
		if ri != rj {
			return ri > rj
		}
		if rows[i].X[0] != rows[j].X[0] {
			return rows[i].X[0] < rows[j].X[0]
		}
		return rows[i].X[1] < rows[j].X[1]
	})

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	out := make([]xk.Key, len(rows))
	for i, k := range rows {
		out[i] = *k
	}
	return out
}

// Len reports the number of distinct raw (host, fs) axis pairs
// currently tracked, prior to any query-time grouping.
func (t *TopK) Len() int { return len(t.byKey) }
