// Registry is the Go translation of xltop.c's `_xl_lookup` macro and
// the underlying hash.h open-chaining table: a string-keyed
// lookup-or-insert structure, one instance per entity kind, sized from
// a hint obtained from the aggregator's "/<kind>/_info" endpoint.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package core

import (
	"github.com/OneOfOne/xxhash"
)

// Named is the minimal contract a record must satisfy to live in a
// Registry: its own canonical name, matching xl_host/xl_job/xl_clus/
// xl_fs's flexible trailing `m_name` field in the original C struct.
type Named interface {
	Name() string
}

// Registry is a generic, string-keyed, open (chained) hash table. It
// is owned by exactly one goroutine in this repo (the shared
// transport.Reactor, per spec.md §5's single-threaded-state
// invariant); it does not lock itself.
type Registry[T Named] struct {
	buckets [][]T
	size    uint64
}

// NewRegistry builds a registry with nbuckets buckets. A hint of zero
// falls back to a minimum bucket count, matching hash_table_init's
// behavior of never building a zero-sized table.
func NewRegistry[T Named](hint uint64) *Registry[T] {
	if hint == 0 {
		hint = 16
	}
	return &Registry[T]{buckets: make([][]T, hint), size: hint}
}

func (r *Registry[T]) bucket(name string) int {
	return int(xxhash.ChecksumString64(name) % r.size)
}

// Lookup returns the record named name, if present.
func (r *Registry[T]) Lookup(name string) (T, bool) {
	b := r.buckets[r.bucket(name)]
	for _, rec := range b {
		if rec.Name() == name {
			return rec, true
		}
	}
	var zero T
	return zero, false
}

// LookupOrCreate returns the existing record named name, or invokes
// zero() to build a fresh one, appends it to its chain, and returns
// it with created == true. This is _xl_lookup with its `create`
// argument forced true.
func (r *Registry[T]) LookupOrCreate(name string, zero func() T) (rec T, created bool) {
	i := r.bucket(name)
	for _, rec := range r.buckets[i] {
		if rec.Name() == name {
			return rec, false
		}
	}
	rec = zero()
	r.buckets[i] = append(r.buckets[i], rec)
	return rec, true
}

// Delete removes the record named name, if present.
func (r *Registry[T]) Delete(name string) {
	i := r.bucket(name)
	b := r.buckets[i]
	for j, rec := range b {
		if rec.Name() == name {
			r.buckets[i] = append(b[:j], b[j+1:]...)
			return
		}
	}
}

// Range calls f for every record in the registry, in unspecified order.
// Stops early if f returns false.
func (r *Registry[T]) Range(f func(T) bool) {
	for _, b := range r.buckets {
		for _, rec := range b {
			if !f(rec) {
				return
			}
		}
	}
}

// Len returns the number of records currently stored.
func (r *Registry[T]) Len() int {
	n := 0
	for _, b := range r.buckets {
		n += len(b)
	}
	return n
}
