// Package xk holds the cross-sectional sample record ("k" in the
// original xltop.c: struct xl_k) that both the aggregator's Top-K
// engine and the viewer driver operate on.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package xk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/NVIDIA/xltop/core"
)

// Stat indexes the fixed small set of per-second counters tracked per
// sample. NRStats is intentionally small and fixed, as spec.md §3
// requires.
type Stat int

const (
	WRBytes Stat = iota
	RDBytes
	NRReqs
	NRStats
)

var statNames = [NRStats]string{"wr_bytes", "rd_bytes", "nr_reqs"}

func (s Stat) String() string {
	if 0 <= s && int(s) < int(NRStats) {
		return statNames[s]
	}
	return fmt.Sprintf("stat(%d)", int(s))
}

// Key is one cross-sectional sample: one name on axis 0 paired with
// one name on axis 1, a timestamp, and three parallel stat arrays.
// Field order mirrors the original wire grammar exactly: t, then
// pending[], then rate[], then sum[] (original_source/xltop.c's
// top_msg_cb via SCN_K_STATS_FMT).
type Key struct {
	X    [2]string
	Type [2]core.Kind
	T    float64

	Pending [NRStats]float64
	Rate    [NRStats]float64 // EWMA of the per-second delta
	Sum     [NRStats]float64 // monotonic cumulative
}

// EWMARate folds a newly observed counter delta (over dt seconds)
// into the existing EWMA rate for stat s, with smoothing factor alpha
// in (0, 1]. This is the Go translation of the "rate is an EWMA of the
// underlying counter's per-second delta" invariant in spec.md §3; the
// original C source does not show the smoothing constant, so alpha is
// a caller-supplied parameter rather than a guessed literal.
func (k *Key) EWMARate(s Stat, delta, dt, alpha float64) {
	if dt <= 0 {
		return
	}
	instant := delta / dt
	k.Rate[s] = alpha*instant + (1-alpha)*k.Rate[s]
}

// FormatTop renders one /top response line in the grammar of spec.md
// §6: "<type0>:<name0> <type1>:<name1> <t> <pending…> <rate…> <sum…>".
func (k *Key) FormatTop() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%s %s:%s %s",
		k.Type[0].String(), k.X[0], k.Type[1].String(), k.X[1],
		strconv.FormatFloat(k.T, 'f', -1, 64))
	for _, v := range k.Pending {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	for _, v := range k.Rate {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	for _, v := range k.Sum {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return b.String()
}

// ParseTop parses one /top response line back into a Key. Malformed
// lines return ok == false and are dropped silently by callers
// (viewer.Driver's contract in spec.md §4.6).
func ParseTop(line string) (k Key, ok bool) {
	fields := strings.Fields(line)
	want := 2 + 1 + 3*int(NRStats)
	if len(fields) != want {
		return Key{}, false
	}

	for i := 0; i < 2; i++ {
		typ, name, found := strings.Cut(fields[i], ":")
		if !found {
			return Key{}, false
		}
		kind, err := core.ParseKind(typ)
		if err != nil {
			return Key{}, false
		}
		k.Type[i] = kind
		k.X[i] = name
	}

	t, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Key{}, false
	}
	k.T = t

	idx := 3
	for i := range k.Pending {
		v, err := strconv.ParseFloat(fields[idx], 64)
		if err != nil {
			return Key{}, false
		}
		k.Pending[i] = v
		idx++
	}
	for i := range k.Rate {
		v, err := strconv.ParseFloat(fields[idx], 64)
		if err != nil {
			return Key{}, false
		}
		k.Rate[i] = v
		idx++
	}
	for i := range k.Sum {
		v, err := strconv.ParseFloat(fields[idx], 64)
		if err != nil {
			return Key{}, false
		}
		k.Sum[i] = v
		idx++
	}

	return k, true
}
