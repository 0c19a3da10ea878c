/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package viewer

import (
	"fmt"
	"strings"

	"github.com/NVIDIA/xltop/core"
)

// axis0Kinds and axis1Kinds list, most general to most specific, the kinds a
// positional selector on each axis may name (xl_sep/X_ALL_0../X_HOST
// and X_ALL_1../X_SERV walked in xltop.c's main()).
var axis0Kinds = []core.Kind{core.All0, core.Clus, core.Job, core.Host}
var axis1Kinds = []core.Kind{core.All1, core.FS, core.Serv}

// ParseSelector splits a positional CLI argument of the form
// "<type>" or "<type>:<name>" (xl_sep), case-insensitively matching
// type against the Kind enum.
func ParseSelector(s string) (kind core.Kind, name string, err error) {
	typ, rest, hasName := strings.Cut(s, ":")
	if !hasName {
		typ, rest, hasName = strings.Cut(s, "=")
	}
	k, err := core.ParseKind(strings.ToUpper(typ))
	if err != nil {
		return 0, "", fmt.Errorf("unrecognized type %q", typ)
	}
	if hasName {
		name = rest
	}
	return k, name, nil
}

// Selection is the fully resolved two-axis query shape BuildQuery
// needs: the most specific named kind+name on each axis and the depth
// pair from that kind down to the "group-by" kind the selectors imply
// (c[0]/c[1] in xltop.c).
type Selection struct {
	Kind0, Kind1 core.Kind
	Name0, Name1 string
	D0, D1       int
}

// ResolveSelection translates the positional-argument walk in
// xltop.c's main() (lines ~1129-1189): classify each "<type>[:<name>]"
// arg onto its axis, then pick the most specific named kind (falling
// back to the ALL rollup) and the most specific kind any selector
// touched on that axis (JOB / FS when none was), and fully-qualify a bare job id against a clus
// selector if one was given.
func ResolveSelection(args []string) (Selection, error) {
	xSet := make(map[core.Kind]string)
	tSet := make(map[core.Kind]bool)

	for _, a := range args {
		k, name, err := ParseSelector(a)
		if err != nil {
			return Selection{}, err
		}
		tSet[k] = true
		if name != "" {
			xSet[k] = name
		}
	}

	t0, x0 := core.All0, "ALL"
	c0 := core.Job
	for _, k := range axis0Kinds {
		if tSet[k] {
			c0 = k
		}
		if n, ok := xSet[k]; ok {
			t0, x0 = k, n
		}
	}

	t1, x1 := core.All1, "ALL"
	c1 := core.FS
	for _, k := range axis1Kinds {
		if tSet[k] {
			c1 = k
		}
		if n, ok := xSet[k]; ok {
			t1, x1 = k, n
		}
	}

	if t0 == core.Job && !strings.Contains(x0, "@") {
		clus, ok := xSet[core.Clus]
		if !ok {
			return Selection{}, fmt.Errorf("must specify job as JOBID@CLUS or pass clus=CLUS")
		}
		x0 = x0 + "@" + clus
	}

	return Selection{
		Kind0: t0, Kind1: t1,
		Name0: x0, Name1: x1,
		D0: core.Depth(t0, c0), D1: core.Depth(t1, c1),
	}, nil
}
