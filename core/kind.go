// Package core holds the closed entity-kind enumeration and the entity
// registry (spec.md §3, §4.2).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package core

import "fmt"

// Kind is the closed, ordered entity-kind enumeration. Axis 0
// (workload) is HOST < JOB < CLUS < ALL_0; axis 1 (storage) is
// SERV < FS < ALL_1. The numeric ordering doubles as "depth" per
// spec.md's Depth computation (§4.5, §6).
type Kind uint8

const (
	Host Kind = iota
	Job
	Clus
	All0
	Serv
	FS
	All1

	nrKinds
)

var kindNames = [nrKinds]string{
	Host: "HOST", Job: "JOB", Clus: "CLUS", All0: "ALL_0",
	Serv: "SERV", FS: "FS", All1: "ALL_1",
}

func (k Kind) String() string {
	if k < nrKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind maps a wire type token (e.g. "HOST", "ALL_1") back to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unrecognized type %q", s)
}

// Axis0 reports whether k belongs to the workload axis.
func (k Kind) Axis0() bool { return k <= All0 }

// Rollup reports whether k is one of the synthetic ALL_0/ALL_1 kinds
// that match every entity on their axis.
func (k Kind) Rollup() bool { return k == All0 || k == All1 }

// Depth is the difference between a queried concrete kind and the
// rollup kind a filter is applied at (spec.md's GLOSSARY entry for
// "Depth (d0/d1)"), used verbatim to build d0/d1 query parameters.
func Depth(queried, filterAt Kind) int { return int(queried) - int(filterAt) }

// InfoPath is the "/<kind>/_info" endpoint path for a kind (spec.md
// §4.2), or "" for the ALL rollups.
func (k Kind) InfoPath() string {
	switch k {
	case Host:
		return "host/_info"
	case Job:
		return "job/_info"
	case Clus:
		return "clus/_info"
	case Serv:
		return "serv/_info"
	case FS:
		return "fs/_info"
	default:
		return ""
	}
}
