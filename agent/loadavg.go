/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package agent

import (
	"os"
	"strconv"
	"strings"

	"github.com/lufia/iostat"
)

// readLoadAvg reads the 1/5/15-minute load averages from /proc/loadavg,
// matching the fields the original xl_fs_msg_cb carries verbatim from
// the node's own load average (spec.md §3's Filesystem rolling maxima).
func readLoadAvg() ([3]float64, error) {
	b, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return [3]float64{}, err
	}
	fields := strings.Fields(string(b))
	var out [3]float64
	for i := 0; i < 3 && i < len(fields); i++ {
		out[i], _ = strconv.ParseFloat(fields[i], 64)
	}
	return out, nil
}

// inFlight approximates nr_task (in-flight I/O count, spec.md §3) as
// the number of requests completed since the previous sample: the
// device's true queue depth isn't exposed by iostat.DriveStats, so this
// is a deliberate approximation, documented rather than guessed at a
// finer grain than the acquisition library actually supports.
func inFlight(prev, cur *iostat.DriveStats, dt float64) uint64 {
	prevTotal := prev.ReadCount + prev.WriteCount
	curTotal := cur.ReadCount + cur.WriteCount
	if curTotal <= prevTotal {
		return 0
	}
	return curTotal - prevTotal
}
