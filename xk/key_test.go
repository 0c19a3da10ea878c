/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package xk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/xltop/core"
)

// Testable Property 9: "JOB:abc@c FS:tank 100.5 0 0 0 1048576 0 0 0 0 0"
// parses to type=(JOB,FS), x=("abc@c","tank"), t=100.5, rate[WR_BYTES]=1048576.
func TestParseTopProperty9(t *testing.T) {
	line := "JOB:abc@c FS:tank 100.5 0 0 0 1048576 0 0 0 0 0"
	k, ok := ParseTop(line)
	require.True(t, ok)

	assert.Equal(t, core.Job, k.Type[0])
	assert.Equal(t, core.FS, k.Type[1])
	assert.Equal(t, "abc@c", k.X[0])
	assert.Equal(t, "tank", k.X[1])
	assert.Equal(t, 100.5, k.T)
	assert.Equal(t, float64(1048576), k.Rate[WRBytes])
}

func TestParseTopRoundTrip(t *testing.T) {
	k := Key{
		X:    [2]string{"n1", "tank"},
		Type: [2]core.Kind{core.Host, core.FS},
		T:    12.25,
	}
	k.Pending[WRBytes] = 1
	k.Rate[RDBytes] = 2.5
	k.Sum[NRReqs] = 99

	parsed, ok := ParseTop(k.FormatTop())
	require.True(t, ok)
	assert.Equal(t, k, parsed)
}

func TestParseTopMalformed(t *testing.T) {
	for _, line := range []string{
		"",
		"garbage",
		"HOST:n1 FS:tank notanumber 0 0 0 0 0 0 0 0 0",
		"HOST_NO_TYPE FS:tank 1 0 0 0 0 0 0 0 0 0",
	} {
		_, ok := ParseTop(line)
		assert.False(t, ok, "expected malformed line to be rejected: %q", line)
	}
}

func TestStatString(t *testing.T) {
	assert.Equal(t, "wr_bytes", WRBytes.String())
	assert.Equal(t, "rd_bytes", RDBytes.String())
	assert.Equal(t, "nr_reqs", NRReqs.String())
}
