/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOrdering(t *testing.T) {
	assert.True(t, Host < Job)
	assert.True(t, Job < Clus)
	assert.True(t, Clus < All0)
	assert.True(t, Serv < FS)
	assert.True(t, FS < All1)
}

func TestParseKindRoundTrip(t *testing.T) {
	for _, k := range []Kind{Host, Job, Clus, All0, Serv, FS, All1} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
}

func TestParseKindUnknown(t *testing.T) {
	_, err := ParseKind("NOPE")
	assert.Error(t, err)
}

func TestRollupAndAxis0(t *testing.T) {
	assert.True(t, All0.Rollup())
	assert.True(t, All1.Rollup())
	assert.False(t, Host.Rollup())

	assert.True(t, Host.Axis0())
	assert.True(t, Job.Axis0())
	assert.False(t, Serv.Axis0())
	assert.False(t, FS.Axis0())
}

func TestDepth(t *testing.T) {
	assert.Equal(t, 0, Depth(Host, Host))
	assert.Equal(t, 2, Depth(Clus, Host))
	assert.Equal(t, -2, Depth(Host, Clus))
}
