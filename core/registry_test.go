/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookupOrCreateReturnsSameRecord(t *testing.T) {
	r := NewRegistry[*Host](4)

	h1, created := r.LookupOrCreate("n1", func() *Host { return &Host{HostName: "n1"} })
	require.True(t, created)

	h2, created := r.LookupOrCreate("n1", func() *Host { return &Host{HostName: "n1"} })
	assert.False(t, created)
	assert.Same(t, h1, h2)
}

func TestRegistryDelete(t *testing.T) {
	r := NewRegistry[*Host](4)
	r.LookupOrCreate("n1", func() *Host { return &Host{HostName: "n1"} })

	r.Delete("n1")
	_, ok := r.Lookup("n1")
	assert.False(t, ok)
}

func TestRegistryLen(t *testing.T) {
	r := NewRegistry[*Host](4)
	for _, name := range []string{"a", "b", "c"} {
		r.LookupOrCreate(name, func() *Host { return &Host{HostName: name} })
	}
	assert.Equal(t, 3, r.Len())
}

func TestRegistryZeroHintFallsBack(t *testing.T) {
	r := NewRegistry[*Host](0)
	assert.NotPanics(t, func() {
		r.LookupOrCreate("n1", func() *Host { return &Host{HostName: "n1"} })
	})
}
