/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package agg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/xltop/internal/xerr"
	"github.com/NVIDIA/xltop/transport"
)

func TestHandleSampleValid(t *testing.T) {
	store := NewStore(nil)
	topk := NewTopK(store)
	in := NewIngest(store, topk, "")

	cd := &transport.CtlData{
		Name: "sample",
		Args: "h1 fsA 1 2 0.1 0.2 0.3 4 5 100 200 7",
	}
	cerr := in.handleSample(nil, cd)
	require.NotNil(t, cerr)
	assert.Equal(t, xerr.OK, cerr.Kind)

	assert.Equal(t, 1, topk.Len())

	f, ok := store.FS.Lookup("fsA")
	require.True(t, ok)
	assert.Equal(t, uint64(1), f.NRMDT)

	_, ok = store.Hosts.Lookup("h1")
	assert.True(t, ok)
}

func TestHandleSampleWrongFieldCount(t *testing.T) {
	store := NewStore(nil)
	topk := NewTopK(store)
	in := NewIngest(store, topk, "")

	cd := &transport.CtlData{Name: "sample", Args: "h1 fsA 1 2 3"}
	cerr := in.handleSample(nil, cd)
	require.NotNil(t, cerr)
	assert.Equal(t, xerr.NrArgs, cerr.Kind)
	assert.Equal(t, 0, topk.Len())
}

func TestHandleSampleMalformedNumber(t *testing.T) {
	store := NewStore(nil)
	topk := NewTopK(store)
	in := NewIngest(store, topk, "")

	cd := &transport.CtlData{
		Name: "sample",
		Args: "h1 fsA notanumber 2 0.1 0.2 0.3 4 5 100 200 7",
	}
	cerr := in.handleSample(nil, cd)
	require.NotNil(t, cerr)
	assert.Equal(t, xerr.NrArgs, cerr.Kind)
}

func TestHandleSampleRequiresAuthWhenConfigured(t *testing.T) {
	store := NewStore(nil)
	topk := NewTopK(store)
	in := NewIngest(store, topk, "some-verify-key")

	c := &transport.Conn{}
	cd := &transport.CtlData{
		Name: "sample",
		Args: "h1 fsA 1 2 0.1 0.2 0.3 4 5 100 200 7",
	}
	cerr := in.handleSample(c, cd)
	require.NotNil(t, cerr)
	assert.Equal(t, xerr.NoAuth, cerr.Kind)
	assert.Equal(t, 0, topk.Len())

	in.auth.mark(c)
	cerr = in.handleSample(c, cd)
	require.NotNil(t, cerr)
	assert.Equal(t, xerr.OK, cerr.Kind)
	assert.Equal(t, 1, topk.Len())
}
