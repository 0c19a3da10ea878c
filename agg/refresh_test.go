/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package agg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/singleflight"

	"github.com/NVIDIA/xltop/transport"
)

// Testable Property 7: after two successive /clus/<name> reconciliations
// with R1 = {j1@c, j2@c} then R2 = {j2@c, j3@c}, the job registry holds
// exactly {j2, j3} and j1 is gone.
func TestClusterRefresherReconciliation(t *testing.T) {
	responses := []string{
		"h1 j1@c owner1 title1 100 1\nh2 j2@c owner2 title2 100 1\n",
		"h2 j2@c owner2 title2 100 1\nh3 j3@c owner3 title3 100 1\n",
	}
	call := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/clus/c/_info", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("interval: 1\noffset: 0\n"))
	})
	mux.HandleFunc("/clus/c", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(responses[call]))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := NewStore(nil)
	src := &Source{BaseURL: srv.URL}
	reactor := transport.NewReactor(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reactor.Run(ctx)

	var group singleflight.Group
	r, err := NewClusterRefresher(ctx, store, src, reactor, &group, "c")
	require.NoError(t, err)
	require.NotNil(t, r)

	r.doRefresh(ctx)
	_, ok := store.Jobs.Lookup("j1@c")
	assert.True(t, ok)
	_, ok = store.Jobs.Lookup("j2@c")
	assert.True(t, ok)

	call = 1
	r.doRefresh(ctx)

	_, ok = store.Jobs.Lookup("j1@c")
	assert.False(t, ok, "j1 should have been released after not being re-sighted")
	_, ok = store.Jobs.Lookup("j2@c")
	assert.True(t, ok)
	_, ok = store.Jobs.Lookup("j3@c")
	assert.True(t, ok)
}
