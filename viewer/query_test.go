/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package viewer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/NVIDIA/xltop/core"
)

// Testable Property 8: make_query({HOST, "n 1"}, {FS, "tank/data"}, {0,0}, 10)
// produces a query string containing the percent-encoded x0/x1 fields,
// the limit, and '&' field separators.
func TestBuildQuery(t *testing.T) {
	q := BuildQuery(core.Host, "n 1", core.FS, "tank/data", [2]int{0, 0}, 10)

	assert.Contains(t, q, "x0=HOST%3An%201")
	assert.Contains(t, q, "x1=FS%3Atank%2Fdata")
	assert.Contains(t, q, "limit=10")
	assert.Contains(t, q, "&")
}

func TestEscapeUnreserved(t *testing.T) {
	assert.Equal(t, "abc123.-~_", escape("abc123.-~_"))
	assert.Equal(t, "a%20b", escape("a b"))
	assert.Equal(t, "%2F", escape("/"))
}

func TestResolveSelectionDefaultsToAllRollups(t *testing.T) {
	sel, err := ResolveSelection(nil)
	assert.NoError(t, err)
	assert.Equal(t, core.All0, sel.Kind0)
	assert.Equal(t, "ALL", sel.Name0)
	assert.Equal(t, core.All1, sel.Kind1)
	assert.Equal(t, "ALL", sel.Name1)
}

func TestResolveSelectionHostAndFS(t *testing.T) {
	sel, err := ResolveSelection([]string{"host:n1", "fs:tank"})
	assert.NoError(t, err)
	assert.Equal(t, core.Host, sel.Kind0)
	assert.Equal(t, "n1", sel.Name0)
	assert.Equal(t, core.FS, sel.Kind1)
	assert.Equal(t, "tank", sel.Name1)
}

func TestResolveSelectionBareJobRequiresClus(t *testing.T) {
	_, err := ResolveSelection([]string{"job:abc"})
	assert.Error(t, err)

	sel, err := ResolveSelection([]string{"job:abc", "clus:c1"})
	assert.NoError(t, err)
	assert.Equal(t, "abc@c1", sel.Name0)
}

func TestResolveSelectionJobAlreadyQualified(t *testing.T) {
	sel, err := ResolveSelection([]string{"job:abc@c1"})
	assert.NoError(t, err)
	assert.Equal(t, "abc@c1", sel.Name0)
}
