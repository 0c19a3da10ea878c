// Driver polls an aggregator's /top endpoint on an interval and hands
// the parsed rows to a Renderer, the Go counterpart of xltop.c's
// top-level refresh loop (event_base timer -> curl_x_get("/top") ->
// ev_parse_top -> draw_screen).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package viewer

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/NVIDIA/xltop/internal/xerr"
	"github.com/NVIDIA/xltop/internal/xlog"
	"github.com/NVIDIA/xltop/xk"
)

// Renderer is given the freshly polled, already-sorted rows each
// interval; a curses screen, a plain writer, or a test double can all
// implement it.
type Renderer interface {
	Render(rows []xk.Key)
}

// Driver owns the HTTP client, the current query string, and the
// polling interval.
type Driver struct {
	BaseURL  string
	Client   *http.Client
	Query    string
	Interval time.Duration
	Renderer Renderer
}

// NewDriver builds a Driver from a resolved Selection and limit,
// encoding its /top query string via BuildQuery.
func NewDriver(baseURL string, sel Selection, limit int, interval time.Duration, r Renderer) *Driver {
	return &Driver{
		BaseURL:  baseURL,
		Client:   &http.Client{Timeout: interval},
		Query:    BuildQuery(sel.Kind0, sel.Name0, sel.Kind1, sel.Name1, [2]int{sel.D0, sel.D1}, limit),
		Interval: interval,
		Renderer: r,
	}
}

// Run polls on Interval until ctx is done. A failed fetch is logged and
// not retried within the same tick; the next tick tries again.
func (d *Driver) Run(ctx context.Context) error {
	t := time.NewTicker(d.Interval)
	defer t.Stop()
	for {
		if err := d.pollOnce(ctx); err != nil && ctx.Err() == nil {
			xlog.Warnf("viewer: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (d *Driver) pollOnce(ctx context.Context) error {
	rows, err := d.fetch(ctx)
	if err != nil {
		return err
	}
	d.Renderer.Render(rows)
	return nil
}

func (d *Driver) fetch(ctx context.Context) ([]xk.Key, error) {
	url := fmt.Sprintf("%s/top?%s", d.BaseURL, d.Query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, xerr.Wrap(err, "top request")
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, xerr.Wrap(err, "top fetch")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("top: unexpected status %d", resp.StatusCode)
	}
	return parseTopResponse(resp.Body)
}

func parseTopResponse(r interface {
	Read(p []byte) (int, error)
}) ([]xk.Key, error) {
	var rows []xk.Key
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		k, ok := xk.ParseTop(line)
		if !ok {
			continue
		}
		rows = append(rows, k)
	}
	return rows, sc.Err()
}
