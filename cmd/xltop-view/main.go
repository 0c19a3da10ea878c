// Command xltop-view is the viewer: it resolves a positional selector
// into a /top query, polls an aggregator on an interval, and hands the
// parsed rows to a Renderer (spec.md §4.6, §6's CLI surface).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/NVIDIA/xltop/internal/xconf"
	"github.com/NVIDIA/xltop/internal/xlog"
	"github.com/NVIDIA/xltop/viewer"
)

func main() {
	app := cli.NewApp()
	app.Name = "xltop-view"
	app.Usage = "xltop viewer: polls an aggregator's top-K query surface"
	app.ArgsUsage = "[<type>[:<name>] ...]"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "conf, c", Usage: "path to a YAML config file"},
		cli.DurationFlag{Name: "interval, i", Value: 0, Usage: "poll interval"},
		cli.StringFlag{Name: "sort-key, k", Usage: "sort key hint, passed through to the aggregator verbatim (spec.md §9 Open Question: not locally interpreted)"},
		cli.IntFlag{Name: "limit, l", Value: 0, Usage: "maximum rows to display"},
		cli.IntFlag{Name: "remote-port, p", Value: 0, Usage: "aggregator HTTP port"},
		cli.StringFlag{Name: "remote-host, r", Usage: "aggregator host"},
		cli.BoolFlag{Name: "sum, s", Usage: "request cumulative sums instead of rates, passed through verbatim"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "xltop-view: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := xconf.DefaultView()
	if path := c.String("conf"); path != "" {
		if err := xconf.Load(path, &cfg); err != nil {
			return err
		}
	}
	if v := c.String("remote-host"); v != "" {
		cfg.RemoteHost = v
	}
	if v := c.Int("remote-port"); v != 0 {
		cfg.RemotePort = v
	}
	if d := c.Duration("interval"); d != 0 {
		cfg.Interval = d
	}
	if v := c.Int("limit"); v != 0 {
		cfg.Limit = v
	}

	sel, err := viewer.ResolveSelection([]string(c.Args()))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseURL := fmt.Sprintf("http://%s:%d", cfg.RemoteHost, cfg.RemotePort)
	d := viewer.NewDriver(baseURL, sel, cfg.Limit, cfg.Interval, viewer.PlainRenderer{W: os.Stdout})

	// sort-key/sum are accepted and forwarded but not locally
	// interpreted (spec.md §9's Open Question, decided in SPEC_FULL §5.5:
	// the aggregator's sort is fixed and server-chosen).
	if k := c.String("sort-key"); k != "" {
		d.Query += "&sort=" + k
	}
	if c.Bool("sum") {
		d.Query += "&sum=1"
	}

	xlog.Infof("xltop-view: polling %s every %s (%s)", baseURL, cfg.Interval, d.Query)
	return d.Run(ctx)
}
