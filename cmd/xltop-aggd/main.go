// Command xltop-aggd is the aggregator binary: it serves agent control
// connections, the HTTP query surface, and the periodic cluster/
// filesystem refreshers (spec.md §2's "central aggregator").
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/NVIDIA/xltop/agg"
	"github.com/NVIDIA/xltop/internal/xconf"
	"github.com/NVIDIA/xltop/internal/xlog"
)

func main() {
	app := cli.NewApp()
	app.Name = "xltop-aggd"
	app.Usage = "xltop aggregator: indexes agent samples and answers top-K queries"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "conf, c", Usage: "path to a YAML config file"},
		cli.StringFlag{Name: "listen-addr", Usage: "agent control listener address"},
		cli.StringFlag{Name: "http-addr", Usage: "HTTP query surface address"},
		cli.StringFlag{Name: "metrics-addr", Usage: "Prometheus /metrics address"},
		cli.IntFlag{Name: "verbose, v", Usage: "log verbosity level"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		xlog.Errorf("xltop-aggd: %v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := xconf.DefaultAggregator()
	if path := c.String("conf"); path != "" {
		if err := xconf.Load(path, &cfg); err != nil {
			return err
		}
	}
	if v := c.String("listen-addr"); v != "" {
		cfg.ListenAddr = v
	}
	if v := c.String("http-addr"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := c.String("metrics-addr"); v != "" {
		cfg.MetricsAddr = v
	}
	xlog.SetVerbosity(c.Int("verbose"))
	defer xlog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	xlog.Infof("xltop-aggd: listening agent=%s http=%s metrics=%s", cfg.ListenAddr, cfg.HTTPAddr, cfg.MetricsAddr)
	a := agg.New(cfg)
	return a.Serve(ctx)
}
