// Command xltop-agentd is the monitoring agent: it samples local iostat
// counters and pushes them to an aggregator's control listener
// (spec.md §1: "monitoring agents that push periodic samples").
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

	"github.com/NVIDIA/xltop/agent"
	"github.com/NVIDIA/xltop/internal/xconf"
	"github.com/NVIDIA/xltop/internal/xlog"
)

func main() {
	app := cli.NewApp()
	app.Name = "xltop-agentd"
	app.Usage = "xltop monitoring agent: pushes periodic I/O samples to an aggregator"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "conf, c", Usage: "path to a YAML config file"},
		cli.StringFlag{Name: "remote-host, r", Usage: "aggregator host"},
		cli.IntFlag{Name: "remote-port, p", Usage: "aggregator control port"},
		cli.StringFlag{Name: "host", Usage: "this node's host name (defaults to os.Hostname)"},
		cli.StringFlag{Name: "fs", Usage: "filesystem name this agent reports for"},
		cli.StringFlag{Name: "role", Value: "oss", Usage: "mds or oss"},
		cli.StringFlag{Name: "mount-root", Usage: "device/mount whose iostat counters back this fs"},
		cli.IntFlag{Name: "nr-nid", Usage: "configured count of distinct network identifiers"},
		cli.DurationFlag{Name: "push-interval", Value: 0, Usage: "sample push interval"},
		cli.IntFlag{Name: "verbose, v", Usage: "log verbosity level"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		xlog.Errorf("xltop-agentd: %v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := xconf.DefaultAgent()
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
	if v := c.String("host"); v != "" {
		cfg.HostName = v
	} else if cfg.HostName == "" {
		h, err := os.Hostname()
		if err != nil {
			return err
		}
		cfg.HostName = h
	}
	if v := c.String("fs"); v != "" {
		cfg.FS = v
	}
	if cfg.FS == "" {
		return fmt.Errorf("xltop-agentd: --fs is required")
	}
	if d := c.Duration("push-interval"); d != 0 {
		cfg.PushInterval = d
	}
	xlog.SetVerbosity(c.Int("verbose"))
	defer xlog.Flush()

	role := agent.RoleOSS
	if c.String("role") == "mds" {
		role = agent.RoleMDS
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := &agent.Pusher{
		RemoteAddr:   fmt.Sprintf("%s:%d", cfg.RemoteHost, cfg.RemotePort),
		AuthToken:    cfg.AuthToken,
		PushInterval: cfg.PushInterval,
		RDBufSize:    16 * 1024,
		WRBufSize:    16 * 1024,
		Timeout:      5 * cfg.PushInterval,
		Collector: &agent.Collector{
			Host:      cfg.HostName,
			FS:        cfg.FS,
			Role:      role,
			MountRoot: c.String("mount-root"),
			NRNID:     uint64(c.Int("nr-nid")),
		},
	}
	xlog.Infof("xltop-agentd: pushing %s/%s samples to %s every %s", cfg.HostName, cfg.FS, p.RemoteAddr, cfg.PushInterval)
	return p.Run(ctx)
}
