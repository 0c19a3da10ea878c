// Package xconf loads the small YAML configuration structs used by the
// aggregator, agent, and viewer binaries. This is the collaborator
// config-file loader spec.md §1 keeps out of core scope — it still
// needs a concrete shape to wire main() against.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package xconf

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Debug mirrors the C build's `#if DEBUG` gate (cl_conn_init's TODO
// about asserting the control table is sorted). It is off unless
// XLTOP_DEBUG is set in the environment.
var Debug = os.Getenv("XLTOP_DEBUG") != ""

// Aggregator is the aggd configuration.
type Aggregator struct {
	ListenAddr    string        `yaml:"listen_addr"`   // agent control connections
	HTTPAddr      string        `yaml:"http_addr"`     // /clus, /fs, /top query surface
	MetricsAddr   string        `yaml:"metrics_addr"`  // /metrics (promhttp)
	CtlChar       byte          `yaml:"ctl_char"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	RDBufSize     int           `yaml:"rd_buf_size"`
	WRBufSize     int           `yaml:"wr_buf_size"`
	ClusInterval  time.Duration `yaml:"clus_interval"`
	FSInterval    time.Duration `yaml:"fs_status_interval"`
	AuthVerifyKey string        `yaml:"auth_verify_key"` // empty disables the %auth check

	// SourceAddr is the upstream status provider the cluster/filesystem
	// refreshers pull "/clus", "/clus/<name>", "/fs", "/fs/<name>/_status"
	// from (spec.md §4.4: "re-pull membership/status from the
	// aggregator's HTTP surface" — here, the surface of whatever
	// upstream scheduler/health feed is configured; an aggd can itself
	// be pointed at another aggd for a federated deployment, or at a
	// thin bridge process). Empty disables discovery: no refresher is
	// created, and the admin endpoints only re-run refreshers that
	// already exist.
	SourceAddr     string        `yaml:"source_addr"`
	DiscoverPeriod time.Duration `yaml:"discover_period"`
}

// DefaultAggregator returns the baseline configuration, analogous to
// the literal defaults sprinkled through xltop.c (e.g. fs_status_interval = 30).
func DefaultAggregator() Aggregator {
	return Aggregator{
		ListenAddr:     ":9901",
		HTTPAddr:       ":9900",
		MetricsAddr:    ":9902",
		CtlChar:        '%',
		IdleTimeout:    60 * time.Second,
		RDBufSize:      64 * 1024,
		WRBufSize:      64 * 1024,
		ClusInterval:   30 * time.Second,
		FSInterval:     30 * time.Second,
		DiscoverPeriod: 60 * time.Second,
	}
}

// Agent is the agentd configuration.
type Agent struct {
	RemoteHost   string        `yaml:"remote_host"`
	RemotePort   int           `yaml:"remote_port"`
	HostName     string        `yaml:"host_name"`
	FS           string        `yaml:"fs"`
	PushInterval time.Duration `yaml:"push_interval"`
	AuthToken    string        `yaml:"auth_token"`
}

func DefaultAgent() Agent {
	return Agent{
		RemoteHost:   "localhost",
		RemotePort:   9901,
		PushInterval: 10 * time.Second,
	}
}

// View is the xltop-view configuration; most fields are normally set by
// CLI flags (SPEC_FULL §5.8) and -c/--conf only overrides their defaults.
type View struct {
	RemoteHost string        `yaml:"remote_host"`
	RemotePort int           `yaml:"remote_port"`
	Interval   time.Duration `yaml:"interval"`
	Limit      int           `yaml:"limit"`
}

func DefaultView() View {
	return View{
		RemoteHost: "localhost",
		RemotePort: 9900,
		Interval:   2 * time.Second,
		Limit:      20,
	}
}

// Load decodes YAML from path into dst, which must be a pointer to an
// Aggregator or Agent (or anything else callers choose to decode).
func Load(path string, dst any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(b, dst); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}
