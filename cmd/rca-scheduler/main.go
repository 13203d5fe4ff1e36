// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rca-engine/scheduler/internal/config"
	"github.com/rca-engine/scheduler/internal/errorhandling"
	"github.com/rca-engine/scheduler/internal/evaluator"
	"github.com/rca-engine/scheduler/internal/flowunit"
	"github.com/rca-engine/scheduler/internal/graph"
	"github.com/rca-engine/scheduler/internal/logging"
	"github.com/rca-engine/scheduler/internal/network/hopper"
	"github.com/rca-engine/scheduler/internal/options"
	"github.com/rca-engine/scheduler/internal/partition"
	"github.com/rca-engine/scheduler/internal/rcaerrors"
	"github.com/rca-engine/scheduler/internal/scheduler"
	"github.com/rca-engine/scheduler/internal/store"
	"github.com/rca-engine/scheduler/internal/store/postgres"
	"github.com/rca-engine/scheduler/internal/workerpool"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	logger := logging.HCLogger()
	defer panicHandler(logger)

	args := os.Args[1:]
	opts, err := options.GetGlobalOptions(args)
	if err != nil {
		logger.Error("failed to parse command-line options", "error", err)
		return 1
	}

	if _, ok := opts[options.Version]; ok {
		fmt.Printf("rca-scheduler %s\n", Version)
		return 0
	}
	if _, ok := opts[options.Help]; ok {
		printUsage()
		return 0
	}
	if dir, ok := opts[options.ChDir]; ok {
		if err := os.Chdir(dir); err != nil {
			logger.Error("failed to change working directory", "dir", dir, "error", err)
			return 1
		}
	}

	hostConfigPath := stringOpt(opts, "host-config", "host.hcl")
	graphPath := stringOpt(opts, "graph", "graph.hcl")
	tickInterval := durationOpt(opts, "tick-interval", 10*time.Second, logger)
	maxTicks := intOpt(opts, "max-ticks", 360, logger)
	workers := int64(intOpt(opts, "workers", 8, logger))
	metricsAddr := stringOpt(opts, "metrics-addr", "")
	postgresDSN := opts["postgres-dsn"]
	postgresTable := stringOpt(opts, "postgres-table", "flow_units")

	hostCfg, err := config.Load(hostConfigPath)
	if err != nil {
		logger.Error("failed to load host configuration", "path", hostConfigPath, "error", err)
		return 1
	}

	components, err := graph.LoadStatic(graphPath)
	if err != nil {
		logger.Error("failed to load graph declaration", "path", graphPath, "error", err)
		return 1
	}

	net := hopper.New(hopper.StaticResolver(hostCfg.Peers))
	defer func() {
		if err := net.Close(); err != nil {
			logger.Warn("error closing network facade", "error", err)
		}
	}()

	var persist store.Store
	if postgresDSN != "" {
		pgStore, err := postgres.Open(postgresDSN, postgresTable)
		if err != nil {
			logger.Error("failed to open postgres store", "error", err)
			return 1
		}
		defer func() {
			if err := pgStore.Close(); err != nil {
				logger.Warn("error closing postgres store", "error", err)
			}
		}()
		persist = pgStore
	}

	pedantic := options.IsGlobalOptionSet(options.Pedantic, args)
	registry := evaluator.New()
	registerDefaultEvaluators(registry, components, pedantic)

	if pedantic {
		if err := validateEvaluatorCoverage(registry, components); err != nil {
			logger.Error("evaluator coverage check failed under -pedantic; refusing to start", "error", err)
			return 1
		}
	}

	result, err := partition.Build(context.Background(), components, hostCfg, net, nil, persist, registry)
	if err != nil {
		logger.Error("failed to partition the graph for this host; refusing to start", "error", err)
		return 1
	}

	scheduledGraph := scheduler.FromPartitionResult(result)
	metrics := scheduler.NewMetrics(prometheus.DefaultRegisterer)
	pool := workerpool.New[flowunit.FlowUnit](workers)
	sched := scheduler.New(maxTicks, pool, scheduledGraph, metrics)

	logger.Info("scheduler starting",
		"nodes", scheduledGraph.NodeCount(),
		"tick_interval", tickInterval,
		"max_ticks", maxTicks,
		"workers", workers,
	)

	if metricsAddr != "" {
		stopMetrics := serveMetrics(metricsAddr, logger)
		defer stopMetrics()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown signal received")
			return 0
		case <-ticker.C:
			runTick(ctx, sched, logger)
		}
	}
}

// runTick drives one scheduler tick, converting a panic raised by sched.Run
// on this goroutine into a logged, suppressed error rather than letting it
// take down the process. Evaluators run on worker-pool goroutines, so a
// panic inside an evaluator is not recovered here.
func runTick(ctx context.Context, sched *scheduler.Scheduler, logger interface {
	Error(msg string, args ...any)
}) {
	_, err := errorhandling.Safe2(func() (struct{}, error) {
		sched.Run(ctx)
		return struct{}{}, nil
	}, func(err error) error {
		return rcaerrors.LifecycleError(err)
	})
	if err != nil {
		logger.Error("tick panicked; continuing with the next tick", "error", err)
	}
}

// registerDefaultEvaluators binds a generic evaluator to every declared
// vertex based on its graph.EvalKind, so that the scheduler is runnable out
// of the box from a bare graph declaration. A deployment with real
// domain-specific compute logic should build its own evaluator.Registry and
// register bespoke factories instead of calling this.
//
// Under -pedantic it registers nothing: every vertex must already have a
// factory bound (by a caller that registered its own bespoke ones first),
// and validateEvaluatorCoverage turns any gap into a startup error instead
// of letting a vertex silently run against one of these generic defaults.
func registerDefaultEvaluators(registry *evaluator.Registry, components []*graph.Component, pedantic bool) {
	if pedantic {
		return
	}
	for _, comp := range components {
		for _, level := range comp.Levels {
			for _, v := range level {
				switch v.Kind {
				case graph.KindMetricSource:
					registry.Register(v.Name, evaluator.MetricSourceFactory("value"))
				case graph.KindSummarizer:
					registry.Register(v.Name, evaluator.SummarizerFactory("value", "value", func(acc, next float64) float64 {
						return acc + next
					}, 0))
				default:
					registry.Register(v.Name, evaluator.ThresholdFactory("value", 0.8))
				}
			}
		}
	}
}

// validateEvaluatorCoverage eagerly checks that every vertex across every
// component — not just the ones local to this host — has a registered
// evaluator factory. It runs under -pedantic, ahead of partition.Build,
// so a coverage gap is reported up front instead of surfacing later as a
// ConfigurationError the first time this host picks up the vertex as local.
func validateEvaluatorCoverage(registry *evaluator.Registry, components []*graph.Component) error {
	var errs *multierror.Error
	for _, comp := range components {
		for _, level := range comp.Levels {
			for _, v := range level {
				if _, ok := registry.For(v, config.VertexParams{}); !ok {
					errs = multierror.Append(errs, evaluator.ErrNoFactory(v.Name))
				}
			}
		}
	}
	return errs.ErrorOrNil()
}

func serveMetrics(addr string, logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped unexpectedly", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func panicHandler(logger interface {
	Error(msg string, args ...any)
}) {
	if r := recover(); r != nil {
		logger.Error("recovered from panic in main", "panic", r)
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Println(`rca-scheduler: per-host root-cause-analysis tick scheduler

Usage: rca-scheduler [options]

Options:
  -host-config=PATH     host configuration HCL file (default "host.hcl")
  -graph=PATH            graph declaration HCL file (default "graph.hcl")
  -tick-interval=DURATION  time between ticks (default "10s")
  -max-ticks=N           tick counter wraparound period (default 360)
  -workers=N             worker pool concurrency (default 8)
  -postgres-dsn=DSN      optional Postgres DSN for flow unit persistence
  -postgres-table=NAME   Postgres table name (default "flow_units")
  -metrics-addr=ADDR     optional address to serve Prometheus metrics on
  -chdir=DIR             switch to DIR before resolving relative paths
  -pedantic              fail at startup instead of defaulting evaluators
                         for vertices with no registered factory
  -v, --version          print the version and exit`)
}

func stringOpt(opts map[string]string, key, fallback string) string {
	if v, ok := opts[key]; ok && v != "" {
		return v
	}
	return fallback
}

func intOpt(opts map[string]string, key string, fallback int, logger interface {
	Warn(msg string, args ...any)
}) int {
	v, ok := opts[key]
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn("invalid integer option; using default", "option", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func durationOpt(opts map[string]string, key string, fallback time.Duration, logger interface {
	Warn(msg string, args ...any)
}) time.Duration {
	v, ok := opts[key]
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn("invalid duration option; using default", "option", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}
