package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulse-dev/pulse/internal/config"
	"github.com/pulse-dev/pulse/pkg/inspect"
	"github.com/pulse-dev/pulse/pkg/pulse"
)

func inspectCmd() *cobra.Command {
	var (
		addr string
		demo bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Serve the graph inspector",
		Long: `Serve the HTTP inspector for a pulse unit graph.

The inspector exposes registered units, dependency explanations,
hydration snapshots, Prometheus metrics, and a WebSocket stream of
live state changes.

With --demo a small self-mutating graph is constructed so the
endpoints have something to show.

Examples:
  pulse inspect
  pulse inspect --addr=:7070 --demo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// pulse.json supplies the address unless the flag overrides it.
			tracerName := config.DefaultTracerName
			snapshotTimeout := config.New().SnapshotTimeout()
			if cfg, err := config.LoadFromWorkingDir(); err == nil {
				if !cmd.Flags().Changed("addr") {
					addr = cfg.Inspect.Addr
				}
				tracerName = cfg.Inspect.TracerName
				snapshotTimeout = cfg.SnapshotTimeout()
			}
			return runInspect(addr, tracerName, snapshotTimeout, demo)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":6060", "Listen address")
	cmd.Flags().BoolVar(&demo, "demo", false, "Construct a demo unit graph")

	return cmd
}

func runInspect(addr, tracerName string, snapshotTimeout time.Duration, demo bool) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if demo {
		startDemoGraph()
		info("demo graph constructed")
	}

	printBanner()
	info("inspector on %s", addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := inspect.NewServer(
		inspect.WithAddr(addr),
		inspect.WithLogger(logger.With("component", "inspect")),
		inspect.WithTracerName(tracerName),
		inspect.WithSnapshotTimeout(snapshotTimeout),
	)
	return srv.ListenAndServe(ctx)
}

// startDemoGraph builds a small graph whose inputs drift on a timer, so
// the inspector's endpoints and WebSocket stream show live data.
func startDemoGraph() {
	heartbeat := pulse.NewSource("demo.heartbeat", 0)
	latency := pulse.NewSource("demo.latency-ms", 12)

	alive := pulse.NewGuard("demo.alive", func() (bool, error) {
		if heartbeat.Get()%7 == 6 {
			return false, pulse.NewReason("missed", "heartbeat missed")
		}
		return true, nil
	})
	fast := pulse.NewGuard("demo.fast", func() (bool, error) {
		ms := latency.Get()
		if ms > 100 {
			return false, pulse.Reasonf("slow", "latency %dms over budget", ms).
				WithMeta("latency_ms", ms)
		}
		return true, nil
	})
	pulse.All("demo.healthy", alive, fast)

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			pulse.Batch(func() {
				heartbeat.Update(func(n int) int { return n + 1 })
				latency.Update(func(ms int) int {
					return (ms*31 + 17) % 160
				})
			})
		}
	}()
}
