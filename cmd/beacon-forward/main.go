package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	beacon "github.com/itzg/beacon-sender"
)

// Build variables - set by ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var configPath string
	var defaultTag string
	var metricsAddr string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "YAML config file")
	flag.StringVar(&defaultTag, "tag", "beacon.forward", "tag for events that carry none")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9102")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("beacon-forward %s (%s)\n", version, commit)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, defaultTag, metricsAddr, logger); err != nil {
		logger.Error("forwarding failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg beacon.Config, defaultTag, metricsAddr string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	metrics, err := beacon.NewMetrics(reg)
	if err != nil {
		return err
	}

	output, err := beacon.NewOutput(cfg, beacon.WithLogger(logger), beacon.WithMetrics(metrics))
	if err != nil {
		return err
	}

	var transportFailures atomic.Int64
	// The buffer outlives the signal context so the final flush still runs on shutdown.
	buffer, err := beacon.NewBuffer(context.Background(), output, cfg.Buffer, func(err error) {
		logger.Warn("chunk not delivered", zap.Error(err))
		var transportErr *beacon.TransportError
		if errors.As(err, &transportErr) {
			transportFailures.Add(1)
		}
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan event)
	readErr := make(chan error, 1)
	go func() {
		readErr <- decodeEvents(runCtx, os.Stdin, defaultTag, events)
		close(events)
	}()

	g, gctx := errgroup.WithContext(runCtx)

	if metricsAddr != "" {
		server := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return server.Close()
		})
	}

	g.Go(func() error {
		defer cancel()
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return <-readErr
				}
				if err := buffer.Emit(ev.tag, ev.time, ev.record); err != nil {
					return err
				}
			}
		}
	})

	err = g.Wait()
	err = multierr.Append(err, buffer.Close())
	if err == nil && transportFailures.Load() > 0 {
		err = fmt.Errorf("%d chunk(s) failed in transport", transportFailures.Load())
	}
	return err
}
