package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/motortwin/internal/config"
	"codeberg.org/mutker/motortwin/internal/dashboard"
	"codeberg.org/mutker/motortwin/internal/errors"
	"codeberg.org/mutker/motortwin/internal/logger"
	"codeberg.org/mutker/motortwin/internal/metrics"
	"codeberg.org/mutker/motortwin/internal/pid"
	"codeberg.org/mutker/motortwin/internal/pipeline"
	"codeberg.org/mutker/motortwin/internal/relay"
	"codeberg.org/mutker/motortwin/internal/transport"
	"golang.org/x/sync/errgroup"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	pidFile := pid.New("", pid.DefaultName)
	if err := pidFile.Write(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write PID file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go handleSignals(cancel)

	if err := run(ctx); err != nil {
		logger.ErrorWithCode(errors.New().Wrap(errors.ErrMainLoop, err)).Msg("Error in main loop")
	}
	cancel()

	if err := pidFile.Remove(); err != nil {
		logger.Error().Err(err).Msg("Failed to remove PID file")
	}
	logger.Info().Msg("Exiting...")
}

func run(ctx context.Context) error {
	if cfg.Broker.Embedded {
		broker, err := transport.NewBroker(cfg.Broker.EmbeddedAddress)
		if err != nil {
			return err
		}
		if err := broker.Start(); err != nil {
			return err
		}
		defer broker.Close()
	}

	p, err := pipeline.New(cfg.PipelineSettings())
	if err != nil {
		return errors.New().Wrap(errors.ErrInitApp, err)
	}

	recorder, err := metrics.NewService(cfg.MetricsOptions())
	if err != nil {
		return errors.New().Wrap(errors.ErrInitApp, err)
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close tick recorder")
		}
	}()
	if cfg.Metrics.Enabled {
		p.AddPublisher(metrics.NewPublisher(recorder))
	}

	dash := dashboard.New(cfg.DashboardOptions(), p)
	p.AddPublisher(dash)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Relay.Enabled {
		r := relay.New(cfg.RelayOptions())
		if err := r.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("Relay not reachable at startup")
		}
		p.AddPublisher(r)
		g.Go(func() error { return r.Run(ctx) })
	}

	sub := transport.NewSubscriber(cfg.TransportOptions(), p)

	g.Go(func() error { return p.Run(ctx) })
	g.Go(func() error { return dash.Run(ctx) })
	g.Go(func() error { return sub.Run(ctx) })

	return g.Wait()
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
