package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/enriquegit/edge-person-detector/internal/camera"
	"github.com/enriquegit/edge-person-detector/internal/config"
	"github.com/enriquegit/edge-person-detector/internal/detection"
	"github.com/enriquegit/edge-person-detector/internal/labels"
	"github.com/enriquegit/edge-person-detector/internal/model"
	"github.com/enriquegit/edge-person-detector/internal/report"
	"github.com/enriquegit/edge-person-detector/internal/sampler"
	"github.com/enriquegit/edge-person-detector/internal/status"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	logFormat := flag.String("log-format", "json", "Log format: json or text")
	cycles := flag.Int("cycles", -1, "Stop after N cycles (overrides max_cycles, 0 = run forever)")
	flag.Parse()

	slog.SetDefault(newLogger(*logFormat, *debug))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err, "config", *configPath)
		os.Exit(1)
	}
	if *cycles >= 0 {
		cfg.MaxCycles = *cycles
	}

	slog.Info("starting person counter",
		"config", *configPath,
		"client_id", cfg.ClientID,
		"camera", cfg.Camera.Backend,
		"model", cfg.Model.Backend,
		"mqtt", cfg.MQTT.Enabled,
		"debug", *debug,
	)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	agent := sampler.NewAgent(openers(cfg), sampler.Settings{
		Interval:    cfg.SampleInterval,
		MaxCycles:   cfg.MaxCycles,
		Threshold:   *cfg.Detection.Threshold,
		TargetLabel: cfg.Detection.TargetLabel,
		ScaleX:      cfg.Model.ScaleX,
		ScaleY:      cfg.Model.ScaleY,
	})

	var statusServer *status.Server
	if cfg.Status.Listen != "" {
		statusServer = status.NewServer(cfg.Status.Listen, agent)
		if err := statusServer.Start(); err != nil {
			slog.Error("failed to start status server", "error", err)
			os.Exit(1)
		}
	}

	// Run agent in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- agent.Run(ctx) // Always send, even if nil
	}()

	// Wait for shutdown signal or completion
	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()

		// the current cycle finishes before the agent stops
		select {
		case runErr = <-errChan:
		case <-time.After(cfg.ShutdownTimeout):
			slog.Error("shutdown timed out", "timeout", cfg.ShutdownTimeout)
			os.Exit(1)
		}
	case runErr = <-errChan:
	}

	if statusServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("status server shutdown failed", "error", err)
		}
		shutdownCancel()
	}

	if runErr != nil {
		slog.Error("person counter failed", "error", runErr, "state", agent.State().String())
		os.Exit(1)
	}

	slog.Info("person counter stopped successfully", "state", agent.State().String())
}

// openers binds configuration to the session resources.
func openers(cfg *config.Config) sampler.Openers {
	o := sampler.Openers{
		Camera: func(ctx context.Context) (camera.Camera, error) {
			return camera.Open(ctx, camera.Config{
				Backend:  cfg.Camera.Backend,
				Width:    cfg.Camera.Width,
				Height:   cfg.Camera.Height,
				Device:   cfg.Camera.Device,
				URL:      cfg.Camera.URL,
				Pipeline: cfg.Camera.Pipeline,
				Path:     cfg.Camera.Path,
				Timeout:  cfg.Camera.Timeout,
			})
		},
		Model: func(context.Context) (model.Model, error) {
			return model.Load(model.Config{
				Backend:       cfg.Model.Backend,
				Path:          cfg.Model.Path,
				EdgeTPU:       cfg.Model.EdgeTPU,
				Threads:       cfg.Model.Threads,
				MaxDetections: cfg.Model.MaxDetections,
				InputWidth:    cfg.Camera.Width,
				InputHeight:   cfg.Camera.Height,
				Library:       cfg.Model.Library,
			})
		},
		Labels: func(context.Context) (detection.LabelResolver, error) {
			table, err := labels.Load(cfg.Labels.Path)
			if err != nil {
				return nil, err
			}
			slog.Info("labels loaded", "path", cfg.Labels.Path, "count", table.Len())
			return table, nil
		},
		Display: func(context.Context) (report.Display, error) {
			console := report.NewConsoleDisplay(os.Stdout)
			if cfg.Display.Backend != "sensehat" {
				return console, nil
			}
			hat, err := report.OpenSenseHat(cfg.Display.I2CBus, cfg.Display.ScrollSpeed)
			if err != nil {
				return nil, err
			}
			return report.Displays{console, hat}, nil
		},
	}

	if cfg.MQTT.Enabled {
		o.Broker = func(ctx context.Context) (sampler.Broker, error) {
			p, err := report.DialPublisher(ctx, report.BrokerConfig{
				URL:            cfg.MQTT.BrokerURL(),
				ClientID:       cfg.ClientID,
				Topic:          cfg.MQTT.Topic,
				ConnectTimeout: cfg.MQTT.ConnectTimeout,
			})
			if err != nil {
				return nil, err
			}
			return p, nil
		}
	}

	return o
}

func newLogger(format string, debug bool) *slog.Logger {
	// Setup structured logger
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: logLevel}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	default:
		fmt.Fprintf(os.Stderr, "unknown -log-format %q, using json\n", format)
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
}
