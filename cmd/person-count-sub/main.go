// Command person-count-sub prints the counts published by person counters.
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

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/enriquegit/edge-person-detector/internal/report"
)

func main() {
	broker := flag.String("broker", "localhost", "MQTT broker host")
	port := flag.Int("port", 1883, "MQTT broker port")
	topic := flag.String("topic", "personCount", "Topic to subscribe to")
	clientID := flag.String("client-id", "", "MQTT client id (default: random)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if *clientID == "" {
		*clientID = "person-count-sub-" + uuid.NewString()[:8]
	}

	cfg := report.BrokerConfig{
		URL:            fmt.Sprintf("tcp://%s:%d", *broker, *port),
		ClientID:       *clientID,
		Topic:          *topic,
		ConnectTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	highlight := color.New(color.FgCyan, color.Bold)
	sub := report.NewSubscriber(*topic, func(r report.Reading) {
		fmt.Printf("%s %s\n", r.Received.Format(time.RFC3339), r.Payload)
		if r.Valid {
			slog.Info("count received",
				"client_id", r.ClientID,
				"count", highlight.Sprint(r.Count),
			)
		}
	})

	opts := report.NewClientOptions(cfg)
	sub.Attach(opts)

	client, err := report.Connect(ctx, cfg, opts)
	if err != nil {
		slog.Error("failed to connect", "error", err, "broker", cfg.URL)
		os.Exit(1)
	}

	if err := sub.Start(client); err != nil {
		slog.Error("failed to subscribe", "error", err, "topic", *topic)
		client.Disconnect(250)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("shutting down")
	sub.Stop()
}
