package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ayo6706/ussd-relay/internal/app"
	"github.com/ayo6706/ussd-relay/internal/device"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "devicesim error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := device.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := device.NewClient(cfg.APIURL, cfg.APIKey, cfg.DeviceID)
	carrier := device.NewSimulatedCarrier(cfg.FailureRate)
	poller := device.NewPoller(client, carrier, cfg.PollInterval)

	logger.Info("device simulator starting",
		zap.String("api_url", cfg.APIURL),
		zap.String("device_id", cfg.DeviceID),
		zap.Float64("failure_rate", cfg.FailureRate))
	return poller.Run(ctx)
}
