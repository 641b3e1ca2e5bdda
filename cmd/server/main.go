package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"waypoint-walk/server/internal/app"
	"waypoint-walk/server/internal/config"
	"waypoint-walk/server/internal/telemetry"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv(config.EnvConfig), "path to the YAML configuration file")
	flag.Parse()

	logger := telemetry.WrapLogger(log.New(os.Stderr, "", log.LstdFlags))

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, logger); err != nil {
		log.Fatal(err)
	}
}
