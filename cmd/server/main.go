package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"toutuo/server/internal/app"
	"toutuo/server/internal/telemetry"
	loggingSinks "toutuo/server/logging/sinks"
)

func main() {
	cfg, err := app.LoadConfig(os.LookupEnv)
	if err != nil {
		log.Fatalf("%v", err)
	}

	zapLogger, err := loggingSinks.NewZapLogger(cfg.Logging.Zap, cfg.Logging.MinimumSeverity)
	if err != nil {
		log.Fatalf("failed to build zap logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := app.Deps{Logger: telemetry.WrapZap(zapLogger), Zap: zapLogger}
	if err := app.Run(ctx, cfg, deps); err != nil {
		zapLogger.Sugar().Errorf("%v", err)
		os.Exit(1)
	}
}
