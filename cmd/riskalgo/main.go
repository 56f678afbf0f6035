// Command riskalgo serves the demo insulin dosage provider the generated
// contracts are verified against. Demo only, not for medical use.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/drpact/pactgen/internal/riskalgo"
	"github.com/drpact/pactgen/internal/server"
	"github.com/drpact/pactgen/internal/telemetry"
)

func main() {
	port := flag.Int("port", 7001, "listen port")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitTracer(riskalgo.ServiceName, logger)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	srv := server.New(*port, riskalgo.ServiceName, logger)
	riskalgo.New().Routes(srv.Router)

	if err := srv.Start(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
