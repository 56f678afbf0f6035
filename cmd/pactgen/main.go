// Command pactgen generates Pact contract tests from consumer and provider
// source code using a generative model, and optionally runs the produced
// tests and verifies the contract against a live provider.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/drpact/pactgen/internal/config"
	"github.com/drpact/pactgen/internal/pipeline"
	"github.com/drpact/pactgen/internal/registration"
	"github.com/drpact/pactgen/internal/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	provider := flag.String("provider", "", "model backend to use (openai, anthropic, gemini, groq, ollama)")
	verify := flag.Bool("verify", false, "run consumer tests and verify the provider after generating")
	dryRun := flag.Bool("dry-run", false, "print the generated test instead of writing it")
	configPath := flag.String("config", "pactgen.yaml", "configuration file")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	backendName := cfg.Backend
	if *provider != "" {
		backendName = *provider
	}
	if backendName == "" {
		fmt.Fprintln(os.Stderr, "no backend selected: pass --provider or set backend in config")
		return 1
	}

	shutdown, err := telemetry.InitTracer("pactgen", logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize tracer: %v\n", err)
		return 1
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	registration.RegisterBuiltins()

	p, err := pipeline.New(cfg, pipeline.Options{
		Backend: backendName,
		Verify:  *verify,
		DryRun:  *dryRun,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build pipeline: %v\n", err)
		return 1
	}

	// An interrupt cancels the run; in-flight subprocesses are killed and
	// the artifact file stays whole thanks to the atomic write.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := p.Run(ctx)

	if *dryRun && report.GeneratedSource != "" {
		fmt.Println(report.GeneratedSource)
	}

	if stage, failed := report.FailedStage(); failed {
		for _, res := range report.Results {
			if !res.Succeeded {
				fmt.Fprintf(os.Stderr, "stage %s failed:\n%s\n", stage, res.Message)
			}
		}
	}

	return report.ExitCode
}
