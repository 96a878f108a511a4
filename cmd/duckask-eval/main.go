package main

import (
	"context"
	"fmt"
	"os"

	"github.com/duckask/duckask/internal/cli/duckaskeval"
	"github.com/duckask/duckask/internal/config"
	"github.com/duckask/duckask/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("duckask-eval")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stderr)

	code := duckaskeval.Run(context.Background(), os.Args[1:], duckaskeval.Options{
		Config: cfg,
		Logger: logger,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	os.Exit(code)
}
