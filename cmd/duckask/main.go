package main

import (
	"context"
	"fmt"
	"os"

	"github.com/duckask/duckask/internal/cli/duckask"
	"github.com/duckask/duckask/internal/config"
	"github.com/duckask/duckask/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("duckask")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stderr)

	code := duckask.Run(context.Background(), os.Args[1:], duckask.Options{
		Config: cfg,
		Logger: logger,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	os.Exit(code)
}
