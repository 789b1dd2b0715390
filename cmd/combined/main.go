package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"covid19datasets/internal/app"
	"covid19datasets/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	format := flag.String("format", app.FormatCSV, "output format: "+strings.Join(app.Formats, " | "))
	name := flag.String("name", "", "output file name without extension, or table name for postgres (defaults to the configured table)")
	flag.Parse()

	if err := run(*configPath, *format, *name); err != nil {
		slog.Error("combined export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath, format, name string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if name == "" {
		name = cfg.Postgres.Table
	}

	rt, err := app.NewRuntime(cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rt.Close(shutdownCtx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt.Logger.InfoContext(ctx, "Building combined table",
		slog.String("format", format),
		slog.String("name", name))

	pipeline := rt.NewPipeline()
	t, err := pipeline.Dataset.Load(ctx, false)
	if err != nil {
		return fmt.Errorf("build combined table: %w", err)
	}

	dest, err := rt.Export(ctx, t, format, name)
	if err != nil {
		return fmt.Errorf("export combined table: %w", err)
	}
	rt.LogExport(ctx, dest, t)
	return nil
}
