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
	"covid19datasets/internal/sources"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	provider := flag.String("provider", sources.HMDName, "excess mortality provider: hmd | eurostat | economist")
	daily := flag.Bool("daily", false, "resample weekly excess deaths to daily rows")
	format := flag.String("format", app.FormatCSV, "output format: "+strings.Join(app.Formats, " | "))
	flag.Parse()

	if err := run(*configPath, *provider, *daily, *format); err != nil {
		slog.Error("excess mortality export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath, provider string, daily bool, format string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
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

	src, ok := rt.NewPipeline().Provider(provider)
	if !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}

	rt.Logger.InfoContext(ctx, "Computing excess mortality",
		slog.String("provider", provider),
		slog.Bool("daily", daily))

	t, err := src.GetData(ctx, daily)
	if err != nil {
		return fmt.Errorf("compute %s excess mortality: %w", provider, err)
	}

	dest, err := rt.Export(ctx, t, format, outputName(provider, daily))
	if err != nil {
		return fmt.Errorf("export %s excess mortality: %w", provider, err)
	}
	rt.LogExport(ctx, dest, t)
	return nil
}

// outputName names the export after the provider and resolution, e.g.
// excess_mortality_hmd_daily
func outputName(provider string, daily bool) string {
	resolution := "weekly"
	if daily {
		resolution = "daily"
	}
	return "excess_mortality_" + provider + "_" + resolution
}
