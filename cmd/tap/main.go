package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jlortea/calltap/internal/banner"
	"github.com/jlortea/calltap/internal/logger"
	"github.com/jlortea/calltap/internal/tap"
	"github.com/jlortea/calltap/internal/tap/config"
)

func main() {
	logger.InitLogger(os.Stdout)

	cfg := config.Load()

	banner.Print("TAP - ORCHESTRATOR", []banner.ConfigLine{
		{Label: "HTTP Listen", Value: fmt.Sprintf("%s:%d", cfg.HTTPBindAddr, cfg.HTTPPort)},
		{Label: "CTL Base URL", Value: cfg.CTLBaseURL},
		{Label: "App Name", Value: cfg.AppName},
		{Label: "FGW Base URL", Value: cfg.FGWBaseURL},
		{Label: "SGW Base URL", Value: cfg.SGWBaseURL},
		{Label: "Port Range", Value: fmt.Sprintf("%d-%d", cfg.PortMin, cfg.PortMax)},
		{Label: "Log Level", Value: cfg.LogLevel},
	})

	logger.SetLevel(cfg.LogLevel)

	orch := tap.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := orch.Start(ctx); err != nil {
		slog.Error("failed to start PBX event stream", "error", err)
		os.Exit(1)
	}

	srv := tap.NewServer(orch, cfg.HTTPBindAddr, cfg.HTTPPort)
	if err := srv.Start(); err != nil {
		slog.Error("failed to start HTTP server", "error", err)
		os.Exit(1)
	}

	slog.Info("[TAP] started", "http_port", cfg.HTTPPort)

	<-ctx.Done()

	slog.Info("[TAP] shutting down...")
	if err := srv.Stop(); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
	slog.Info("[TAP] stopped")
}
