package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jlortea/calltap/internal/banner"
	"github.com/jlortea/calltap/internal/fgw"
	"github.com/jlortea/calltap/internal/fgw/config"
	"github.com/jlortea/calltap/internal/logger"
)

func main() {
	logger.InitLogger(os.Stdout)

	cfg := config.Load()

	banner.Print("FGW - FRAMED GATEWAY", []banner.ConfigLine{
		{Label: "HTTP Listen", Value: fmt.Sprintf("%s:%d", cfg.HTTPBindAddr, cfg.HTTPPort)},
		{Label: "RTP Bind", Value: cfg.RTPBindAddr},
		{Label: "RTP Port Range", Value: fmt.Sprintf("%d-%d", cfg.RTPPortMin, cfg.RTPPortMax)},
		{Label: "Downstream", Value: cfg.DownstreamAddr},
		{Label: "Inactivity Timeout", Value: cfg.InactivityTimeout.String()},
		{Label: "WAV Dump", Value: fmt.Sprintf("%t", cfg.WavDumpEnabled)},
		{Label: "Log Level", Value: cfg.LogLevel},
	})

	logger.SetLevel(cfg.LogLevel)

	gw := fgw.NewGateway(cfg)
	if err := gw.Start(); err != nil {
		slog.Error("failed to start FGW", "error", err)
		os.Exit(1)
	}

	slog.Info("[FGW] started", "http_port", cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("[FGW] shutting down...")
	if err := gw.Stop(); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
	slog.Info("[FGW] stopped")
}
