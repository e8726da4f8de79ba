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
	"github.com/jlortea/calltap/internal/sgw"
	"github.com/jlortea/calltap/internal/sgw/config"
)

func main() {
	logger.InitLogger(os.Stdout)

	cfg := config.Load()

	banner.Print("SGW - STREAMING GATEWAY", []banner.ConfigLine{
		{Label: "HTTP Listen", Value: fmt.Sprintf("%s:%d", cfg.HTTPBindAddr, cfg.HTTPPort)},
		{Label: "RTP Bind In", Value: cfg.RTPBindAddrIn},
		{Label: "RTP Bind Out", Value: cfg.RTPBindAddrOut},
		{Label: "Upstream URL", Value: cfg.UpstreamURL},
		{Label: "Role Mode", Value: cfg.RoleMode},
		{Label: "Session Cap", Value: fmt.Sprintf("%d", cfg.SessionCap)},
		{Label: "Assistant Enabled", Value: fmt.Sprintf("%t", cfg.AssistantEnabled)},
		{Label: "Log Level", Value: cfg.LogLevel},
	})

	logger.SetLevel(cfg.LogLevel)

	gw, err := sgw.NewGateway(cfg)
	if err != nil {
		slog.Error("failed to create SGW", "error", err)
		os.Exit(1)
	}
	if err := gw.Start(); err != nil {
		slog.Error("failed to start SGW", "error", err)
		os.Exit(1)
	}

	slog.Info("[SGW] started", "http_port", cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("[SGW] shutting down...")
	if err := gw.Stop(); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
	slog.Info("[SGW] stopped")
}
