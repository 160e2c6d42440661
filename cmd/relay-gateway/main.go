package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relayhub/relay-gateway/internal/agent"
	"github.com/relayhub/relay-gateway/internal/channel/webchat"
	"github.com/relayhub/relay-gateway/internal/config"
	"github.com/relayhub/relay-gateway/internal/dispatch"
	"github.com/relayhub/relay-gateway/internal/logging"
	"github.com/relayhub/relay-gateway/internal/provider"
	"github.com/relayhub/relay-gateway/internal/routing"
	"github.com/relayhub/relay-gateway/internal/sanitize"
	"github.com/relayhub/relay-gateway/internal/scheduler"
	"github.com/relayhub/relay-gateway/internal/server"
	"github.com/relayhub/relay-gateway/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	cat, err := cfg.Catalog()
	if err != nil {
		logger.Error("catalog setup failed", "error", err)
		os.Exit(1)
	}

	providerClient, err := provider.NewClient(&provider.Config{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: cfg.ProviderTimeout(),
	}, logging.WithComponent(logger, "provider"))
	if err != nil {
		logger.Error("provider setup failed", "error", err)
		os.Exit(1)
	}

	policy := routing.NewPolicy(providerClient, cfg.Routing.ClassifierModel, cat,
		logging.WithComponent(logger, "routing"))
	cleaner := sanitize.NewCleaner(nil, nil, logging.WithComponent(logger, "sanitize"))
	dispatcher := dispatch.NewDispatcher(providerClient, cat, cleaner,
		logging.WithComponent(logger, "dispatch"))
	sessions := session.NewStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.WebChat.Enabled {
		adapter := webchat.NewAdapter(cfg.WebChat.Port, logging.WithComponent(logger, "webchat"))
		if err := adapter.Start(ctx); err != nil {
			logger.Error("webchat start failed", "error", err)
			os.Exit(1)
		}
		loop := agent.NewLoop(policy, dispatcher, sessions, logging.WithComponent(logger, "agent"))
		go loop.Run(ctx, adapter)
		logger.Info("webchat channel started", "port", cfg.WebChat.Port)
	}

	if cfg.Probe.Schedule != "" {
		sched, err := scheduler.New(providerClient, cfg.Probe.Schedule,
			logging.WithComponent(logger, "scheduler"))
		if err != nil {
			logger.Error("scheduler setup failed", "error", err)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := server.New(cfg, policy, dispatcher, cat, sessions, logging.WithComponent(logger, "server"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
