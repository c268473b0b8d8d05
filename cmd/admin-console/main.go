package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"

	"admin-alerts/client"
	"admin-alerts/internal/config"
	"admin-alerts/render"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := log.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(log.WarnLevel)
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := client.NewSession(client.SessionConfig{
		BaseURL:    cfg.ServerURL,
		Token:      cfg.Token,
		OutboxSize: cfg.OutboxSize,
		MinBackoff: cfg.MinBackoff,
		MaxBackoff: cfg.MaxBackoff,
		Logger:     logger,
	})
	console := client.NewConsole(session, render.NewText(os.Stdout),
		client.WithLogger(logger),
		client.WithNotificationTTLs(cfg.NewOrderTTL, cfg.StatusTTL),
	)
	prompt := render.NewPrompt(client.NewDispatcher(session, logger), console, os.Stdout, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = session.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = console.Run(ctx)
	}()

	if err := prompt.Run(ctx, os.Stdin); err != nil {
		logger.WithError(err).Error("reading commands")
	}
	stop()
	wg.Wait()
}
