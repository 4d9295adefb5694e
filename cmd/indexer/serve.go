package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/0xmhha/wallet-indexer/api"
	"github.com/0xmhha/wallet-indexer/client"
	"github.com/0xmhha/wallet-indexer/internal/config"
	"github.com/0xmhha/wallet-indexer/internal/constants"
	"github.com/0xmhha/wallet-indexer/internal/logger"
	"github.com/0xmhha/wallet-indexer/notify"
	"github.com/0xmhha/wallet-indexer/wallet"
)

type serveCommand struct {
	API       bool     `long:"api" description:"Serve the HTTP API"`
	APIHost   string   `long:"api-host" description:"API server host"`
	APIPort   int      `long:"api-port" description:"API server port"`
	Watch     bool     `long:"watch" description:"Scan tracked addresses on every new block"`
	Schedule  string   `long:"schedule" description:"Cron schedule for periodic scans of tracked addresses"`
	Addresses []string `short:"a" long:"address" description:"Address to track; may be repeated"`
	Webhooks  []string `long:"webhook" description:"URL notified of newly indexed transactions; may be repeated"`

	cli *cli
}

func (cmd *serveCommand) Execute(args []string) error {
	cfg, err := cmd.cli.loadConfig(cmd.apply)
	if err != nil {
		return err
	}
	if !cfg.API.Enabled && !cfg.Watch.Enabled && cfg.Scanner.Schedule == "" {
		return errors.New("nothing to serve: enable --api, --watch or --schedule")
	}
	if cfg.Scanner.Schedule != "" {
		if err := wallet.ValidateSchedule(cfg.Scanner.Schedule); err != nil {
			return err
		}
	}

	a, err := cmd.cli.open(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.serve(cmd.cli.ctx)
}

func (cmd *serveCommand) apply(cfg *config.Config) {
	if cmd.API {
		cfg.API.Enabled = true
	}
	if cmd.APIHost != "" {
		cfg.API.Host = cmd.APIHost
	}
	if cmd.APIPort > 0 {
		cfg.API.Port = cmd.APIPort
	}
	if cmd.Watch {
		cfg.Watch.Enabled = true
	}
	if cmd.Schedule != "" {
		cfg.Scanner.Schedule = cmd.Schedule
	}
	cfg.Scanner.Addresses = append(cfg.Scanner.Addresses, cmd.Addresses...)
	for _, u := range cmd.Webhooks {
		cfg.Notify.Webhooks = append(cfg.Notify.Webhooks, config.WebhookConfig{URL: u})
	}
}

// serve runs the enabled surfaces until ctx ends or one of them fails
func (a *app) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	if len(a.cfg.Notify.Webhooks) > 0 {
		hook, err := a.webhook()
		if err != nil {
			return err
		}
		defer hook.Close()
		a.wallet.OnDiscovered(hook.Notify)
	}

	if a.cfg.Scanner.Schedule != "" {
		if err := a.wallet.StartSchedule(ctx, a.cfg.Scanner.Schedule); err != nil {
			return err
		}
	}

	if a.cfg.Watch.Enabled {
		endpoint := a.cfg.RPC.WSEndpoint
		if endpoint == "" {
			endpoint = a.cfg.RPC.Endpoint
		}
		sub, err := client.NewSubscriber(&client.SubscriberConfig{
			Endpoint: endpoint,
			Metrics:  a.clientMetrics,
			Logger:   logger.WithComponent(a.log, "subscriber"),
		})
		if err != nil {
			return fmt.Errorf("failed to create block subscriber: %w", err)
		}
		go func() {
			if err := a.wallet.Watch(ctx, sub); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("watch stopped: %w", err)
			}
		}()
	}

	var apiServer *api.Server
	if a.cfg.API.Enabled {
		var err error
		apiServer, err = api.NewServer(apiConfig(a.cfg), logger.WithComponent(a.log, "api"), a.wallet)
		if err != nil {
			return fmt.Errorf("failed to create API server: %w", err)
		}
		go func() {
			if err := apiServer.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	a.log.Info("wallet indexer started",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("rpc_endpoint", a.cfg.RPC.Endpoint),
		zap.String("backend", a.cfg.Database.Backend),
		zap.Strings("tracked", a.wallet.Tracked()),
		zap.Bool("api", a.cfg.API.Enabled),
		zap.Bool("watch", a.cfg.Watch.Enabled),
		zap.String("schedule", a.cfg.Scanner.Schedule),
		zap.Int("webhooks", len(a.cfg.Notify.Webhooks)),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("received shutdown signal")
	case runErr = <-errCh:
		a.log.Error("service stopped with error", zap.Error(runErr))
	}
	cancel()

	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
		defer shutdownCancel()
		if err := apiServer.Stop(shutdownCtx); err != nil {
			a.log.Error("failed to stop API server gracefully", zap.Error(err))
		}
	}

	a.log.Info("wallet indexer stopped")
	return runErr
}

func (a *app) webhook() (*notify.Webhook, error) {
	cfg := &notify.Config{
		Timeout:    a.cfg.Notify.Timeout,
		MaxRetries: a.cfg.Notify.MaxRetries,
	}
	for _, hook := range a.cfg.Notify.Webhooks {
		cfg.Endpoints = append(cfg.Endpoints, notify.Endpoint{
			URL:     hook.URL,
			Secret:  hook.Secret,
			Headers: hook.Headers,
		})
	}

	w, err := notify.NewWebhook(cfg, logger.WithComponent(a.log, "webhook"))
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook notifier: %w", err)
	}
	w.SetMetrics(notify.NewMetrics(a.registerer, metricsNamespace))
	return w, nil
}

func apiConfig(cfg *config.Config) *api.Config {
	c := api.DefaultConfig()
	c.Host = cfg.API.Host
	c.Port = cfg.API.Port
	c.EnableCORS = cfg.API.EnableCORS
	c.AllowedOrigins = cfg.API.AllowedOrigins
	c.EnableGraphQL = cfg.API.EnableGraphQL
	c.EnableJSONRPC = cfg.API.EnableJSONRPC
	c.EnableWebSocket = cfg.API.EnableWebSocket
	if cfg.API.RateLimitPerSecond > 0 {
		c.EnableRateLimit = true
		c.RateLimitPerSecond = cfg.API.RateLimitPerSecond
		c.RateLimitBurst = cfg.API.RateLimitBurst
	}
	c.Version = version
	return c
}
