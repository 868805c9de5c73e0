// Package app assembles the long-lived components shared by the CLI and the
// HTTP server.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/gunta/skypilot/internal/assets"
	"github.com/gunta/skypilot/internal/client"
	"github.com/gunta/skypilot/internal/config"
	"github.com/gunta/skypilot/internal/currency"
	"github.com/gunta/skypilot/internal/notify"
	"github.com/gunta/skypilot/internal/service"
	"github.com/gunta/skypilot/internal/store"
)

type App struct {
	Config       *config.Config
	Redis        *redis.Client
	Videos       *client.OpenAIClient
	Mirror       *client.R2Client
	Store        store.KV
	Settings     *store.Settings
	Rates        *currency.Cache
	Currency     *currency.Service
	Downloader   *assets.Downloader
	Chime        *notify.Chime
	Orchestrator *service.Orchestrator
}

// New wires every component from cfg. Redis and R2 are optional: when they
// are unreachable or unconfigured the app runs without them.
func New(cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	if cfg.Redis.Enabled || cfg.Store.Driver == "redis" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.Redis.Ping(context.Background()).Err(); err != nil {
			log.Printf("Warning: Redis not available: %v", err)
		}
	}

	kv, err := store.Open(cfg, a.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.Store = kv

	a.Videos = client.NewOpenAIClient(&cfg.OpenAI)

	var mirror client.AssetMirror
	if cfg.R2.AccountID != "" {
		r2, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 mirror disabled: %v", err)
		} else {
			a.Mirror = r2
			mirror = r2
			log.Printf("R2 mirror enabled for bucket %s", cfg.R2.BucketName)
		}
	}

	a.Settings = store.NewSettings(kv, cfg.Currency.Default)
	a.Rates = currency.NewCache(client.NewExchangeClient(&cfg.Currency), kv, cfg.Currency.TTL)
	a.Currency = currency.NewService(a.Rates, a.Settings, cfg.Currency.Base)
	a.Downloader = assets.NewDownloader(a.Videos, mirror)
	a.Chime = notify.NewChime(true)

	a.Orchestrator = service.NewOrchestrator(service.Dependencies{
		Videos:     a.Videos,
		Currency:   a.Currency,
		Downloader: a.Downloader,
		Notifier:   a.Chime,
		Defaults:   cfg.Defaults,
	})
	return a, nil
}

// Close stops the orchestrator and releases connections
func (a *App) Close() error {
	if a.Orchestrator != nil {
		a.Orchestrator.Close()
	}
	if a.Redis != nil {
		return a.Redis.Close()
	}
	return nil
}
