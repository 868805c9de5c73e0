package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"

	"github.com/gunta/skypilot/internal/app"
	"github.com/gunta/skypilot/internal/config"
	"github.com/gunta/skypilot/internal/handler"
	"github.com/gunta/skypilot/internal/middleware"
	"github.com/gunta/skypilot/internal/model"
	"github.com/gunta/skypilot/internal/service"
	ws "github.com/gunta/skypilot/internal/websocket"
	"github.com/gunta/skypilot/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	// No speakers on a server.
	cfg.Defaults.PlaySound = false

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	if !a.Videos.IsConfigured() {
		log.Printf("Warning: OPENAI_API_KEY not set, video operations will fail")
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()
	unsubscribe := a.Orchestrator.Subscribe(hub.HandleEvent)
	defer unsubscribe()

	// Initialize handlers
	videoHandler := handler.NewVideoHandler(a.Orchestrator, a.Videos, a.Currency, cfg.Server.DownloadDir, validate)
	stateHandler := handler.NewStateHandler(a.Orchestrator, validate)
	settingsHandler := handler.NewSettingsHandler(a.Settings, a.Currency, a.Orchestrator, validate)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	if !authMiddleware.Enabled() {
		log.Printf("Warning: JWT_SECRET not set, API is open to anyone who can reach it")
	}
	rateLimiter := middleware.NewRateLimiter(a.Redis)
	log.Printf("Downloads requested over HTTP are written under %s", cfg.Server.DownloadDir)

	// Initialize Fiber app
	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		snap := a.Orchestrator.Snapshot()
		return c.JSON(fiber.Map{
			"status":           "ok",
			"state":            snap.State,
			"operationVersion": snap.OperationVersion,
			"services": fiber.Map{
				"openai": a.Videos.IsConfigured(),
				"redis":  a.Redis != nil,
				"r2":     a.Mirror.IsConfigured(),
				"auth":   authMiddleware.Enabled(),
			},
		})
	})

	// API routes
	api := fiberApp.Group("/api", authMiddleware.Authenticate())

	api.Get("/state", stateHandler.Get)
	api.Get("/state/tracked", stateHandler.Tracked)
	api.Post("/state/reset-error", stateHandler.ResetError)
	api.Patch("/defaults", stateHandler.Defaults)
	api.Get("/capabilities", stateHandler.Capabilities)

	// Video routes
	videos := api.Group("/videos")
	videos.Get("/", videoHandler.List)
	videos.Get("/export", videoHandler.Export)
	videos.Post("/watch/cancel", videoHandler.CancelWatch)
	videos.Post("/", rateLimiter.CreateLimit(cfg.RateLimit.CreatePerHour), videoHandler.Create)
	videos.Get("/:id", videoHandler.Get)
	videos.Post("/:id/remix", rateLimiter.CreateLimit(cfg.RateLimit.CreatePerHour), videoHandler.Remix)
	videos.Post("/:id/download", videoHandler.Download)
	videos.Delete("/:id", videoHandler.Delete)

	// Settings routes
	api.Get("/settings", settingsHandler.Get)
	api.Put("/settings/currency", settingsHandler.SetCurrency)
	api.Put("/settings/language", settingsHandler.SetLanguage)
	api.Get("/currency/rates", settingsHandler.Rates)

	// WebSocket routes
	fiberApp.Use("/ws", authMiddleware.Authenticate(), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	fiberApp.Get("/ws", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, ws.TopicAll)
	}))
	fiberApp.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"))
	}))

	// Load the preferred currency once so the first listing is formatted.
	if _, err := a.Orchestrator.LoadCurrency(context.Background()); err != nil {
		log.Printf("Warning: initial currency load failed: %v", err)
	}

	// Start Asynq worker server and rate refresh schedule
	if a.Redis != nil {
		currencyWorker := worker.NewCurrencyWorker(a.Rates, hub).OnRefresh(func(ctx context.Context, _ *model.CurrencyRates) {
			if _, err := a.Orchestrator.LoadCurrency(ctx); err != nil && !errors.Is(err, service.ErrBusy) {
				log.Printf("[Currency] Warning: reload after refresh failed: %v", err)
			}
		})
		go startWorkerServer(cfg, currencyWorker)
		go startScheduler(cfg)
	} else {
		log.Printf("Redis disabled: exchange rates refresh lazily on use")
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := a.Orchestrator.CancelPolling(context.Background()); err != nil {
			log.Printf("Cancel polling error: %v", err)
		}
		if err := fiberApp.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := fiberApp.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

func startWorkerServer(cfg *config.Config, currencyWorker *worker.CurrencyWorker) {
	srv := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				"default": 1,
			},
			LogLevel: asynqLogLevel(cfg.Server.LogLevel),
		},
	)

	if err := srv.Run(worker.NewServeMux(currencyWorker)); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func startScheduler(cfg *config.Config) {
	scheduler := asynq.NewScheduler(redisOpt(cfg), &asynq.SchedulerOpts{
		LogLevel: asynqLogLevel(cfg.Server.LogLevel),
	})

	entryID, err := worker.RegisterCurrencySchedule(scheduler, cfg.Currency.RefreshCron, cfg.Currency.Base)
	if err != nil {
		log.Printf("Currency schedule disabled: %v", err)
		return
	}
	log.Printf("Currency refresh scheduled (%s, entry %s)", cfg.Currency.RefreshCron, entryID)

	if err := scheduler.Run(); err != nil {
		log.Printf("Asynq scheduler error: %v", err)
	}
}

func asynqLogLevel(level string) asynq.LogLevel {
	switch level {
	case "debug":
		return asynq.DebugLevel
	case "warn":
		return asynq.WarnLevel
	case "error":
		return asynq.ErrorLevel
	default:
		return asynq.InfoLevel
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
