package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/estudioia/timeline-render/internal/client"
	"github.com/estudioia/timeline-render/internal/config"
	"github.com/estudioia/timeline-render/internal/handler"
	"github.com/estudioia/timeline-render/internal/logger"
	"github.com/estudioia/timeline-render/internal/middleware"
	"github.com/estudioia/timeline-render/internal/scheduler"
	"github.com/estudioia/timeline-render/internal/service"
	ws "github.com/estudioia/timeline-render/internal/websocket"
	"github.com/estudioia/timeline-render/internal/worker"
	"github.com/estudioia/timeline-render/pkg/response"
)

const (
	shutdownTimeout   = 30 * time.Second
	retentionInterval = 10 * time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Server.LogLevel,
		Format:      cfg.Server.LogFormat,
		ServiceName: "timeline-render",
	})
	slog.SetDefault(log)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis not available, snapshots and rate limits degraded", slog.Any("error", err))
	}
	cancelPing()

	// Storage, renderer and output sink
	storage, err := client.NewStorageClient(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize storage", slog.Any("error", err))
		os.Exit(1)
	}

	var (
		renderer scheduler.FrameRenderer
		raster   *client.RasterRenderer
	)
	if cfg.Renderer.ServiceURL != "" {
		renderer = client.NewRendererClient(&cfg.Renderer)
		log.Info("using remote frame renderer", slog.String("url", cfg.Renderer.ServiceURL))
	} else {
		raster, err = client.NewRasterRenderer(filepath.Join(cfg.Render.WorkDir, "frames"))
		if err != nil {
			log.Error("failed to initialize raster renderer", slog.Any("error", err))
			os.Exit(1)
		}
		renderer = raster
		log.Info("using local raster renderer", slog.String("work_dir", cfg.Render.WorkDir))
	}

	var (
		sink      scheduler.OutputSink
		artifacts service.ArtifactStore
		keyFor    func(jobID string) string
	)
	if cfg.Encoder.ServiceURL != "" {
		sink = client.NewEncoderClient(&cfg.Encoder)
		log.Info("using remote encoder", slog.String("url", cfg.Encoder.ServiceURL))
	} else {
		var cleaner client.FrameCleaner
		if raster != nil {
			cleaner = raster
		}
		sink = client.NewArchiveSink(storage, cleaner, cfg.Render.WorkDir, log)
		artifacts, keyFor = storage, client.ArchiveKey
		log.Info("using frame archive output", slog.String("storage", cfg.Storage.Provider))
	}

	// Scheduler
	resolutions, err := cfg.Render.ResolutionOverrides()
	if err != nil {
		log.Error("invalid resolution overrides", slog.Any("error", err))
		os.Exit(1)
	}
	sched, err := scheduler.New(scheduler.Config{
		MaxConcurrentJobs: cfg.Render.MaxConcurrentJobs,
		Renderer:          renderer,
		Sink:              sink,
		Settings:          scheduler.NewSettings(resolutions, cfg.Render.CompositionOverrides(), cfg.Render.DefaultFPS),
		Logger:            log,
		FrameTick:         time.Duration(cfg.Render.FrameTickMs) * time.Millisecond,
	})
	if err != nil {
		log.Error("failed to initialize scheduler", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize WebSocket hub
	hub := ws.NewHub(log)
	go hub.Run(ctx)

	// Initialize services
	store := service.NewJobStore(redisClient, time.Duration(cfg.Render.SnapshotTTLHours)*time.Hour)
	renderService := service.NewRenderService(sched, store, hub, log)
	exportService := service.NewExportService(renderService, artifacts, keyFor, service.DefaultExportExpiry)
	go renderService.RunRetention(ctx, time.Duration(cfg.Render.RetentionHours)*time.Hour, retentionInterval)

	// Start Asynq intake server
	var queueServer *asynq.Server
	if cfg.Queue.Enabled {
		queueServer, err = startQueueServer(cfg, renderService, log)
		if err != nil {
			log.Error("failed to start queue intake", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize handlers
	validate := validator.New()
	renderHandler := handler.NewRenderHandler(renderService, validate, log)
	timelineHandler := handler.NewTimelineHandler(renderService, validate)
	exportHandler := handler.NewExportHandler(exportService)
	healthHandler := handler.NewHealthHandler(renderService, redisClient)
	wsHandler := handler.NewWebSocketHandler(renderService, hub, log)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, cfg.JWT.Expiration)
	rateLimiter := middleware.NewRateLimiter(redisClient, log)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    20 * 1024 * 1024, // 20MB
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path} ${respHeader:X-Request-ID}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))

	// Health check
	app.Get("/health", healthHandler.Check)

	// Finished archives on local storage
	if strings.EqualFold(cfg.Storage.Provider, "local") || cfg.Storage.Provider == "" {
		app.Static("/files", cfg.Storage.LocalRoot)
	}

	// Streaming routes accept ?token= for browser clients and are
	// registered ahead of the /api group
	app.Get("/api/render/jobs/:jobId/events", authMiddleware.AuthenticateQuery(), renderHandler.Events)
	app.Get("/ws/jobs/:jobId", authMiddleware.AuthenticateQuery(), wsHandler.Upgrade, wsHandler.Connect())

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	// Render routes
	jobs := api.Group("/render/jobs")
	jobs.Post("/", rateLimiter.RenderLimit(cfg.RateLimit.RenderPerHour), renderHandler.Create)
	jobs.Get("/", renderHandler.List)
	jobs.Get("/:jobId", renderHandler.Get)
	jobs.Post("/:jobId/cancel", renderHandler.Cancel)
	jobs.Get("/:jobId/export", exportHandler.Download)
	jobs.Delete("/:jobId", renderHandler.Delete)

	// Timeline routes
	api.Post("/timeline/convert", rateLimiter.ConvertLimit(cfg.RateLimit.ConvertPerMin), timelineHandler.Convert)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down server")

		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server shutdown error", slog.Any("error", err))
		}
		if queueServer != nil {
			queueServer.Shutdown()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := renderService.Shutdown(shutdownCtx); err != nil {
			log.Error("render shutdown incomplete", slog.Any("error", err))
		}
		stop()
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Info("server starting",
		slog.String("addr", addr),
		slog.String("env", cfg.Server.Env),
		slog.Int("max_concurrent_jobs", sched.MaxConcurrentJobs()),
	)
	if err := app.Listen(addr); err != nil {
		log.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
	<-ctx.Done()
}

func startQueueServer(cfg *config.Config, renderService *service.RenderService, log *slog.Logger) (*asynq.Server, error) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues: map[string]int{
				worker.QueueRender: 1,
			},
			Logger: worker.NewQueueLogger(log),
		},
	)

	renderWorker := worker.NewRenderWorker(renderService, log)

	mux := asynq.NewServeMux()
	renderWorker.Register(mux)

	if err := srv.Start(mux); err != nil {
		return nil, err
	}
	return srv, nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	errCode := response.CodeServiceError
	switch code {
	case fiber.StatusNotFound:
		errCode = response.CodeNotFound
	case fiber.StatusUnauthorized:
		errCode = response.CodeUnauthorized
	case fiber.StatusBadRequest, fiber.StatusUpgradeRequired, fiber.StatusRequestEntityTooLarge:
		errCode = response.CodeValidationError
	}

	return response.Error(c, code, errCode, message, nil)
}
