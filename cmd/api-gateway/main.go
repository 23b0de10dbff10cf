package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/studyloop/lernplan-api/api/swagger"
	"github.com/studyloop/lernplan-api/internal/handler"
	"github.com/studyloop/lernplan-api/internal/middleware"
	"github.com/studyloop/lernplan-api/internal/models"
	"github.com/studyloop/lernplan-api/internal/repository"
	"github.com/studyloop/lernplan-api/internal/service"
	rediscache "github.com/studyloop/lernplan-api/pkg/cache"
	"github.com/studyloop/lernplan-api/pkg/config"
	"github.com/studyloop/lernplan-api/pkg/database"
	"github.com/studyloop/lernplan-api/pkg/jobs"
	"github.com/studyloop/lernplan-api/pkg/logger"
	corsmiddleware "github.com/studyloop/lernplan-api/pkg/middleware/cors"
	reqidmiddleware "github.com/studyloop/lernplan-api/pkg/middleware/requestid"
	"github.com/studyloop/lernplan-api/pkg/storage"
)

// @title Lernplan API
// @version 0.1.0
// @description Study planning backend: calendar blocks, sessions, topic hierarchy and exports
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Planner.MirrorToCache {
		redisClient, err := rediscache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, running without cache mirror", "error", err)
		} else {
			cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metricsSvc, logr, cfg.Planner.CacheTTL)
		}
	}

	validate := validator.New()
	blockSvc := service.NewBlockService(repository.NewBlockRepository(db), cacheSvc, metricsSvc, validate, logr)
	sessionSvc := service.NewSessionService(repository.NewSessionRepository(db), cacheSvc, metricsSvc, validate, logr)
	seriesSvc := service.NewSeriesService(blockSvc, sessionSvc, logr)
	planSvc := service.NewPlanService(repository.NewPlanRepository(db), cacheSvc, logr)
	linkSvc := service.NewScheduleLinkService(repository.NewTodoRepository(db), planSvc, blockSvc, metricsSvc, logr)
	archiveSvc := service.NewArchiveService(repository.NewArchiveRepository(db), blockSvc, sessionSvc, planSvc, cacheSvc, metricsSvc, logr, cfg.Planner.DefaultPlanName)
	authSvc := service.NewAuthService(repository.NewUserRepository(db), cfg.JWT, logr)
	ocrSvc := service.NewOCRService(cfg.OCR, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Export.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Export.SignedURLSecret, cfg.Export.SignedURLTTL)
	exportSvc := service.NewExportService(blockSvc, sessionSvc, planSvc, exportStore, signer, logr)

	// memory is authoritative once loaded; a failed load starts empty
	for name, load := range map[string]func(context.Context) error{
		"blocks":   blockSvc.Load,
		"sessions": sessionSvc.Load,
		"plans":    planSvc.Load,
		"todos":    linkSvc.Load,
		"archives": archiveSvc.Load,
	} {
		if err := load(ctx); err != nil {
			logr.Sugar().Warnw("failed to load store, starting empty", "store", name, "error", err)
		}
	}

	exportQueue := jobs.NewQueue("exports", exportSvc.HandleJob, jobs.QueueConfig{Workers: 2, Logger: logr})
	exportQueue.Start(ctx)
	defer exportQueue.Stop()
	exportSvc.AttachQueue(exportQueue)
	exportSvc.CleanupFiles(cfg.Export.SignedURLTTL)

	if cfg.Cleanup.Enabled {
		cleanupQueue := jobs.NewQueue("cleanup", func(ctx context.Context, job jobs.Job) error {
			result, err := linkSvc.CleanupExpired(ctx, time.Now().Format(models.DateLayout))
			if err != nil {
				return err
			}
			logr.Sugar().Infow("stale schedule links expired", "count", result.Expired)
			return nil
		}, jobs.QueueConfig{Workers: cfg.Cleanup.Workers, Logger: logr})
		cleanupQueue.Start(ctx)
		defer cleanupQueue.Stop()
		if err := cleanupQueue.Enqueue(jobs.Job{ID: models.NewID(), Type: "expire-schedule-links"}); err != nil {
			logr.Sugar().Warnw("failed to enqueue startup cleanup", "error", err)
		}
	}

	calendarHandler := handler.NewCalendarHandler(blockSvc, sessionSvc, seriesSvc)
	planHandler := handler.NewPlanHandler(planSvc, ocrSvc)
	scheduleHandler := handler.NewScheduleHandler(linkSvc)
	archiveHandler := handler.NewArchiveHandler(archiveSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/exports/download", exportHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		protected.GET("/auth/me", authHandler.Me)

		protected.GET("/blocks", calendarHandler.ListBlocks)
		protected.POST("/blocks", calendarHandler.CreateBlock)
		protected.PUT("/blocks/:id", calendarHandler.UpdateBlock)
		protected.DELETE("/blocks/:id", calendarHandler.DeleteBlock)
		protected.PUT("/blocks/:id/repeat", calendarHandler.EditBlockRepeat)

		protected.GET("/sessions", calendarHandler.ListSessions)
		protected.POST("/sessions", calendarHandler.CreateSession)
		protected.PUT("/sessions/:id", calendarHandler.UpdateSession)
		protected.DELETE("/sessions/:id", calendarHandler.DeleteSession)
		protected.PUT("/sessions/:id/repeat", calendarHandler.EditSessionRepeat)

		protected.DELETE("/series/:seriesId", calendarHandler.DeleteSeries)

		protected.GET("/plans", planHandler.List)
		protected.POST("/plans", planHandler.Create)
		protected.GET("/plans/:id", planHandler.Get)
		protected.PATCH("/plans/:id", planHandler.Rename)
		protected.DELETE("/plans/:id", planHandler.Delete)
		protected.POST("/plans/:id/rechtsgebiete", planHandler.AddNode("rechtsgebiete"))
		protected.POST("/plans/:id/unterrechtsgebiete", planHandler.AddNode("unterrechtsgebiete"))
		protected.POST("/plans/:id/kapitel", planHandler.AddNode("kapitel"))
		protected.POST("/plans/:id/themen", planHandler.AddNode("themen"))
		protected.POST("/plans/:id/aufgaben", planHandler.AddNode("aufgaben"))
		protected.PATCH("/plans/:id/nodes/:nodeId", planHandler.RenameNode)
		protected.DELETE("/plans/:id/nodes/:nodeId", planHandler.DeleteNode)
		protected.PUT("/plans/:id/nodes/:nodeId/completed", planHandler.SetCompleted)
		protected.POST("/plans/:id/flatten", planHandler.Flatten)
		protected.POST("/plans/:id/rechtsgebiete/:rechtsgebietId/import", planHandler.Import)
		protected.POST("/plans/:id/rechtsgebiete/:rechtsgebietId/import-image", planHandler.ImportImage)

		protected.PUT("/plans/:id/themen/:themaId/schedule", scheduleHandler.ScheduleThema)
		protected.PUT("/plans/:id/aufgaben/:aufgabeId/schedule", scheduleHandler.ScheduleAufgabe)
		protected.DELETE("/plans/:id/nodes/:nodeId/schedule", scheduleHandler.Unschedule)
		protected.POST("/schedule/cleanup", scheduleHandler.Cleanup)

		protected.GET("/todos", scheduleHandler.ListTodos)
		protected.POST("/todos", scheduleHandler.CreateTodo)
		protected.PUT("/todos/:id", scheduleHandler.UpdateTodo)
		protected.DELETE("/todos/:id", scheduleHandler.DeleteTodo)
		protected.PUT("/todos/:id/schedule", scheduleHandler.ScheduleTodo)
		protected.DELETE("/todos/:id/schedule", scheduleHandler.UnscheduleTodo)

		protected.GET("/archives", archiveHandler.List)
		protected.POST("/archives", archiveHandler.Archive)
		protected.GET("/archives/:id", archiveHandler.Get)
		protected.DELETE("/archives/:id", archiveHandler.Delete)
		protected.POST("/archives/:id/restore", archiveHandler.Restore)
		protected.POST("/archives/:id/convert", archiveHandler.Convert)
		protected.GET("/plan-metadata", archiveHandler.GetMetadata)
		protected.PUT("/plan-metadata", archiveHandler.SetMetadata)

		protected.POST("/exports/week", exportHandler.RequestWeekPDF)
		protected.POST("/exports/plans/:planId", exportHandler.RequestTopicCSV)
		protected.GET("/exports/:id", exportHandler.Get)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
