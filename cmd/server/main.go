package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "iuran/docs" // swagger docs

	"github.com/labstack/echo/v4"

	"iuran/internal/auth"
	"iuran/internal/cache"
	"iuran/internal/config"
	"iuran/internal/db"
	"iuran/internal/handler"
	"iuran/internal/repository"
	"iuran/internal/router"
	"iuran/internal/service"
	"iuran/internal/worker"
)

// @title Iuran API
// @version 1.0
// @description Monthly dues tracking for congregation members, with role-based access and JWT authentication.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	e := echo.New()
	e.HideBanner = true

	// Schema and procedures are owned by the hosted database; no migrations run here.
	gormDB, err := db.NewPostgres(cfg.DatabaseURL, cfg.DBMaxOpen, cfg.DBMaxIdle)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(context.Background()); err != nil {
		log.Printf("redis unavailable, running without cache: %v", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	submissionRepo := repository.NewSubmissionRepository(gormDB)
	maintenanceRepo := repository.NewMaintenanceRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtService, tokenStore)
	userService := service.NewUserService(userRepo, cacheClient, cfg.CacheTTL)
	submissionService := service.NewSubmissionService(submissionRepo, cacheClient, cfg.CacheTTL)
	maintenanceService := service.NewMaintenanceService(maintenanceRepo, cacheClient)

	router.Register(e, cfg, jwtService, tokenStore, userService, router.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		User:        handler.NewUserHandler(userService),
		Submission:  handler.NewSubmissionHandler(submissionService),
		Maintenance: handler.NewMaintenanceHandler(maintenanceService),
	})

	var scheduler *worker.BackupScheduler
	if cfg.BackupCron != "" {
		scheduler = worker.NewBackupScheduler(maintenanceService, cfg.BackupDir)
		if err := scheduler.Start(cfg.BackupCron); err != nil {
			log.Fatalf("backup scheduler: %v", err)
		}
	}

	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	log.Printf("Swagger documentation available at: http://%s/swagger/index.html", host)

	go func() {
		addr := ":" + cfg.ServerPort
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop()
	}
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
