package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/snap-point/social-api/cache"
	"github.com/snap-point/social-api/config"
	"github.com/snap-point/social-api/logger"
	"github.com/snap-point/social-api/middleware"
	"github.com/snap-point/social-api/monitoring"
	"github.com/snap-point/social-api/realtime"
	"github.com/snap-point/social-api/repository"
	"github.com/snap-point/social-api/routes"
	"github.com/snap-point/social-api/services"
	"github.com/snap-point/social-api/storage"
	"github.com/snap-point/social-api/utils"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()
	log := logger.Get()

	store, err := newStore(cfg)
	if err != nil {
		log.Fatal("Failed to initialize store", zap.Error(err))
	}

	stats := newStatsCache(cfg, log)
	if closer, ok := stats.(*cache.StatsCache); ok {
		defer closer.Close()
	}

	var assets services.AssetStore = storage.NopStore{}
	if cfg.R2.Enabled() {
		assets = storage.NewR2Store(cfg.R2)
	} else {
		log.Warn("R2 is not configured, uploads are disabled")
	}

	google := config.NewGoogleConfig(cfg.Google)
	if google == nil {
		log.Info("Google sign-in is not configured")
	}

	if err := monitoring.Register(prometheus.DefaultRegisterer); err != nil {
		log.Fatal("Failed to register metrics", zap.Error(err))
	}

	hub := realtime.NewHub()
	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL, cfg.RefreshTokenTTL)
	svc := services.New(services.Dependencies{
		Store:    store,
		Notifier: hub,
		Assets:   assets,
		Stats:    stats,
		Tokens:   tokens,
		Google:   google,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Logger(log))
	router.Use(gin.Recovery())
	router.Use(monitoring.GinMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.SetupRoutes(router, routes.Dependencies{
		Services: svc,
		Tokens:   tokens,
		Hub:      hub,
		Upgrader: realtime.NewUpgrader(cfg.AllowedOrigins),
		Gatherer: prometheus.DefaultGatherer,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port), zap.String("db_driver", cfg.DBDriver))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

func newStore(cfg *config.Config) (repository.Store, error) {
	if cfg.DBDriver == config.DriverMemory {
		logger.Get().Warn("Using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	return repository.NewGormStore(db), nil
}

// newStatsCache falls back to no caching when redis is unset or down.
func newStatsCache(cfg *config.Config, log *zap.Logger) services.StatsCache {
	if cfg.RedisAddr == "" {
		return cache.Nop{}
	}

	stats := cache.NewStatsCache(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, cfg.StatsCacheTTL)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := stats.Ping(ctx); err != nil {
		log.Warn("Redis unavailable, stats cache disabled", zap.Error(err))
		_ = stats.Close()
		return cache.Nop{}
	}
	return stats
}
