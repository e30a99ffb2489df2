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
	"github.com/joho/godotenv"

	"github.com/nayon117/custome-chat-server/internal/auth"
	"github.com/nayon117/custome-chat-server/internal/cache"
	"github.com/nayon117/custome-chat-server/internal/config"
	"github.com/nayon117/custome-chat-server/internal/handler"
	"github.com/nayon117/custome-chat-server/internal/hub"
	"github.com/nayon117/custome-chat-server/internal/repository"
	"github.com/nayon117/custome-chat-server/internal/service"
	"github.com/nayon117/custome-chat-server/pkg/database"
	"github.com/nayon117/custome-chat-server/pkg/log"
)

func main() {
	// .env is optional; real deployments set environment variables directly.
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	logger := log.L()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	repo, err := repository.NewGormMessageRepository(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize message repository")
	}
	defer repo.Close()
	logger.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")

	var historyCache cache.HistoryCache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisHistoryCache(cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisCache.Close()
		historyCache = redisCache
		logger.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")
	}

	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run()

	relaySvc := service.NewRelayService(wsHub, repo, historyCache, cfg.Redis.CacheTTL)
	authSvc := auth.NewService(cfg.Admin)

	wsHandler := handler.NewWSHandler(wsHub, relaySvc, cfg.WebSocket, cfg.CORS.AllowOrigins)
	httpHandler := handler.NewHTTPHandler(relaySvc, authSvc)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(log.GinMiddleware(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	httpHandler.RegisterRoutes(r)
	r.GET("/ws", gin.WrapF(wsHandler.HandleWebSocket))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("support chat server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("stopped")
}
