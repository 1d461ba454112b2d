package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Shrey-Parekh/game-arena/config"
	"github.com/Shrey-Parekh/game-arena/crypto"
	"github.com/Shrey-Parekh/game-arena/game"
	"github.com/Shrey-Parekh/game-arena/logger"
	"github.com/Shrey-Parekh/game-arena/migrations"
	"github.com/Shrey-Parekh/game-arena/storage"
)

const (
	roomExpiry    = 15 * time.Minute
	sweepInterval = 15 * time.Minute
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.GET("/health", func(ctx *gin.Context) { ctx.String(200, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		// Non-browser clients send no Origin header; let them through.
		if origin == "" || slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

func main() {
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(slogger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("%v", err)
	}
	if cfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		logger.SetDebug()
	}

	migrations.Migrate(cfg.PostgresURL)

	pgRepo, err := storage.NewPostgresRepo(context.Background(), cfg.PostgresURL)
	if err != nil {
		logger.Fatalf("connect postgres: %v", err)
	}
	defer pgRepo.Close()

	verifier := crypto.NewTokenVerifier(cfg.JWTKey)
	registry := game.NewRegistry()
	gateway := game.NewGateway()
	svc := game.NewService(registry, pgRepo, pgRepo, gateway, game.NewScheduler(), game.DefaultTimings())
	handler := game.NewHandler(svc, gateway)

	// Idle rooms are swept from the durable store and the registry on a
	// fixed interval.
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			svc.SweepExpired(ctx, roomExpiry)
			cancel()
		}
	}()

	r := CreateServer(cfg.AllowedOrigins)
	r.GET("/ws", game.RequireAuth(verifier), handler.ServeWS)

	logger.Infof("listening on :%s", cfg.Port)
	r.Run(":" + cfg.Port)
}
