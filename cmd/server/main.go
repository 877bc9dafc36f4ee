package main

import (
	"context"
	"os"
	"time"

	"github.com/idater/idater-backend/internal/alert"
	"github.com/idater/idater-backend/internal/app"
	"github.com/idater/idater-backend/internal/auth"
	"github.com/idater/idater-backend/internal/cache"
	"github.com/idater/idater-backend/internal/config"
	"github.com/idater/idater-backend/internal/db"
	"github.com/idater/idater-backend/internal/logger"
	"github.com/idater/idater-backend/internal/realtime"
	"github.com/idater/idater-backend/internal/server"
	"github.com/idater/idater-backend/internal/service/chat"
	"github.com/idater/idater-backend/internal/service/match"
	"github.com/idater/idater-backend/internal/service/quota"
	"github.com/idater/idater-backend/internal/service/user"
)

func main() {
	cfg := config.New()
	logger.InitFromConfig(cfg)

	database, err := db.NewDB(cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(database); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisCache := cache.NewRedisCache(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisCache.Ping(ctx); err != nil {
		cancel()
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	cancel()

	appCtx := app.New(database, redisCache, logger.L())

	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret)

	hub := realtime.NewHub(appCtx.Logger)
	appCtx.Notifier = hub

	ledger := quota.NewLedger(appCtx)
	matchSvc := match.NewService(appCtx)
	chatSvc := chat.NewService(appCtx, ledger, alerterOrNil(cfg))
	userSvc := user.NewService(appCtx, nil)

	gateway := realtime.NewGateway(hub, verifier, chatSvc, userSvc, appCtx.Logger)

	router := server.NewRouter(cfg,
		match.NewRegistrar(matchSvc, verifier),
		chat.NewRegistrar(chatSvc, verifier),
		user.NewRegistrar(userSvc, verifier, nil),
		gateway,
	)

	if err := server.Start(cfg, router); err != nil {
		logger.Error("http server exited", "error", err)
		os.Exit(1)
	}
}

// alerterOrNil keeps the nil-interface trap out of the wiring: a typed nil
// *alert.Client stored in a chat.Alerter would not compare equal to nil.
func alerterOrNil(cfg *config.Config) chat.Alerter {
	if c := alert.New(cfg); c != nil {
		return c
	}
	return nil
}
