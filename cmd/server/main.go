package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/sitechat/internal/chat"
	"github.com/suPer8Hu/sitechat/internal/config"
	"github.com/suPer8Hu/sitechat/internal/db"
	"github.com/suPer8Hu/sitechat/internal/httpapi"
	"github.com/suPer8Hu/sitechat/internal/logger"
	"github.com/suPer8Hu/sitechat/internal/settings"
	"github.com/suPer8Hu/sitechat/internal/store/redisstore"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Log.WithError(err).Fatal("database connect failed")
	}
	if err := chat.NewRepo(gdb).Migrate(ctx); err != nil {
		logger.Log.WithError(err).Fatal("migration failed")
	}

	store, closeStore := settingsStore(ctx, cfg)
	defer closeStore()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(gdb, cfg, store),
		ReadHeaderTimeout: 10 * time.Second,
		// the completion call alone may take CompletionTimeout
		WriteTimeout: cfg.CompletionTimeout + 15*time.Second,
	}

	go func() {
		logger.Log.WithFields(logrus.Fields{
			"addr":   cfg.HTTPAddr,
			"driver": cfg.DBDriver,
		}).Info("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("listen failed")
		}
	}()

	<-ctx.Done()
	logger.Log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.CompletionTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("graceful shutdown failed")
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// settingsStore uses Redis when REDIS_ADDR is set so settings changes reach
// every instance, and an in-process store otherwise.
func settingsStore(ctx context.Context, cfg config.Config) (settings.Store, func()) {
	defaults := settings.Settings{
		APIKey:   cfg.ChatbotAPIKey,
		Model:    cfg.ChatbotModel,
		Endpoint: cfg.ChatbotEndpoint,
	}
	if cfg.RedisAddr == "" {
		logger.Log.Info("REDIS_ADDR not set, completion settings kept in memory")
		return settings.NewMemoryStore(defaults), func() {}
	}

	rdb := redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Log.WithError(err).WithField("addr", cfg.RedisAddr).Fatal("redis connect failed")
	}
	return redisstore.NewSettingsStore(rdb, cfg.RedisSettingsKey, defaults), func() { _ = rdb.Close() }
}
