package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sketchparty/backend/internal/broadcast"
	"github.com/sketchparty/backend/internal/config"
	"github.com/sketchparty/backend/internal/httpapi"
	"github.com/sketchparty/backend/internal/registry"
	"github.com/sketchparty/backend/internal/session"
)

func main() {
	cfg := config.Load()

	var log *zap.Logger
	var err error
	if cfg.AppEnv == "production" {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(cfg, log)
	if err != nil {
		log.Fatal("registry init failed", zap.Error(err))
	}
	channel := buildChannel(cfg, log)

	svc := session.NewService(store, log)
	handler := httpapi.SetupRoutes(svc, store, channel, log)
	sweeper := registry.NewSweeper(store, cfg.RoomTTL, cfg.SweepInterval, log)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := sweeper.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func buildStore(cfg config.Config, log *zap.Logger) (registry.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL unset, using in-memory room registry")
		return registry.NewMemoryStore(), nil
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return registry.NewGormStore(db)
}

func buildChannel(cfg config.Config, log *zap.Logger) broadcast.Channel {
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR unset, using in-process broadcast channel")
		return broadcast.NewLocal()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	return broadcast.NewRedis(client, log)
}
