package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"taskboard/api/internal/app"
	"taskboard/api/internal/auth"
	"taskboard/api/internal/authpw"
	"taskboard/api/internal/authz"
	"taskboard/api/internal/config"
	"taskboard/api/internal/identity"
	"taskboard/api/internal/metrics"
	"taskboard/api/internal/notify"
	"taskboard/api/internal/search"
	"taskboard/api/internal/session"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		return err
	}

	dataStore := store.NewPostgresStore(db)

	var sessions session.Store = dataStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, sessions fall back to postgres", zap.Error(err))
		} else {
			sessions = session.NewRedisStore(client)
			defer client.Close()
		}
	}

	var primary search.Backend
	if cfg.MeiliURL != "" {
		meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		defer meili.Close()
		primary = meili
	}
	searchSvc := search.NewService(primary, search.NewPGLookup(db))

	var events *notify.Publisher
	if cfg.AMQPURL != "" {
		events, err = notify.NewPublisher(cfg.AMQPURL, log)
		if err != nil {
			log.Warn("rabbitmq unavailable, events disabled", zap.Error(err))
		} else {
			defer events.Close()
		}
	}

	directory := identity.NewStoreDirectory(dataStore)
	service := app.NewService(app.ServiceDeps{
		Store:     dataStore,
		Sessions:  sessions,
		Authz:     authz.NewEngine(dataStore),
		Directory: directory,
		Resolver:  identity.NewResolver(directory),
		Passwords: authpw.NewService(dataStore),
		Tokens:    auth.NewTokenService(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL()),
		Search:    searchSvc,
		Events:    events,
		Log:       log,
		NewID:     util.NewID,
	})

	httpServer := app.NewHTTPServer(service, metrics.New(), log, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	log.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}
