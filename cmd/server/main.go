package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"noticeboard/internal/api"
	"noticeboard/internal/blobstore"
	"noticeboard/internal/config"
	"noticeboard/internal/metrics"
	"noticeboard/internal/playlist"
	"noticeboard/internal/storage"
	"noticeboard/internal/ws"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := config.SetupLogger(cfg)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if err := os.MkdirAll(cfg.PublicDir, 0o750); err != nil {
		return fmt.Errorf("create public directory: %w", err)
	}

	opened, err := storage.Open(ctx, cfg, cfg.StoreDriver)
	if err != nil {
		return err
	}
	defer opened.Close()

	store, err := playlist.NewStore(ctx, opened.Backend, log.With(slog.String("component", "playlist")))
	if err != nil {
		return err
	}
	metrics.PlaylistItems.Set(float64(len(store.List())))

	blobs, err := blobstore.New(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		return err
	}

	hub := ws.NewHub(log.With(slog.String("component", "ws")), cfg.AllowedOrigins...)
	go hub.Run(ctx)
	metrics.RegisterViewers(hub.Count)

	var publisher ws.Publisher = hub
	if cfg.RedisURL != "" {
		relay, closeRedis, err := startRelay(ctx, cfg, hub, store, log)
		if err != nil {
			return err
		}
		defer closeRedis()
		publisher = relay
	}

	if fb := opened.File; fb != nil && cfg.WatchContentFile {
		notify := api.NewNotifier(publisher, log)
		watcher, err := playlist.NewWatcher(store, fb.Path(), notify.ContentUpdated, log.With(slog.String("component", "watcher")))
		if err != nil {
			return err
		}
		go watcher.Run(ctx)
		log.Info("watching playlist file", slog.String("path", fb.Path()))
	}

	router := api.NewRouter(api.Deps{
		Store:          store,
		Blobs:          blobs,
		Hub:            hub,
		Publisher:      publisher,
		Logger:         log,
		AuthSecret:     []byte(cfg.AuthSecret),
		AllowedOrigins: cfg.AllowedOrigins,
		WriteTimeout:   cfg.WriteTimeout,
		PublicDir:      cfg.PublicDir,
		Version:        version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("store", cfg.StoreDriver),
			slog.Bool("auth", cfg.AuthSecret != ""),
			slog.Bool("relay", cfg.RedisURL != ""),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", slog.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func startRelay(ctx context.Context, cfg *config.Config, hub *ws.Hub, store *playlist.Store, log *slog.Logger) (*ws.RedisRelay, func(), error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	relayLog := log.With(slog.String("component", "relay"))
	relay := ws.NewRedisRelay(rdb, cfg.RedisChannel, hub, relayLog)
	relay.OnRemote = func(ctx context.Context) {
		changed, err := store.Reload(ctx)
		if err != nil {
			relayLog.Warn("reload after remote change failed", slog.String("error", err.Error()))
			return
		}
		if changed {
			metrics.PlaylistItems.Set(float64(len(store.List())))
		}
	}

	go func() {
		if err := relay.Run(ctx); err != nil {
			relayLog.Error("relay stopped", slog.String("error", err.Error()))
		}
	}()
	return relay, func() { rdb.Close() }, nil
}
