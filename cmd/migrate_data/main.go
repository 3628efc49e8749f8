package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"noticeboard/internal/config"
	"noticeboard/internal/playlist"
	"noticeboard/internal/storage"
)

// migrate_data copies the playlist between store drivers, e.g. from
// content-data.json into Postgres before switching STORE_DRIVER.
func main() {
	from := flag.String("from", config.StoreFile, "source store driver (file, sqlite, postgres)")
	to := flag.String("to", "", "destination store driver (defaults to STORE_DRIVER)")
	overwrite := flag.Bool("overwrite", false, "replace a non-empty destination playlist")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := config.SetupLogger(cfg)

	if *to == "" {
		*to = cfg.StoreDriver
	}
	if *from == *to {
		log.Error("source and destination are the same driver", slog.String("driver", *from))
		os.Exit(2)
	}

	ctx := context.Background()

	src, err := storage.Open(ctx, cfg, *from)
	if err != nil {
		log.Error("failed to open source", slog.String("driver", *from), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer src.Close()

	dst, err := storage.Open(ctx, cfg, *to)
	if err != nil {
		log.Error("failed to open destination", slog.String("driver", *to), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dst.Close()

	log.Info("starting playlist migration", slog.String("from", *from), slog.String("to", *to))

	n, err := playlist.Copy(ctx, src.Backend, dst.Backend, *overwrite)
	if err != nil {
		log.Error("migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("migration completed", slog.Int("items", n))
}
