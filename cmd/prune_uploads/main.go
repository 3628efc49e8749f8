package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"noticeboard/internal/blobstore"
	"noticeboard/internal/config"
	"noticeboard/internal/playlist"
	"noticeboard/internal/storage"
)

// prune_uploads deletes media files that no playlist item references, such
// as files whose deletion failed after their item was removed.
func main() {
	dryRun := flag.Bool("dry-run", false, "list orphaned files without deleting them")
	minAge := flag.Duration("min-age", time.Hour, "skip files modified more recently than this")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := config.SetupLogger(cfg)
	ctx := context.Background()

	opened, err := storage.Open(ctx, cfg, cfg.StoreDriver)
	if err != nil {
		log.Error("failed to open playlist store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer opened.Close()

	store, err := playlist.NewStore(ctx, opened.Backend, log)
	if err != nil {
		log.Error("failed to load playlist", slog.String("error", err.Error()))
		os.Exit(1)
	}

	blobs, err := blobstore.New(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		log.Error("failed to open upload directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	referenced := make(map[string]bool)
	for _, item := range store.List() {
		if name := item.StoredName(); name != "" {
			referenced[name] = true
		}
	}

	orphans, err := blobs.Orphans(referenced)
	if err != nil {
		log.Error("failed to list uploads", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Uploads are written before their items are appended; a young file
	// may belong to a request still in flight.
	cutoff := time.Now().Add(-*minAge)
	removed, skipped := 0, 0
	for _, name := range orphans {
		info, err := os.Stat(filepath.Join(blobs.Dir(), name))
		if err != nil || info.ModTime().After(cutoff) {
			skipped++
			continue
		}
		if *dryRun {
			log.Info("orphaned file", slog.String("file", name), slog.Int64("bytes", info.Size()))
			continue
		}
		if err := blobs.Delete(name); err != nil {
			log.Warn("failed to delete orphaned file", slog.String("file", name), slog.String("error", err.Error()))
			continue
		}
		removed++
	}

	log.Info("prune completed",
		slog.Int("orphans", len(orphans)),
		slog.Int("removed", removed),
		slog.Int("skipped", skipped),
		slog.Bool("dry_run", *dryRun),
	)
}
