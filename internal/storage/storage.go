// Package storage opens the playlist backend selected by configuration.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm/logger"

	"noticeboard/internal/config"
	"noticeboard/internal/database"
	"noticeboard/internal/playlist"
)

// Opened is a ready backend. File is set only for the file driver.
type Opened struct {
	Backend playlist.Backend
	File    *playlist.FileBackend
	close   func() error
}

func (o *Opened) Close() error {
	if o.close == nil {
		return nil
	}
	return o.close()
}

// Open returns the backend for driver. The file driver creates an empty
// document when none exists.
func Open(ctx context.Context, cfg *config.Config, driver string) (*Opened, error) {
	switch driver {
	case config.StoreFile:
		fb, err := playlist.NewFileBackend(cfg.ContentFile)
		if err != nil {
			return nil, err
		}
		if err := fb.EnsureExists(ctx); err != nil {
			return nil, fmt.Errorf("initialise %s: %w", cfg.ContentFile, err)
		}
		return &Opened{Backend: fb, File: fb}, nil

	case config.StoreSQLite, config.StorePostgres:
		db, err := database.Open(driver, cfg.DSN(driver), gormLevel(cfg.LogLevel))
		if err != nil {
			return nil, err
		}
		return &Opened{
			Backend: database.NewSQLBackend(db, database.DefaultDocumentKey),
			close:   func() error { return database.Close(db) },
		}, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", driver)
}

func gormLevel(level slog.Level) logger.LogLevel {
	if level <= slog.LevelDebug {
		return logger.Info
	}
	return logger.Warn
}
