package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"noticeboard/internal/models"
	"noticeboard/internal/playlist"
	content "noticeboard/pkg/models"
)

// DefaultDocumentKey names the row holding the playlist.
const DefaultDocumentKey = "playlist"

// SQLBackend stores the playlist document as a single row. The row's version
// column is the optimistic lock: an update only applies on top of the
// version the document was derived from.
type SQLBackend struct {
	db  *gorm.DB
	key string
}

func NewSQLBackend(db *gorm.DB, key string) *SQLBackend {
	if key == "" {
		key = DefaultDocumentKey
	}
	return &SQLBackend{db: db, key: key}
}

func (b *SQLBackend) Load(ctx context.Context) (content.Document, error) {
	var row models.PlaylistDocument
	err := b.db.WithContext(ctx).Where("key = ?", b.key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return content.Document{Items: []content.ContentItem{}}, nil
	}
	if err != nil {
		return content.Document{}, fmt.Errorf("load playlist row %q: %w", b.key, err)
	}

	doc, err := content.DecodeDocument([]byte(row.Body))
	if err != nil {
		return content.Document{}, fmt.Errorf("playlist row %q: %w", b.key, err)
	}
	doc.Version = row.Version
	return doc, nil
}

func (b *SQLBackend) Save(ctx context.Context, doc content.Document) error {
	if doc.Version == 0 {
		return fmt.Errorf("%w: version 0 cannot be saved", playlist.ErrVersionConflict)
	}

	data, err := content.EncodeDocument(doc)
	if err != nil {
		return err
	}

	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if doc.Version == 1 {
			var count int64
			if err := tx.Model(&models.PlaylistDocument{}).Where("key = ?", b.key).Count(&count).Error; err != nil {
				return fmt.Errorf("check playlist row: %w", err)
			}
			if count == 0 {
				err := tx.Create(&models.PlaylistDocument{
					Key:     b.key,
					Version: doc.Version,
					Body:    string(data),
				}).Error
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("%w: row %q created concurrently", playlist.ErrVersionConflict, b.key)
				}
				if err != nil {
					return fmt.Errorf("insert playlist row: %w", err)
				}
				return nil
			}
		}

		res := tx.Model(&models.PlaylistDocument{}).
			Where("key = ? AND version = ?", b.key, doc.Version-1).
			Updates(map[string]interface{}{
				"version":    doc.Version,
				"body":       string(data),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("update playlist row: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: row %q is not at version %d", playlist.ErrVersionConflict, b.key, doc.Version-1)
		}
		return nil
	})
}
