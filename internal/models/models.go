package models

import (
	"time"
)

// PlaylistDocument is one stored playlist, keyed by name, holding the
// encoded document and its version token.
type PlaylistDocument struct {
	Key       string    `gorm:"primaryKey;type:varchar(64)" json:"key"`
	Version   uint64    `gorm:"not null;default:0" json:"version"`
	Body      string    `gorm:"type:text;not null" json:"body"` // JSON document
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PlaylistDocument) TableName() string {
	return "playlist_documents"
}
