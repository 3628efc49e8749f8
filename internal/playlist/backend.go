// Package playlist owns the ordered sequence of content items and its
// durable storage.
package playlist

import (
	"context"
	"errors"

	"noticeboard/pkg/models"
)

// ErrVersionConflict is returned by a Backend when the stored document is
// not the one the saved document was derived from.
var ErrVersionConflict = errors.New("playlist document version conflict")

// Backend loads and saves the whole playlist document.
//
// Save must succeed only when the stored version equals doc.Version-1 (or
// nothing is stored yet and doc.Version is 1), and must be all-or-nothing.
type Backend interface {
	Load(ctx context.Context) (models.Document, error)
	Save(ctx context.Context, doc models.Document) error
}
