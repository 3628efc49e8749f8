package playlist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"noticeboard/internal/apperr"
	"noticeboard/pkg/models"
)

// Direction of a single-step move.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case Up:
		return Up, true
	case Down:
		return Down, true
	}
	return "", false
}

// maxConflictRetries bounds how often a mutation is re-applied after another
// writer changed the stored document underneath it.
const maxConflictRetries = 3

// Store is the single source of truth for the playlist order.
//
// Every mutation is read-modify-write over the whole document: the next
// document is built from a copy, saved through the Backend, and only then
// becomes visible to List. mu serializes mutations inside the process and
// the backend's version check catches writers in other processes. Readers
// only take view, so List keeps answering with the last durable document
// while a write is in flight.
//
// Reordering addresses positions, not ids. A client that moves index 3 after
// someone else deleted index 1 moves whatever now sits at index 3.
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu   sync.Mutex   // held by writers across the backend call
	view sync.RWMutex // guards doc; written only while mu is held
	doc  models.Document
}

// mutation derives the next item sequence from the current one. Returning
// changed == false skips the write.
type mutation func(items []models.ContentItem) (next []models.ContentItem, changed bool, err error)

func NewStore(ctx context.Context, backend Backend, logger *slog.Logger) (*Store, error) {
	doc, err := backend.Load(ctx)
	if err != nil {
		return nil, apperr.Persistence("Failed to load content data", err)
	}
	if doc.Items == nil {
		doc.Items = []models.ContentItem{}
	}

	logger.Info("playlist loaded",
		slog.Int("items", len(doc.Items)),
		slog.Uint64("version", doc.Version),
	)

	return &Store{
		backend: backend,
		logger:  logger,
		doc:     doc,
	}, nil
}

// List returns a copy of the current order.
func (s *Store) List() []models.ContentItem {
	s.view.RLock()
	defer s.view.RUnlock()

	return s.doc.Clone().Items
}

func (s *Store) Version() uint64 {
	s.view.RLock()
	defer s.view.RUnlock()

	return s.doc.Version
}

// Append adds items at the tail, in order, in one durable write.
func (s *Store) Append(ctx context.Context, items ...models.ContentItem) error {
	if len(items) == 0 {
		return nil
	}

	return s.mutate(ctx, func(current []models.ContentItem) ([]models.ContentItem, bool, error) {
		seen := make(map[string]bool, len(current)+len(items))
		for _, item := range current {
			seen[item.ID] = true
		}
		for _, item := range items {
			if item.ID == "" {
				return nil, false, apperr.Validation("Content item has no id")
			}
			if seen[item.ID] {
				return nil, false, apperr.Validation("Content item " + item.ID + " already exists")
			}
			seen[item.ID] = true
		}
		return append(current, items...), true, nil
	})
}

// DeleteByID removes the item with id and returns it. The caller owns
// removal of the item's blob.
func (s *Store) DeleteByID(ctx context.Context, id string) (models.ContentItem, error) {
	var removed models.ContentItem

	err := s.mutate(ctx, func(current []models.ContentItem) ([]models.ContentItem, bool, error) {
		idx := models.Document{Items: current}.IndexOf(id)
		if idx == -1 {
			return nil, false, apperr.NotFound("Content item not found")
		}
		removed = current[idx]
		return append(current[:idx], current[idx+1:]...), true, nil
	})
	if err != nil {
		return models.ContentItem{}, err
	}
	return removed, nil
}

// MoveByIndex moves the item at index one step toward the head or tail.
// Moving the first item up or the last item down is a successful no-op and
// reports moved == false.
func (s *Store) MoveByIndex(ctx context.Context, index int, dir Direction) (bool, error) {
	if dir != Up && dir != Down {
		return false, apperr.Validation("Invalid direction")
	}

	moved := false
	err := s.mutate(ctx, func(current []models.ContentItem) ([]models.ContentItem, bool, error) {
		moved = false
		if index < 0 || index >= len(current) {
			return nil, false, apperr.IndexOutOfRange("Invalid index")
		}

		target := index - 1
		if dir == Down {
			target = index + 1
		}
		if target < 0 || target >= len(current) {
			return current, false, nil
		}

		current[index], current[target] = current[target], current[index]
		moved = true
		return current, true, nil
	})
	return moved, err
}

// Reload replaces the in-memory document with the stored one and reports
// whether the visible playlist changed.
func (s *Store) Reload(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reloadLocked(ctx)
}

func (s *Store) reloadLocked(ctx context.Context) (bool, error) {
	doc, err := s.backend.Load(ctx)
	if err != nil {
		return false, apperr.Persistence("Failed to load content data", err)
	}
	if doc.Items == nil {
		doc.Items = []models.ContentItem{}
	}

	changed, err := itemsDiffer(s.doc.Items, doc.Items)
	if err != nil {
		return false, apperr.Persistence("Failed to compare content data", err)
	}
	s.setDoc(doc)
	return changed, nil
}

func (s *Store) mutate(ctx context.Context, fn mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		next := s.doc.Clone()

		items, changed, err := fn(next.Items)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		next.Items = items
		next.Version++

		err = s.backend.Save(ctx, next)
		if err == nil {
			s.setDoc(next)
			return nil
		}

		if !errors.Is(err, ErrVersionConflict) || attempt >= maxConflictRetries {
			s.logger.Error("playlist write failed",
				slog.Uint64("version", next.Version),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return apperr.Persistence("Failed to save content data", err)
		}

		s.logger.Warn("playlist version conflict, reloading",
			slog.Uint64("version", next.Version),
			slog.Int("attempt", attempt),
		)
		if _, err := s.reloadLocked(ctx); err != nil {
			return err
		}
	}
}

// setDoc publishes doc to readers. Callers hold mu.
func (s *Store) setDoc(doc models.Document) {
	s.view.Lock()
	s.doc = doc
	s.view.Unlock()
}

func itemsDiffer(a, b []models.ContentItem) (bool, error) {
	if len(a) != len(b) {
		return true, nil
	}
	left, err := models.EncodeDocument(models.Document{Items: a})
	if err != nil {
		return false, fmt.Errorf("encode current playlist: %w", err)
	}
	right, err := models.EncodeDocument(models.Document{Items: b})
	if err != nil {
		return false, fmt.Errorf("encode stored playlist: %w", err)
	}
	return !bytes.Equal(left, right), nil
}
