package playlist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"noticeboard/internal/apperr"
	"noticeboard/pkg/models"
)

func newFileStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "content-data.json")
	backend, err := NewFileBackend(path)
	require.NoError(t, err)

	store, err := NewStore(context.Background(), backend, discardLogger())
	require.NoError(t, err)
	return store, path
}

func reopen(t *testing.T, path string) *Store {
	t.Helper()

	backend, err := NewFileBackend(path)
	require.NoError(t, err)
	store, err := NewStore(context.Background(), backend, discardLogger())
	require.NoError(t, err)
	return store
}

func textItem(id string) models.ContentItem {
	return models.NewTextItem(id, "text "+id, "", "", 0, time.Now().UTC().Truncate(time.Second))
}

func ids(items []models.ContentItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestStore_ListEmpty(t *testing.T) {
	store, _ := newFileStore(t)

	items := store.List()
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	store, path := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, textItem("a")))
	require.NoError(t, store.Append(ctx, textItem("b"), textItem("c")))
	require.NoError(t, store.Append(ctx, textItem("d")))

	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(store.List()))
	assert.Equal(t, uint64(3), store.Version())

	fresh := reopen(t, path)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(fresh.List()))
	assert.Equal(t, uint64(3), fresh.Version())
}

func TestStore_AppendRejectsDuplicateID(t *testing.T) {
	store, _ := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, textItem("a")))

	err := store.Append(ctx, textItem("a"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = store.Append(ctx, textItem("b"), textItem("b"))
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, ids(store.List()))
}

func TestStore_ListReturnsCopy(t *testing.T) {
	store, _ := newFileStore(t)
	require.NoError(t, store.Append(context.Background(), textItem("a"), textItem("b")))

	items := store.List()
	items[0], items[1] = items[1], items[0]

	assert.Equal(t, []string{"a", "b"}, ids(store.List()))
}

func TestStore_DeleteByID(t *testing.T) {
	store, path := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, textItem("a"), textItem("b"), textItem("c")))

	removed, err := store.DeleteByID(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", removed.ID)
	assert.Equal(t, []string{"a", "c"}, ids(store.List()))
	assert.Equal(t, []string{"a", "c"}, ids(reopen(t, path).List()))
}

func TestStore_DeleteUnknownIDLeavesDocumentUntouched(t *testing.T) {
	store, path := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, textItem("a")))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = store.DeleteByID(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(1), store.Version())
}

func TestStore_MoveByIndex(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		index     int
		dir       Direction
		wantMoved bool
		wantOrder []string
	}{
		{"first up is no-op", 0, Up, false, []string{"a", "b", "c"}},
		{"last down is no-op", 2, Down, false, []string{"a", "b", "c"}},
		{"middle up", 1, Up, true, []string{"b", "a", "c"}},
		{"middle down", 1, Down, true, []string{"a", "c", "b"}},
		{"first down", 0, Down, true, []string{"b", "a", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, path := newFileStore(t)
			require.NoError(t, store.Append(ctx, textItem("a"), textItem("b"), textItem("c")))
			version := store.Version()

			moved, err := store.MoveByIndex(ctx, tt.index, tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMoved, moved)
			assert.Equal(t, tt.wantOrder, ids(store.List()))
			assert.Equal(t, tt.wantOrder, ids(reopen(t, path).List()))

			if !tt.wantMoved {
				assert.Equal(t, version, store.Version())
			}
		})
	}
}

func TestStore_MoveByIndexOutOfRange(t *testing.T) {
	store, _ := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, textItem("a"), textItem("b")))

	for _, index := range []int{-1, 2, 100} {
		_, err := store.MoveByIndex(ctx, index, Up)
		require.Error(t, err, "index %d", index)
		assert.Equal(t, apperr.KindIndexOutOfRange, apperr.KindOf(err))
	}

	_, err := store.MoveByIndex(ctx, 0, Direction("sideways"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestStore_WelcomeScenario(t *testing.T) {
	store, path := newFileStore(t)
	ctx := context.Background()

	welcome := models.NewTextItem("welcome-id", "Welcome", "#FFFFFF", "", 30, time.Now().UTC())
	require.NoError(t, store.Append(ctx, welcome))

	items := store.List()
	require.Len(t, items, 1)
	assert.Equal(t, "Welcome", items[0].Text.Body)
	assert.NotEmpty(t, items[0].ID)

	moved, err := store.MoveByIndex(ctx, 0, Down)
	require.NoError(t, err)
	assert.False(t, moved)
	require.Len(t, store.List(), 1)
	assert.Equal(t, "welcome-id", store.List()[0].ID)

	_, err = store.DeleteByID(ctx, "welcome-id")
	require.NoError(t, err)
	assert.Empty(t, store.List())
	assert.Empty(t, reopen(t, path).List())
}

func TestStore_FailedSaveRollsBack(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Load", mock.Anything).Return(models.Document{
		Version: 4,
		Items:   []models.ContentItem{textItem("a")},
	}, nil)
	backend.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	store, err := NewStore(context.Background(), backend, discardLogger())
	require.NoError(t, err)

	err = store.Append(context.Background(), textItem("b"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
	assert.Equal(t, []string{"a"}, ids(store.List()))
	assert.Equal(t, uint64(4), store.Version())

	_, err = store.DeleteByID(context.Background(), "a")
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, ids(store.List()))

	backend.AssertNumberOfCalls(t, "Save", 2)
}

func TestStore_NoOpsDoNotWrite(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Load", mock.Anything).Return(models.Document{
		Version: 1,
		Items:   []models.ContentItem{textItem("a")},
	}, nil)

	store, err := NewStore(context.Background(), backend, discardLogger())
	require.NoError(t, err)

	moved, err := store.MoveByIndex(context.Background(), 0, Up)
	require.NoError(t, err)
	assert.False(t, moved)

	_, err = store.DeleteByID(context.Background(), "nope")
	require.Error(t, err)

	require.NoError(t, store.Append(context.Background()))

	backend.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestStore_VersionConflictReloadsAndRetries(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Load", mock.Anything).Return(models.Document{
		Version: 1,
		Items:   []models.ContentItem{textItem("a")},
	}, nil).Once()
	// Another instance appended "x" meanwhile.
	backend.On("Load", mock.Anything).Return(models.Document{
		Version: 2,
		Items:   []models.ContentItem{textItem("a"), textItem("x")},
	}, nil).Once()
	backend.On("Save", mock.Anything, mock.MatchedBy(func(doc models.Document) bool {
		return doc.Version == 2
	})).Return(ErrVersionConflict).Once()
	backend.On("Save", mock.Anything, mock.MatchedBy(func(doc models.Document) bool {
		return doc.Version == 3
	})).Return(nil).Once()

	store, err := NewStore(context.Background(), backend, discardLogger())
	require.NoError(t, err)

	require.NoError(t, store.Append(context.Background(), textItem("b")))
	assert.Equal(t, []string{"a", "x", "b"}, ids(store.List()))
	assert.Equal(t, uint64(3), store.Version())
	backend.AssertExpectations(t)
}

func TestStore_VersionConflictGivesUp(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Load", mock.Anything).Return(models.Document{Version: 1, Items: []models.ContentItem{}}, nil)
	backend.On("Save", mock.Anything, mock.Anything).Return(ErrVersionConflict)

	store, err := NewStore(context.Background(), backend, discardLogger())
	require.NoError(t, err)

	err = store.Append(context.Background(), textItem("a"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
	assert.ErrorIs(t, err, ErrVersionConflict)
	backend.AssertNumberOfCalls(t, "Save", maxConflictRetries)
}

func TestStore_WriteTimeoutIsPersistenceError(t *testing.T) {
	backend := &blockingBackend{doc: models.Document{Items: []models.ContentItem{textItem("a")}}}
	store, err := NewStore(context.Background(), backend, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = store.Append(ctx, textItem("b"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"a"}, ids(store.List()))
}

func TestStore_ListDoesNotWaitForSave(t *testing.T) {
	backend := newGatedBackend(models.Document{Items: []models.ContentItem{textItem("a")}})
	store, err := NewStore(context.Background(), backend, discardLogger())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- store.Append(context.Background(), textItem("b")) }()
	<-backend.entered

	listed := make(chan []string, 1)
	go func() { listed <- ids(store.List()) }()

	select {
	case got := <-listed:
		assert.Equal(t, []string{"a"}, got)
	case <-time.After(time.Second):
		t.Fatal("List blocked behind an in-flight save")
	}

	close(backend.release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"a", "b"}, ids(store.List()))
}

func TestStore_SharedFileLosesNoUpdate(t *testing.T) {
	first, path := newFileStore(t)
	second := reopen(t, path)
	ctx := context.Background()

	require.NoError(t, first.Append(ctx, textItem("from-1")))
	require.NoError(t, second.Append(ctx, textItem("from-2")))

	assert.Equal(t, []string{"from-1", "from-2"}, ids(second.List()))
	assert.Equal(t, []string{"from-1", "from-2"}, ids(reopen(t, path).List()))
	assert.Equal(t, uint64(2), second.Version())

	// The first store is behind; its next write reloads before applying.
	require.NoError(t, first.Append(ctx, textItem("from-1b")))
	assert.Equal(t, []string{"from-1", "from-2", "from-1b"}, ids(reopen(t, path).List()))
}

func TestStore_SharedFileConcurrentWriters(t *testing.T) {
	first, path := newFileStore(t)
	second := reopen(t, path)
	ctx := context.Background()

	const perStore = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var written []string
	for _, store := range []*Store{first, second} {
		for i := 0; i < perStore; i++ {
			wg.Add(1)
			go func(store *Store, id string) {
				defer wg.Done()
				if err := store.Append(ctx, textItem(id)); err == nil {
					mu.Lock()
					written = append(written, id)
					mu.Unlock()
				}
			}(store, fmt.Sprintf("%p-%d", store, i))
		}
	}
	wg.Wait()

	// Writers may exhaust their conflict retries, but every acknowledged
	// append is on disk.
	require.NotEmpty(t, written)
	assert.ElementsMatch(t, written, ids(reopen(t, path).List()))
}

func TestStore_ConcurrentAppendsLoseNoUpdate(t *testing.T) {
	store, path := newFileStore(t)
	ctx := context.Background()

	const writers = 32
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.Append(ctx, textItem(fmt.Sprintf("item-%d", i)))
		}(i)
	}
	wg.Wait()
	close(errs)

	completed := 0
	for err := range errs {
		if err == nil {
			completed++
		}
	}

	assert.Equal(t, writers, completed)
	assert.Len(t, store.List(), completed)
	assert.Len(t, reopen(t, path).List(), completed)
	assert.Equal(t, uint64(writers), store.Version())
}

func TestStore_Reload(t *testing.T) {
	store, path := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, textItem("a")))

	changed, err := store.Reload(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	other := reopen(t, path)
	require.NoError(t, other.Append(ctx, textItem("b")))

	changed, err = store.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"a", "b"}, ids(store.List()))
}

func TestStore_LoadFailure(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Load", mock.Anything).Return(models.Document{}, errors.New("permission denied"))

	_, err := NewStore(context.Background(), backend, discardLogger())
	require.Error(t, err)
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
}

func TestParseDirection(t *testing.T) {
	dir, ok := ParseDirection("up")
	assert.True(t, ok)
	assert.Equal(t, Up, dir)

	dir, ok = ParseDirection("down")
	assert.True(t, ok)
	assert.Equal(t, Down, dir)

	_, ok = ParseDirection("UP")
	assert.False(t, ok)
}
