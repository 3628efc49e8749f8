package database

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"noticeboard/internal/playlist"
	content "noticeboard/pkg/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "noticeboard.db"), logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { Close(db) })
	return db
}

func textItem(id string) content.ContentItem {
	return content.NewTextItem(id, "notice "+id, "", "", 0, time.Now().UTC().Truncate(time.Second))
}

func itemIDs(items []content.ContentItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn", logger.Silent)
	assert.Error(t, err)
}

func TestSQLBackend_LoadEmpty(t *testing.T) {
	backend := NewSQLBackend(openTestDB(t), "")

	doc, err := backend.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), doc.Version)
	assert.Empty(t, doc.Items)
}

func TestSQLBackend_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	backend := NewSQLBackend(openTestDB(t), "")

	doc := content.Document{Version: 1, Items: []content.ContentItem{textItem("a"), textItem("b")}}
	require.NoError(t, backend.Save(ctx, doc))

	doc.Version = 2
	doc.Items = append(doc.Items, textItem("c"))
	require.NoError(t, backend.Save(ctx, doc))

	loaded, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), loaded.Version)
	assert.Equal(t, []string{"a", "b", "c"}, itemIDs(loaded.Items))
	assert.Equal(t, "notice a", loaded.Items[0].Text.Body)
}

func TestSQLBackend_SaveConflicts(t *testing.T) {
	ctx := context.Background()
	backend := NewSQLBackend(openTestDB(t), "")

	require.NoError(t, backend.Save(ctx, content.Document{Version: 1, Items: []content.ContentItem{textItem("a")}}))

	tests := []struct {
		name    string
		version uint64
	}{
		{"second insert", 1},
		{"skipped version", 3},
		{"zero", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := backend.Save(ctx, content.Document{Version: tt.version, Items: []content.ContentItem{textItem("x")}})
			assert.ErrorIs(t, err, playlist.ErrVersionConflict)
		})
	}

	loaded, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, itemIDs(loaded.Items))
}

func TestSQLBackend_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	lobby := NewSQLBackend(db, "lobby")
	canteen := NewSQLBackend(db, "canteen")

	require.NoError(t, lobby.Save(ctx, content.Document{Version: 1, Items: []content.ContentItem{textItem("a")}}))

	doc, err := canteen.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Items)
}

// Two stores over the same row behave like two server processes: the one
// holding a stale version reloads and re-applies its change.
func TestSQLBackend_StoresRetryOnConflict(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	first, err := playlist.NewStore(ctx, NewSQLBackend(db, ""), log)
	require.NoError(t, err)
	second, err := playlist.NewStore(ctx, NewSQLBackend(db, ""), log)
	require.NoError(t, err)

	require.NoError(t, first.Append(ctx, textItem("a")))
	require.NoError(t, second.Append(ctx, textItem("b")))

	assert.Equal(t, []string{"a", "b"}, itemIDs(second.List()))
	assert.Equal(t, uint64(2), second.Version())

	changed, err := first.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"a", "b"}, itemIDs(first.List()))
}

func TestSQLBackend_ConcurrentStores(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	stores := make([]*playlist.Store, 2)
	for i := range stores {
		s, err := playlist.NewStore(ctx, NewSQLBackend(db, ""), log)
		require.NoError(t, err)
		stores[i] = s
	}

	var wg sync.WaitGroup
	for i, s := range stores {
		wg.Add(1)
		go func(i int, s *playlist.Store) {
			defer wg.Done()
			assert.NoError(t, s.Append(ctx, textItem(string(rune('a'+i)))))
		}(i, s)
	}
	wg.Wait()

	doc, err := NewSQLBackend(db, "").Load(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, itemIDs(doc.Items))
	assert.Equal(t, uint64(2), doc.Version)
}
