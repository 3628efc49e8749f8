package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noticeboard/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		ContentFile: filepath.Join(dir, "data", "content-data.json"),
		DBPath:      filepath.Join(dir, "noticeboard.db"),
	}
}

func TestOpen_File(t *testing.T) {
	cfg := testConfig(t)

	opened, err := Open(context.Background(), cfg, config.StoreFile)
	require.NoError(t, err)
	defer opened.Close()

	require.NotNil(t, opened.File)
	_, err = os.Stat(cfg.ContentFile)
	assert.NoError(t, err)

	doc, err := opened.Backend.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Items)
}

func TestOpen_SQLite(t *testing.T) {
	cfg := testConfig(t)

	opened, err := Open(context.Background(), cfg, config.StoreSQLite)
	require.NoError(t, err)
	defer opened.Close()

	assert.Nil(t, opened.File)
	doc, err := opened.Backend.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Items)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), testConfig(t), "mongo")
	assert.Error(t, err)
}
