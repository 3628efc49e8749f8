package playlist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"noticeboard/pkg/models"
)

const (
	documentMode     = 0o644
	lockPollInterval = 10 * time.Millisecond
)

// FileBackend keeps the playlist as a single JSON file. Writes go to a temp
// file in the same directory which is fsynced and renamed over the target.
//
// Writers in any process serialize on an flock of <path>.lock and compare
// the version stored in the file before replacing it.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

func NewFileBackend(path string) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create playlist directory: %w", err)
	}
	return &FileBackend{path: path}, nil
}

func (b *FileBackend) Path() string {
	return b.path
}

// EnsureExists writes an empty document when the file is missing.
func (b *FileBackend) EnsureExists(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	unlock, err := b.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := os.Stat(b.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat playlist file: %w", err)
	}

	data, err := models.EncodeDocument(models.Document{})
	if err != nil {
		return err
	}
	return b.writeAtomic(ctx, data)
}

func (b *FileBackend) Load(ctx context.Context) (models.Document, error) {
	if err := ctx.Err(); err != nil {
		return models.Document{}, err
	}
	return b.read()
}

func (b *FileBackend) Save(ctx context.Context, doc models.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	unlock, err := b.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	stored, err := b.read()
	if err != nil {
		return err
	}
	if doc.Version != stored.Version+1 {
		return fmt.Errorf("%w: stored %d, saving %d", ErrVersionConflict, stored.Version, doc.Version)
	}

	data, err := models.EncodeDocument(doc)
	if err != nil {
		return err
	}
	return b.writeAtomic(ctx, data)
}

// read decodes the file as it is on disk. A missing file is an empty
// document at version 0.
func (b *FileBackend) read() (models.Document, error) {
	data, err := os.ReadFile(b.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return models.Document{}, fmt.Errorf("read playlist file %s: %w", b.path, err)
	}

	doc, err := models.DecodeDocument(data)
	if err != nil {
		return models.Document{}, fmt.Errorf("playlist file %s: %w", b.path, err)
	}
	return doc, nil
}

// lock takes an exclusive flock on the lock file next to the document,
// polling until ctx ends. The lock file itself is never removed.
func (b *FileBackend) lock(ctx context.Context) (func(), error) {
	f, err := os.OpenFile(b.path+".lock", os.O_CREATE|os.O_RDWR, documentMode)
	if err != nil {
		return nil, fmt.Errorf("open playlist lock: %w", err)
	}
	fd := int(f.Fd())

	for {
		err := syscall.Flock(fd, syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			break
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) && !errors.Is(err, syscall.EINTR) {
			f.Close()
			return nil, fmt.Errorf("lock playlist file: %w", err)
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, fmt.Errorf("lock playlist file: %w", ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}

	return func() {
		_ = syscall.Flock(fd, syscall.LOCK_UN)
		f.Close()
	}, nil
}

// writeAtomic writes data through a temp file. The write runs in its own
// goroutine so a hung disk is bounded by ctx; when ctx ends first the temp
// file is removed instead of renamed and the target keeps its old content.
func (b *FileBackend) writeAtomic(ctx context.Context, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	written := make(chan error)
	go func() {
		err := writeAndSync(tmp, data)
		select {
		case written <- err:
		case <-ctx.Done():
			os.Remove(tmpPath)
		}
	}()

	select {
	case err := <-written:
		if err != nil {
			os.Remove(tmpPath)
			return err
		}
	case <-ctx.Done():
		return fmt.Errorf("write playlist file: %w", ctx.Err())
	}

	if err := os.Rename(tmpPath, b.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename playlist file: %w", err)
	}
	return nil
}

func writeAndSync(f *os.File, data []byte) error {
	if err := f.Chmod(documentMode); err != nil {
		f.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return nil
}
