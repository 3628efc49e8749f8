package playlist

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"noticeboard/pkg/models"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Load(ctx context.Context) (models.Document, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Document), args.Error(1)
}

func (m *MockBackend) Save(ctx context.Context, doc models.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

// blockingBackend never finishes a save until the caller gives up.
type blockingBackend struct {
	doc models.Document
}

func (b *blockingBackend) Load(ctx context.Context) (models.Document, error) {
	return b.doc.Clone(), nil
}

func (b *blockingBackend) Save(ctx context.Context, doc models.Document) error {
	<-ctx.Done()
	return ctx.Err()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gatedBackend holds every save until release is closed.
type gatedBackend struct {
	doc     models.Document
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedBackend(doc models.Document) *gatedBackend {
	return &gatedBackend{
		doc:     doc,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *gatedBackend) Load(ctx context.Context) (models.Document, error) {
	return b.doc.Clone(), nil
}

func (b *gatedBackend) Save(ctx context.Context, doc models.Document) error {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
