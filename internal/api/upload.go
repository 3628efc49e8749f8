package api

import (
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"noticeboard/internal/apperr"
	"noticeboard/internal/blobstore"
	"noticeboard/internal/metrics"
	"noticeboard/internal/playlist"
	"noticeboard/pkg/models"
)

type UploadHandler struct {
	store        *playlist.Store
	blobs        *blobstore.Store
	notify       *Notifier
	logger       *slog.Logger
	writeTimeout time.Duration
}

func NewUploadHandler(store *playlist.Store, blobs *blobstore.Store, notify *Notifier, logger *slog.Logger, writeTimeout time.Duration) *UploadHandler {
	return &UploadHandler{
		store:        store,
		blobs:        blobs,
		notify:       notify,
		logger:       logger,
		writeTimeout: writeTimeout,
	}
}

// Upload stores every file in the "files" field and appends them to the
// playlist in one write. Either all files land in the playlist or none do.
func (h *UploadHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		respondError(c, apperr.Validation("No files uploaded"))
		return
	}
	files := form.File["files"]

	var stored []string
	discard := func() {
		for _, name := range stored {
			if err := h.blobs.Delete(name); err != nil {
				h.logger.Warn("could not remove rejected upload", slog.String("file", name), slog.String("error", err.Error()))
			}
		}
	}

	now := time.Now().UTC()
	items := make([]models.ContentItem, 0, len(files))
	var total int64
	for _, fh := range files {
		res, err := h.save(fh)
		if err != nil {
			discard()
			metrics.PlaylistWrites.WithLabelValues("upload", "rejected").Inc()
			respondError(c, err)
			return
		}
		stored = append(stored, res.StoredName)
		total += res.Size
		items = append(items, models.NewMediaItem(uuid.NewString(), res.Kind, res.StoredName, res.OriginalName, res.MimeType, res.Size, now))
	}

	ctx, cancel := writeContext(c, h.writeTimeout)
	defer cancel()

	err = h.store.Append(ctx, items...)
	metrics.PlaylistWrites.WithLabelValues("upload", metrics.Result(err)).Inc()
	if err != nil {
		discard()
		respondError(c, err)
		return
	}
	metrics.UploadedBytes.Add(float64(total))
	metrics.PlaylistItems.Set(float64(len(h.store.List())))

	h.notify.ContentUpdated(ctx)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"uploaded": len(items),
		"files":    items,
	})
}

func (h *UploadHandler) save(fh *multipart.FileHeader) (*blobstore.SaveResult, error) {
	if fh.Size > h.blobs.MaxSize() {
		return nil, apperr.UnsupportedMedia(fmt.Sprintf("File %s is too large. Maximum size is %d MB.", fh.Filename, h.blobs.MaxSize()>>20))
	}

	f, err := fh.Open()
	if err != nil {
		return nil, apperr.Persistence("Failed to read upload", err)
	}
	defer f.Close()

	return h.blobs.Save(f, fh.Filename, fh.Header.Get("Content-Type"))
}
