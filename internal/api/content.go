package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"noticeboard/internal/apperr"
	"noticeboard/internal/blobstore"
	"noticeboard/internal/metrics"
	"noticeboard/internal/playlist"
)

type ContentHandler struct {
	store        *playlist.Store
	blobs        *blobstore.Store
	notify       *Notifier
	logger       *slog.Logger
	writeTimeout time.Duration
}

func NewContentHandler(store *playlist.Store, blobs *blobstore.Store, notify *Notifier, logger *slog.Logger, writeTimeout time.Duration) *ContentHandler {
	return &ContentHandler{
		store:        store,
		blobs:        blobs,
		notify:       notify,
		logger:       logger,
		writeTimeout: writeTimeout,
	}
}

// GetContent returns the playlist in display order.
func (h *ContentHandler) GetContent(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.List())
}

// DeleteContent removes an item and then its media file.
func (h *ContentHandler) DeleteContent(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		respondError(c, apperr.Validation("Content id is required"))
		return
	}

	ctx, cancel := writeContext(c, h.writeTimeout)
	defer cancel()

	removed, err := h.store.DeleteByID(ctx, id)
	metrics.PlaylistWrites.WithLabelValues("delete", metrics.Result(err)).Inc()
	if err != nil {
		respondError(c, err)
		return
	}
	metrics.PlaylistItems.Set(float64(len(h.store.List())))

	// The playlist no longer references the file, so a failed removal only
	// leaves an orphan for prune_uploads.
	if name := removed.StoredName(); name != "" {
		if err := h.blobs.Delete(name); err != nil {
			h.logger.Warn("could not delete media file",
				slog.String("id", removed.ID),
				slog.String("file", name),
				slog.String("error", err.Error()),
			)
		}
	}

	h.notify.ContentUpdated(ctx)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Content item deleted successfully"})
}

type reorderRequest struct {
	Index     *int   `json:"index"`
	Direction string `json:"direction"`
}

// Reorder moves the item at index one step up or down.
func (h *ContentHandler) Reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("Invalid request body"))
		return
	}
	if req.Index == nil {
		respondError(c, apperr.IndexOutOfRange("Invalid index"))
		return
	}
	dir, ok := playlist.ParseDirection(req.Direction)
	if !ok {
		respondError(c, apperr.Validation("Invalid direction"))
		return
	}

	ctx, cancel := writeContext(c, h.writeTimeout)
	defer cancel()

	moved, err := h.store.MoveByIndex(ctx, *req.Index, dir)
	if err != nil {
		metrics.PlaylistWrites.WithLabelValues("reorder", metrics.Result(err)).Inc()
		respondError(c, err)
		return
	}
	if !moved {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "No change needed"})
		return
	}
	metrics.PlaylistWrites.WithLabelValues("reorder", "ok").Inc()

	h.notify.ContentUpdated(ctx)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Content reordered successfully"})
}
