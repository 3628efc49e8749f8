package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"noticeboard/internal/apperr"
	"noticeboard/internal/metrics"
	"noticeboard/internal/playlist"
	"noticeboard/pkg/models"
)

const maxTextLength = 2000

var errInvalidDuration = errors.New("invalid duration")

// Duration accepts a JSON number or a numeric string. Fractions are
// truncated. Null and "" mean unset.
type Duration struct {
	Value int
	Set   bool
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = Duration{}
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errInvalidDuration
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*d = Duration{}
			return nil
		}
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt32 {
		return errInvalidDuration
	}
	if f < 0 {
		return errInvalidDuration
	}
	*d = Duration{Value: int(f), Set: true}
	return nil
}

type textRequest struct {
	Content  string   `json:"content"`
	Color    string   `json:"color"`
	Size     string   `json:"size"`
	Duration Duration `json:"duration"`
}

type TextHandler struct {
	store        *playlist.Store
	notify       *Notifier
	logger       *slog.Logger
	writeTimeout time.Duration
}

func NewTextHandler(store *playlist.Store, notify *Notifier, logger *slog.Logger, writeTimeout time.Duration) *TextHandler {
	return &TextHandler{
		store:        store,
		notify:       notify,
		logger:       logger,
		writeTimeout: writeTimeout,
	}
}

// AddText appends a text announcement.
func (h *TextHandler) AddText(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, errInvalidDuration) {
			respondError(c, apperr.Validation("Duration must be a non-negative number of seconds"))
			return
		}
		respondError(c, apperr.Validation("Invalid request body"))
		return
	}

	if strings.TrimSpace(req.Content) == "" {
		respondError(c, apperr.Validation("Text content is required"))
		return
	}
	if len(req.Content) > maxTextLength {
		respondError(c, apperr.Validation("Text content is too long"))
		return
	}
	size := models.FontSize(strings.ToLower(req.Size))
	if size != "" && !size.Valid() {
		respondError(c, apperr.Validation("Size must be small, medium or large"))
		return
	}

	item := models.NewTextItem(uuid.NewString(), req.Content, req.Color, size, req.Duration.Value, time.Now().UTC())

	ctx, cancel := writeContext(c, h.writeTimeout)
	defer cancel()

	err := h.store.Append(ctx, item)
	metrics.PlaylistWrites.WithLabelValues("text", metrics.Result(err)).Inc()
	if err != nil {
		respondError(c, err)
		return
	}
	metrics.PlaylistItems.Set(float64(len(h.store.List())))

	h.notify.ContentUpdated(ctx)
	c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
}
