package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the variant of a ContentItem.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindText  Kind = "text"
)

// FontSize is the display size of a text announcement.
type FontSize string

const (
	FontSmall  FontSize = "small"
	FontMedium FontSize = "medium"
	FontLarge  FontSize = "large"
)

func (f FontSize) Valid() bool {
	switch f {
	case FontSmall, FontMedium, FontLarge:
		return true
	}
	return false
}

const (
	DefaultImageDuration = 10
	DefaultTextDuration  = 30
	DefaultTextColor     = "#FFFFFF"

	UploadsURLPrefix = "/uploads/"
)

// ContentItem is one playlist entry. Exactly one of Media and Text is set,
// matching Kind.
type ContentItem struct {
	ID        string
	Kind      Kind
	CreatedAt time.Time
	// Duration is the display time in seconds. Zero on a video means play
	// the full length.
	Duration int

	Media *Media
	Text  *Text
}

// Media describes an uploaded image or video held in the blob store.
type Media struct {
	StoredName   string
	OriginalName string
	MimeType     string
	SizeBytes    int64
	URL          string
}

// Text is a text announcement.
type Text struct {
	Body     string
	Color    string
	FontSize FontSize
}

// NewMediaItem builds an image or video item for a stored blob.
func NewMediaItem(id string, kind Kind, storedName, originalName, mimeType string, size int64, now time.Time) ContentItem {
	duration := 0
	if kind == KindImage {
		duration = DefaultImageDuration
	}
	return ContentItem{
		ID:        id,
		Kind:      kind,
		CreatedAt: now,
		Duration:  duration,
		Media: &Media{
			StoredName:   storedName,
			OriginalName: originalName,
			MimeType:     mimeType,
			SizeBytes:    size,
			URL:          UploadsURLPrefix + storedName,
		},
	}
}

// NewTextItem builds a text item, applying the default color, size and duration.
func NewTextItem(id, body, color string, size FontSize, duration int, now time.Time) ContentItem {
	if color == "" {
		color = DefaultTextColor
	}
	if size == "" {
		size = FontMedium
	}
	if duration == 0 {
		duration = DefaultTextDuration
	}
	return ContentItem{
		ID:        id,
		Kind:      KindText,
		CreatedAt: now,
		Duration:  duration,
		Text: &Text{
			Body:     body,
			Color:    color,
			FontSize: size,
		},
	}
}

// StoredName returns the blob key owned by the item, or "" for text items.
func (c ContentItem) StoredName() string {
	if c.Media == nil {
		return ""
	}
	return c.Media.StoredName
}

// mediaJSON and textJSON are the flat wire shapes of content-data.json. The
// "size" key holds bytes for media and the font size for text.
type mediaJSON struct {
	ID           string    `json:"id"`
	Type         Kind      `json:"type"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	URL          string    `json:"url"`
	MimeType     string    `json:"mimetype"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
	Duration     int       `json:"duration"`
}

type textJSON struct {
	ID        string    `json:"id"`
	Type      Kind      `json:"type"`
	Content   string    `json:"content"`
	Color     string    `json:"color"`
	Size      FontSize  `json:"size"`
	Duration  int       `json:"duration"`
	CreatedAt time.Time `json:"createdAt"`
}

// MarshalJSON satisfies json.Marshaler.
func (c ContentItem) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case KindImage, KindVideo:
		m := c.Media
		if m == nil {
			m = &Media{}
		}
		return json.Marshal(mediaJSON{
			ID:           c.ID,
			Type:         c.Kind,
			Filename:     m.StoredName,
			OriginalName: m.OriginalName,
			URL:          m.URL,
			MimeType:     m.MimeType,
			Size:         m.SizeBytes,
			CreatedAt:    c.CreatedAt,
			Duration:     c.Duration,
		})
	case KindText:
		t := c.Text
		if t == nil {
			t = &Text{}
		}
		return json.Marshal(textJSON{
			ID:        c.ID,
			Type:      c.Kind,
			Content:   t.Body,
			Color:     t.Color,
			Size:      t.FontSize,
			Duration:  c.Duration,
			CreatedAt: c.CreatedAt,
		})
	default:
		return nil, fmt.Errorf("unknown content kind %q", c.Kind)
	}
}

// UnmarshalJSON satisfies json.Unmarshaler.
func (c *ContentItem) UnmarshalJSON(data []byte) error {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	switch head.Type {
	case KindImage, KindVideo:
		var m mediaJSON
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		url := m.URL
		if url == "" && m.Filename != "" {
			url = UploadsURLPrefix + m.Filename
		}
		*c = ContentItem{
			ID:        m.ID,
			Kind:      m.Type,
			CreatedAt: m.CreatedAt,
			Duration:  m.Duration,
			Media: &Media{
				StoredName:   m.Filename,
				OriginalName: m.OriginalName,
				MimeType:     m.MimeType,
				SizeBytes:    m.Size,
				URL:          url,
			},
		}
	case KindText:
		var t textJSON
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		*c = ContentItem{
			ID:        t.ID,
			Kind:      KindText,
			CreatedAt: t.CreatedAt,
			Duration:  t.Duration,
			Text: &Text{
				Body:     t.Content,
				Color:    t.Color,
				FontSize: t.Size,
			},
		}
	default:
		return fmt.Errorf("unknown content type %q", head.Type)
	}
	return nil
}
