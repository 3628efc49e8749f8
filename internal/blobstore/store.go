// Package blobstore keeps uploaded media files on local disk, addressed by a
// generated storage name.
package blobstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"noticeboard/internal/apperr"
	"noticeboard/pkg/models"
)

const (
	DefaultMaxSize int64 = 50 << 20

	sniffLen        = 3072
	maxOriginalName = 100
)

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".mp4":  true,
}

var allowedTypes = []string{"image/jpeg", "image/png", "image/gif", "video/mp4"}

// sniffAliases maps detected subtypes to the allowed type they are stored as.
// MP4 files with an M4V brand detect as video/x-m4v.
var sniffAliases = map[string]string{
	"video/x-m4v": "video/mp4",
}

// fileMode is applied to stored blobs; temp files start as 0600.
const fileMode = 0o644

// SaveResult describes a stored blob.
type SaveResult struct {
	StoredName   string
	OriginalName string
	MimeType     string
	Size         int64
	Kind         models.Kind
}

type Store struct {
	dir     string
	maxSize int64
	now     func() time.Time
}

func New(dir string, maxSize int64) (*Store, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{dir: dir, maxSize: maxSize, now: time.Now}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// Save validates and stores the upload. Nothing is left on disk when the
// file is rejected or the write fails.
func (s *Store) Save(r io.Reader, originalName, declaredMime string) (*SaveResult, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return nil, apperr.UnsupportedMedia(invalidTypeMessage)
	}
	if declaredMime != "" && !isAllowedType(declaredMime) {
		return nil, apperr.UnsupportedMedia(invalidTypeMessage)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperr.Persistence("Failed to read upload", err)
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	mimeType, ok := matchAllowed(detected)
	if !ok {
		return nil, apperr.UnsupportedMedia(invalidTypeMessage)
	}

	storedName := s.storageName(originalName)
	size, err := s.writeAtomic(storedName, io.MultiReader(bytes.NewReader(head), r))
	if err != nil {
		return nil, err
	}

	return &SaveResult{
		StoredName:   storedName,
		OriginalName: filepath.Base(originalName),
		MimeType:     mimeType,
		Size:         size,
		Kind:         kindOf(mimeType),
	}, nil
}

// Delete removes a stored blob. A blob that is already gone is not an error.
func (s *Store) Delete(storedName string) error {
	if !validName(storedName) {
		return apperr.Validation("Invalid stored file name")
	}
	err := os.Remove(filepath.Join(s.dir, storedName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", storedName, err)
	}
	return nil
}

// Orphans lists stored blobs that are not in referenced, sorted by name.
// In-progress temp files are skipped.
func (s *Store) Orphans(referenced map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list upload directory: %w", err)
	}

	var orphans []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !referenced[name] {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)
	return orphans, nil
}

const invalidTypeMessage = "Invalid file type. Only images (JPEG, PNG, GIF) and videos (MP4) are allowed."

func (s *Store) writeAtomic(storedName string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return 0, apperr.Persistence("Failed to store upload", err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, io.LimitReader(r, s.maxSize+1))
	if err == nil && written > s.maxSize {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, apperr.UnsupportedMedia(fmt.Sprintf("File too large. Maximum size is %d MB.", s.maxSize>>20))
	}
	if err == nil {
		err = tmp.Chmod(fileMode)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return 0, apperr.Persistence("Failed to store upload", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(s.dir, storedName)); err != nil {
		os.Remove(tmpPath)
		return 0, apperr.Persistence("Failed to store upload", err)
	}
	return written, nil
}

func (s *Store) storageName(originalName string) string {
	return fmt.Sprintf("%d-%s-%s",
		s.now().UnixMilli(),
		uuid.NewString()[:8],
		sanitize(originalName),
	)
}

// sanitize keeps the base name readable on disk and in URLs.
func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(name))
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	clean := strings.Trim(b.String(), "._")
	if clean == "" {
		clean = "file"
	}
	if len(clean) > maxOriginalName {
		clean = clean[:maxOriginalName]
	}
	return clean + ext
}

func validName(name string) bool {
	return name != "" &&
		name == filepath.Base(name) &&
		!strings.HasPrefix(name, ".") &&
		!strings.ContainsAny(name, `/\`)
}

func isAllowedType(declared string) bool {
	declared = strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
	for _, t := range allowedTypes {
		if declared == t {
			return true
		}
	}
	return false
}

func matchAllowed(m *mimetype.MIME) (string, bool) {
	for _, t := range allowedTypes {
		if m.Is(t) {
			return t, true
		}
	}
	for detected, t := range sniffAliases {
		if m.Is(detected) {
			return t, true
		}
	}
	return "", false
}

func kindOf(mimeType string) models.Kind {
	if strings.HasPrefix(mimeType, "image/") {
		return models.KindImage
	}
	return models.KindVideo
}
