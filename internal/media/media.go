// AngelaMos | 2026
// media.go

package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/carterperez-dev/cinemadb/internal/config"
)

const (
	FolderPosters      = "posters"
	FolderBackdrops    = "backdrops"
	FolderUserPictures = "users/pictures"

	MsgInvalidImage = "Upload a valid image. The file you uploaded was either " +
		"not an image or a corrupted image."
)

var (
	ErrInvalidImage  = errors.New("invalid image")
	ErrImageTooLarge = errors.New("image too large")
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type Image struct {
	Data     []byte
	MIMEType string
	Ext      string
}

// Storage keeps uploaded images on the local filesystem and maps stored
// paths to public URLs.
type Storage struct {
	root      string
	urlPrefix string
	baseURL   string
	maxBytes  int
}

func NewStorage(cfg config.MediaConfig) *Storage {
	prefix := "/" + strings.Trim(cfg.URLPrefix, "/")
	return &Storage{
		root:      cfg.Root,
		urlPrefix: prefix,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		maxBytes:  cfg.MaxImageBytes,
	}
}

// Decode accepts raw base64 or a data URI and returns the image when its
// sniffed content type is one we serve.
func (s *Storage) Decode(raw string) (Image, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Image{}, ErrInvalidImage
	}

	if strings.HasPrefix(raw, "data:") {
		_, payload, ok := strings.Cut(raw, ";base64,")
		if !ok {
			return Image{}, ErrInvalidImage
		}
		raw = payload
	}

	if s.maxBytes > 0 && base64.StdEncoding.DecodedLen(len(raw)) > s.maxBytes+2 {
		return Image{}, ErrImageTooLarge
	}

	data, err := decodeBase64(raw)
	if err != nil {
		return Image{}, ErrInvalidImage
	}

	mt := mimetype.Detect(data)
	for _, candidate := range []string{"image/jpeg", "image/png", "image/gif", "image/webp"} {
		if mt.Is(candidate) {
			return Image{Data: data, MIMEType: candidate, Ext: allowedTypes[candidate]}, nil
		}
	}

	return Image{}, ErrInvalidImage
}

func decodeBase64(raw string) ([]byte, error) {
	if data, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return data, nil
	}
	if data, err := base64.RawStdEncoding.DecodeString(raw); err == nil {
		return data, nil
	}
	return base64.URLEncoding.DecodeString(raw)
}

// Save writes img under folder and returns the stored relative path.
func (s *Storage) Save(ctx context.Context, folder string, img Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rel := path.Join(folder, uuid.NewString()+img.Ext)
	full := filepath.Join(s.root, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	//nolint:gosec // G306: media files are served publicly
	if err := os.WriteFile(full, img.Data, 0o644); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}

	return rel, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Storage) Remove(rel string) error {
	if rel == "" || !s.contains(rel) {
		return nil
	}

	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove media file: %w", err)
	}
	return nil
}

func (s *Storage) contains(rel string) bool {
	clean := path.Clean(rel)
	return clean != "." && clean != ".." &&
		!strings.HasPrefix(clean, "../") && !path.IsAbs(clean)
}

// PublicURL turns a stored path into the URL clients should fetch.
func (s *Storage) PublicURL(rel string) string {
	if rel == "" {
		return ""
	}
	if strings.HasPrefix(rel, "http://") || strings.HasPrefix(rel, "https://") {
		return rel
	}
	return s.baseURL + path.Join(s.urlPrefix, rel)
}

func (s *Storage) URLPrefix() string {
	return s.urlPrefix
}

// Handler serves stored files below URLPrefix without directory listings.
func (s *Storage) Handler() http.Handler {
	fs := http.StripPrefix(s.urlPrefix, http.FileServer(http.Dir(s.root)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		fs.ServeHTTP(w, r)
	})
}
