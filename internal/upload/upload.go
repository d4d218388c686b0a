// Package upload handles validation and sandboxed persistence of uploaded
// files. Declared content types are untrusted: the policy sniffs the actual
// bytes, and stored files never use the client-supplied filename.
package upload

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Common errors returned by the upload package
var (
	// ErrUnsupportedMediaType is returned when the sniffed media type is not
	// on the allow-list.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrFileTooLarge is returned when the upload exceeds the size ceiling.
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")

	// ErrEmptyFile is returned for zero-byte uploads.
	ErrEmptyFile = errors.New("uploaded file is empty")

	// ErrOutsideSandbox is returned when a removal targets a path outside
	// the upload directory.
	ErrOutsideSandbox = errors.New("path is outside the upload sandbox")
)

// allowedMediaTypes is the extraction allow-list: PDF plus common raster
// image types.
var allowedMediaTypes = map[string]struct{}{
	"application/pdf": {},
	"image/png":       {},
	"image/jpeg":      {},
	"image/webp":      {},
	"image/gif":       {},
}

// Policy validates uploads against the size ceiling and media-type
// allow-list.
type Policy struct {
	MaxBytes int64
}

// Check sniffs the media type from the file bytes and validates the upload.
// It returns the detected media type on success.
func (p Policy) Check(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}

	if p.MaxBytes > 0 && int64(len(data)) > p.MaxBytes {
		return "", fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, len(data), p.MaxBytes)
	}

	mediaType := DetectMediaType(data)
	if _, ok := allowedMediaTypes[mediaType]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mediaType)
	}

	return mediaType, nil
}

// DetectMediaType sniffs the media type from magic bytes, stripping any
// parameters like charset.
func DetectMediaType(data []byte) string {
	detected := mimetype.Detect(data).String()
	if base, _, found := strings.Cut(detected, ";"); found {
		return strings.TrimSpace(base)
	}
	return detected
}

// Store persists uploaded bytes in a sandboxed directory. Files are named by
// a fresh UUID plus the extension implied by the sniffed media type, so no
// client-controlled path component ever reaches the filesystem.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates the upload directory if needed and returns a Store over it.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving upload dir: %w", err)
	}

	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}

	return &Store{dir: abs, logger: logger}, nil
}

// Dir returns the sandbox directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the bytes to a fresh file in the sandbox and returns its path.
func (s *Store) Save(data []byte, mediaType string) (string, error) {
	name := uuid.New().String() + extensionFor(mediaType)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}

	s.logger.Debug("stored upload",
		"path", path,
		"size_bytes", len(data),
		"media_type", mediaType)

	return path, nil
}

// Remove deletes a stored file. Paths outside the sandbox are rejected, and
// removing an already-missing file is not an error.
func (s *Store) Remove(path string) error {
	cleaned := filepath.Clean(path)
	if !strings.HasPrefix(cleaned, s.dir+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrOutsideSandbox, path)
	}

	if err := os.Remove(cleaned); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing upload: %w", err)
	}
	return nil
}

// extensionFor maps allow-listed media types to a file extension. Unknown
// types get a neutral extension; they can only appear if the allow-list
// grows without this map keeping up.
func extensionFor(mediaType string) string {
	switch mediaType {
	case "application/pdf":
		return ".pdf"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}
