// Package upload validates trade screenshots before they are handed to the
// analysis pipeline.
package upload

import (
	"bytes"
	"errors"
	"image"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/xid"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

var (
	ErrTooLarge        = errors.New("file exceeds maximum size")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrBadDimensions   = errors.New("image dimensions out of range")
)

const MaxSize = 10 << 20

const (
	minDimension = 100
	maxDimension = 4000
)

var allowedTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// Image describes an accepted screenshot.
type Image struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// Validate checks a candidate screenshot against the upload rules: at most
// 10 MB, a known image extension whose sniffed content type agrees, and
// pixel dimensions between 100x100 and 4000x4000.
func Validate(name string, data []byte) (Image, error) {
	if int64(len(data)) > MaxSize {
		return Image{}, ErrTooLarge
	}

	ext := strings.ToLower(filepath.Ext(name))
	contentType, ok := allowedTypes[ext]
	if !ok {
		return Image{}, ErrUnsupportedType
	}

	if http.DetectContentType(data) != contentType {
		return Image{}, ErrUnsupportedType
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, ErrUnsupportedType
	}

	if cfg.Width < minDimension || cfg.Height < minDimension ||
		cfg.Width > maxDimension || cfg.Height > maxDimension {
		return Image{}, ErrBadDimensions
	}

	return Image{
		ID:          xid.New().String(),
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}
