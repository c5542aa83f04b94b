package dataset

import (
	"bytes"
	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"
	"image"
	"os"
	"path/filepath"
	"strings"
)

// ImageExts lists the file extensions treated as images.
var ImageExts = []string{".jpg", ".jpeg", ".png", ".webp"}

// IsImage reports whether path has one of ImageExts, ignoring case.
func IsImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ImageExts {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadImage decodes the image at path honoring its EXIF orientation.
func LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	// lossless and animated webp files the x/image decoder rejects
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read image")
	}
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Errorf("decode %s: unknown or unsupported image format", path)
	}
	return img, nil
}

// DecodeImage decodes an in-memory image, e.g. an upload.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}
	if img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New("unknown or unsupported image format")
	}
	return img, nil
}
