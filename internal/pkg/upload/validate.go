package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxImageBytes limits a single listing image.
const MaxImageBytes = 10 << 20

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	// SVG is excluded: it can carry scripts
}

var allowedMime = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

var (
	ErrUnsupportedFormat = errors.New("Only these image formats are supported: JPG, JPEG, PNG, GIF, WEBP, BMP")
	ErrHTMLContent       = errors.New("Invalid file type: HTML content is not allowed")
	ErrSVGContent        = errors.New("SVG/XML files are not supported for security reasons")
	ErrUnsupportedType   = errors.New("The file type is not supported")
	ErrTooLarge          = fmt.Errorf("Images may be at most %d MB", MaxImageBytes>>20)
)

// ValidateImageBySniff checks the provided filename (extension) and the first bytes (head)
// against a whitelist of image types. Returns detected mime or an error.
func ValidateImageBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", ErrUnsupportedFormat
	}

	detected := http.DetectContentType(head)

	// Block obvious scriptable types regardless of extension
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return "", ErrHTMLContent
	}
	if strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "application/xml") || detected == "image/svg+xml" {
		return "", ErrSVGContent
	}

	if allowedMime[detected] {
		return detected, nil
	}
	return "", ErrUnsupportedType
}

// ValidateFileHeader checks size and content of a multipart upload.
func ValidateFileHeader(fh *multipart.FileHeader) (string, error) {
	if fh.Size > MaxImageBytes {
		return "", ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return ValidateImageBySniff(fh.Filename, head[:n])
}
