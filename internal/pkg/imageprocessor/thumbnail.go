package imageprocessor

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// Thumbnail settings for marketplace previews
const (
	ThumbnailWidth = 480
	WebPQuality    = 85
	maxSourceBytes = 20 << 20
)

// Thumbnail is an encoded preview image.
type Thumbnail struct {
	Data        []byte
	Width       int
	Height      int
	ContentType string
	Ext         string
}

// MakeThumbnail decodes src, applies the EXIF orientation, scales it down
// to maxWidth and encodes it as WebP. JPEG is used when WebP encoding fails.
func MakeThumbnail(src io.Reader, maxWidth int) (*Thumbnail, error) {
	if maxWidth <= 0 {
		maxWidth = ThumbnailWidth
	}
	data, err := io.ReadAll(io.LimitReader(src, maxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	if len(data) > maxSourceBytes {
		return nil, fmt.Errorf("source image exceeds %d bytes", maxSourceBytes)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}
	img = applyOrientation(img, readOrientation(data))

	if img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	thumb := &Thumbnail{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	var buf bytes.Buffer
	if err := encodeWebP(&buf, img); err != nil {
		log.Warnf("[ImageProcessor] WebP encoding failed, using JPEG: %v", err)
		buf.Reset()
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(WebPQuality)); err != nil {
			return nil, fmt.Errorf("encode thumbnail: %w", err)
		}
		thumb.ContentType, thumb.Ext = "image/jpeg", ".jpg"
	} else {
		thumb.ContentType, thumb.Ext = "image/webp", ".webp"
	}
	thumb.Data = buf.Bytes()
	return thumb, nil
}

func encodeWebP(w io.Writer, img image.Image) error {
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, WebPQuality)
	if err != nil {
		return err
	}
	return webp.Encode(w, img, options)
}
