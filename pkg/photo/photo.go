// Package photo decodes and normalises the verification photos captured by the attendance client.
package photo

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// ErrEmpty is returned when no image payload was supplied.
var ErrEmpty = errors.New("photo payload empty")

// Processor normalises photos to bounded JPEGs.
type Processor struct {
	maxBytes     int64
	maxDimension int
	quality      int
}

// NewProcessor builds a processor; non-positive limits fall back to sensible defaults.
func NewProcessor(maxBytes int64, maxDimension int) *Processor {
	if maxBytes <= 0 {
		maxBytes = 5 * 1024 * 1024
	}
	if maxDimension <= 0 {
		maxDimension = 1280
	}
	return &Processor{maxBytes: maxBytes, maxDimension: maxDimension, quality: 85}
}

// DecodePayload accepts either a data URL ("data:image/jpeg;base64,...") or bare base64.
func (p *Processor) DecodePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, ErrEmpty
	}
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 || !strings.Contains(payload[:comma], ";base64") {
			return nil, fmt.Errorf("photo data url must be base64 encoded")
		}
		payload = payload[comma+1:]
	}
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > p.maxBytes+2 {
		return nil, fmt.Errorf("photo exceeds %d bytes", p.maxBytes)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	if int64(len(raw)) > p.maxBytes {
		return nil, fmt.Errorf("photo exceeds %d bytes", p.maxBytes)
	}
	return raw, nil
}

// Normalize decodes raw image bytes, applies EXIF orientation, bounds the size and re-encodes as JPEG.
func (p *Processor) Normalize(raw []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > p.maxDimension || bounds.Dy() > p.maxDimension {
		img = imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)
	}
	return p.encode(img)
}

// Thumbnail produces a square JPEG thumbnail of size pixels.
func (p *Processor) Thumbnail(raw []byte, size int) ([]byte, error) {
	if size <= 0 {
		size = 240
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return p.encode(imaging.Thumbnail(img, size, size, imaging.Lanczos))
}

func (p *Processor) encode(img image.Image) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
