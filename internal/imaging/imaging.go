// Package imaging normalises phone photos before they are stored: every
// photo is flattened onto white, bounded in size and re-encoded as JPEG so
// marketplaces receive one predictable format.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"github.com/erazemk/prodaja/internal/model"
)

// Photo limits.
const (
	MaxUploadBytes = 10 << 20
	MaxDimension   = 1200
	MinDimension   = 100
	JPEGQuality    = 85
)

var decoders = map[string]func(io.Reader) (image.Image, error){
	"image/jpeg": jpeg.Decode,
	"image/png":  png.Decode,
	"image/webp": webp.Decode,
}

// Photo is a normalised image ready for storage.
type Photo struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// ProcessPhoto reads an uploaded photo, checks its format by sniffing its
// bytes, downscales it to fit MaxDimension and re-encodes it as JPEG.
// Unacceptable input fails with model.ErrValidation.
func ProcessPhoto(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("%w: photo exceeds %d MiB", model.ErrValidation, MaxUploadBytes>>20)
	}

	detected := http.DetectContentType(data)
	decode, ok := decoders[detected]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported photo format %s (JPEG, PNG or WebP accepted)", model.ErrValidation, detected)
	}

	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding photo: %v", model.ErrValidation, err)
	}

	b := img.Bounds()
	if b.Dx() < MinDimension || b.Dy() < MinDimension {
		return nil, fmt.Errorf("%w: photo is %dx%d, at least %dx%d required",
			model.ErrValidation, b.Dx(), b.Dy(), MinDimension, MinDimension)
	}

	out := fit(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	return &Photo{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Width:  out.Bounds().Dx(),
		Height: out.Bounds().Dy(),
	}, nil
}

// fit draws img onto a white canvas no larger than maxDim on either side,
// keeping the aspect ratio. Transparent pixels become white.
func fit(img image.Image, maxDim int) image.Image {
	src := img.Bounds()
	w, h := scaled(src.Dx(), src.Dy(), maxDim)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	if w == src.Dx() && h == src.Dy() {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	}
	return dst
}

func scaled(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}
	if w >= h {
		return maxDim, max(1, h*maxDim/w)
	}
	return max(1, w*maxDim/h), maxDim
}
