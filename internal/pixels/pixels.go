package pixels

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
)

var (
	ErrChannels   = errors.New("unsupported channel count")
	ErrValueRange = errors.New("pixel value out of range [0, 1]")
)

// ToRGBA converts a float (height, width, channels) buffer into 8-bit RGBA
// bytes. One channel is treated as grayscale, three as RGB with opaque alpha.
func ToRGBA(data []float32, height, width, channels int) ([]byte, error) {
	if channels != 1 && channels != 3 && channels != 4 {
		return nil, fmt.Errorf("%w: %d", ErrChannels, channels)
	}
	if len(data) != height*width*channels {
		return nil, fmt.Errorf("expected %d values for %dx%dx%d, got %d",
			height*width*channels, height, width, channels, len(data))
	}

	raws := make([]byte, height*width*4)
	for i := 0; i < height*width; i++ {
		px := data[i*channels : (i+1)*channels]
		for _, v := range px {
			if v < 0 || v > 1 || math.IsNaN(float64(v)) {
				return nil, fmt.Errorf("%w: %v at pixel %d", ErrValueRange, v, i)
			}
		}

		var r, g, b, a byte = 0, 0, 0, 255
		switch channels {
		case 1:
			r = scale(px[0])
			g, b = r, r
		case 3:
			r, g, b = scale(px[0]), scale(px[1]), scale(px[2])
		case 4:
			r, g, b, a = scale(px[0]), scale(px[1]), scale(px[2]), scale(px[3])
		}
		raws[i*4] = r
		raws[i*4+1] = g
		raws[i*4+2] = b
		raws[i*4+3] = a
	}
	return raws, nil
}

func scale(v float32) byte {
	return byte(math.Round(float64(v) * 255))
}

// NewImage copies RGBA bytes into a freshly allocated image.
func NewImage(raws []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, raws[:min(len(raws), len(img.Pix))])
	return img
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURI returns a URI an <img> element can display directly.
func DataURI(pngData []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)
}
