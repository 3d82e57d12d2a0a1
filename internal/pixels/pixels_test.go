package pixels

import (
	"bytes"
	"encoding/base64"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRGBA(t *testing.T) {
	tests := []struct {
		name     string
		data     []float32
		channels int
		want     []byte
	}{
		{
			name:     "grayscale",
			data:     []float32{0, 1},
			channels: 1,
			want:     []byte{0, 0, 0, 255, 255, 255, 255, 255},
		},
		{
			name:     "rgb",
			data:     []float32{1, 0.5, 0, 0.2, 0.4, 0.6},
			channels: 3,
			want:     []byte{255, 128, 0, 255, 51, 102, 153, 255},
		},
		{
			name:     "rgba",
			data:     []float32{1, 1, 1, 0, 0, 0, 0, 0.5},
			channels: 4,
			want:     []byte{255, 255, 255, 0, 0, 0, 0, 128},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToRGBA(tt.data, 1, 2, tt.channels)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToRGBAErrors(t *testing.T) {
	_, err := ToRGBA(make([]float32, 8), 2, 2, 2)
	assert.ErrorIs(t, err, ErrChannels)

	_, err = ToRGBA([]float32{0.5, 1.5}, 1, 2, 1)
	assert.ErrorIs(t, err, ErrValueRange)

	_, err = ToRGBA([]float32{-0.1}, 1, 1, 1)
	assert.ErrorIs(t, err, ErrValueRange)

	_, err = ToRGBA(make([]float32, 3), 2, 2, 1)
	assert.Error(t, err)
}

func TestRawsLength(t *testing.T) {
	raws, err := ToRGBA(make([]float32, 28*20*3), 28, 20, 3)
	require.NoError(t, err)
	assert.Len(t, raws, 28*20*4)
}

func TestEncodeRoundTrip(t *testing.T) {
	raws := []byte{
		255, 0, 0, 255, 0, 255, 0, 255,
		0, 0, 255, 255, 10, 20, 30, 255,
	}
	img := NewImage(raws, 2, 2)
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, img.RGBAAt(1, 1))

	data, err := EncodePNG(img)
	require.NoError(t, err)

	uri := DataURI(data)
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)
	back, err := png.Decode(bytes.NewReader(decoded))
	require.NoError(t, err)
	assert.Equal(t, 2, back.Bounds().Dx())

	r, g, b, _ := back.At(0, 0).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0}, []uint32{r, g, b})
}
