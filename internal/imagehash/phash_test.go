package imagehash

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"
)

// blockImage builds a deterministic image of 8x8 random gray blocks.
func blockImage(seed int64, size int) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cell := size / 8
	for by := 0; by < 8; by++ {
		for bx := 0; bx < 8; bx++ {
			c := color.RGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255}
			draw.Draw(img, image.Rect(bx*cell, by*cell, (bx+1)*cell, (by+1)*cell), &image.Uniform{C: c}, image.Point{}, draw.Src)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHash_Deterministic(t *testing.T) {
	data := encodePNG(t, blockImage(1, 256))

	first, err := Hash(data)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := Hash(data)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestHash_RobustToResize(t *testing.T) {
	original := blockImage(42, 256)
	resized := image.NewRGBA(image.Rect(0, 0, 128, 128))
	draw.BiLinear.Scale(resized, resized.Bounds(), original, original.Bounds(), draw.Src, nil)

	a, err := Hash(encodePNG(t, original))
	require.NoError(t, err)
	b, err := Hash(encodePNG(t, resized))
	require.NoError(t, err)

	assert.LessOrEqual(t, Distance(a, b), DefaultThreshold)
}

func TestHash_RobustToRecompression(t *testing.T) {
	original := blockImage(7, 256)
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, original, &jpeg.Options{Quality: 60}))

	a, err := Hash(encodePNG(t, original))
	require.NoError(t, err)
	b, err := Hash(buf.Bytes())
	require.NoError(t, err)

	assert.True(t, IsSimilar(a, b, DefaultThreshold))
}

func TestHash_DifferentImages(t *testing.T) {
	a, err := Hash(encodePNG(t, blockImage(1, 256)))
	require.NoError(t, err)
	b, err := Hash(encodePNG(t, blockImage(2, 256)))
	require.NoError(t, err)

	assert.Greater(t, Distance(a, b), DefaultThreshold)
}

func TestHash_Errors(t *testing.T) {
	_, err := Hash(nil)
	assert.True(t, errors.Is(err, ErrEmptyImage))

	_, err = Hash([]byte("definitely not an image"))
	assert.True(t, errors.Is(err, ErrDecodeImage))
}

// withDimensions rewrites the IHDR chunk of a PNG to declare width x height.
func withDimensions(data []byte, width, height uint32) []byte {
	out := append([]byte(nil), data...)
	binary.BigEndian.PutUint32(out[16:20], width)
	binary.BigEndian.PutUint32(out[20:24], height)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestHash_RejectsOversizedDimensions(t *testing.T) {
	small := encodePNG(t, image.NewGray(image.Rect(0, 0, 1, 1)))

	tests := []struct {
		name    string
		width   uint32
		height  uint32
		wantErr error
	}{
		{name: "16000 square", width: 16000, height: 16000, wantErr: ErrImageTooLarge},
		{name: "very wide", width: 1_000_000, height: 41, wantErr: ErrImageTooLarge},
		{name: "zero height", width: 10, height: 0, wantErr: ErrDecodeImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Hash(withDimensions(small, tt.width, tt.height))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := Hash(small)
	assert.NoError(t, err)
}

func TestHashImage_MatchesHash(t *testing.T) {
	img := blockImage(3, 64)
	fromBytes, err := Hash(encodePNG(t, img))
	require.NoError(t, err)
	assert.Equal(t, fromBytes, HashImage(img))
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"identical", 0xDEADBEEF, 0xDEADBEEF, 0},
		{"one bit", 0, 1, 1},
		{"all bits", 0, ^uint64(0), 64},
		{"high bit", 1 << 63, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Distance(tt.a, tt.b))
			assert.Equal(t, Distance(tt.a, tt.b), Distance(tt.b, tt.a))
		})
	}
}

func TestSimilarityPercentage(t *testing.T) {
	assert.InDelta(t, 100.0, SimilarityPercentage(5, 5), 1e-9)
	assert.InDelta(t, 0.0, SimilarityPercentage(0, ^uint64(0)), 1e-9)
	assert.InDelta(t, 50.0, SimilarityPercentage(0, 0xFFFFFFFF), 1e-9)
}

func TestIsSimilar(t *testing.T) {
	assert.True(t, IsSimilar(0, 0x3FF, 10))
	assert.False(t, IsSimilar(0, 0x7FF, 10))
}
