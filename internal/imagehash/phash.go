// Package imagehash computes 64-bit DCT perceptual hashes of images.
//
// Hashes are persisted and compared across runs, so the transform below
// (BT.601 grayscale, Catmull-Rom resize to 32x32, orthonormal DCT-II, 8x8
// low-frequency block with the DC term replaced by coefficient (0,8), median
// threshold) must not change.
package imagehash

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"math/bits"
	"sort"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// SampleSize is the edge length of the resized grayscale sample.
	SampleSize = 32
	// BlockSize is the edge length of the low-frequency block kept from the DCT.
	BlockSize = 8
	// Bits is the width of a hash.
	Bits = BlockSize * BlockSize
	// DefaultThreshold is the Hamming distance at or below which two hashes are similar.
	DefaultThreshold = 10
	// MaxPixels bounds the decoded size of an image. Compressed formats can
	// declare dimensions far larger than their byte size.
	MaxPixels = 40_000_000
)

var (
	// ErrEmptyImage is returned when no image bytes are supplied.
	ErrEmptyImage = errors.New("empty image data")
	// ErrDecodeImage is returned when the bytes are not a supported image.
	ErrDecodeImage = errors.New("failed to decode image")
	// ErrImageTooLarge is returned when an image declares more than MaxPixels pixels.
	ErrImageTooLarge = errors.New("image dimensions too large")
)

// cosTable[k][n] = cos(pi*(2n+1)*k / 2N).
var cosTable = func() [SampleSize][SampleSize]float64 {
	var t [SampleSize][SampleSize]float64
	for k := 0; k < SampleSize; k++ {
		for n := 0; n < SampleSize; n++ {
			t[k][n] = math.Cos(math.Pi * float64(2*n+1) * float64(k) / float64(2*SampleSize))
		}
	}
	return t
}()

// Hash decodes image bytes and returns their perceptual hash.
func Hash(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, ErrEmptyImage
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDecodeImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, fmt.Errorf("%w: %dx%d", ErrDecodeImage, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return 0, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDecodeImage, err)
	}
	return HashImage(img), nil
}

// HashImage returns the perceptual hash of a decoded image.
func HashImage(img image.Image) uint64 {
	coeffs := dct2D(sample(img))

	values := make([]float64, 0, Bits)
	for row := 0; row < BlockSize; row++ {
		for col := 0; col < BlockSize; col++ {
			values = append(values, coeffs[row][col])
		}
	}
	// The DC term only encodes mean brightness.
	values[0] = coeffs[0][BlockSize]

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	median := (sorted[Bits/2-1] + sorted[Bits/2]) / 2

	var hash uint64
	for i, v := range values {
		if v > median {
			hash |= 1 << uint(i)
		}
	}
	return hash
}

// sample converts img to grayscale and resizes it to SampleSize x SampleSize.
func sample(img image.Image) *[SampleSize][SampleSize]float64 {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}

	small := image.NewGray(image.Rect(0, 0, SampleSize, SampleSize))
	draw.CatmullRom.Scale(small, small.Bounds(), gray, bounds, draw.Src, nil)

	var out [SampleSize][SampleSize]float64
	for y := 0; y < SampleSize; y++ {
		for x := 0; x < SampleSize; x++ {
			out[y][x] = float64(small.GrayAt(x, y).Y)
		}
	}
	return &out
}

// dct2D applies an orthonormal DCT-II to rows and then to columns.
func dct2D(in *[SampleSize][SampleSize]float64) [SampleSize][SampleSize]float64 {
	var rows, out [SampleSize][SampleSize]float64
	for y := 0; y < SampleSize; y++ {
		rows[y] = dct1D(in[y])
	}
	for x := 0; x < SampleSize; x++ {
		var col [SampleSize]float64
		for y := 0; y < SampleSize; y++ {
			col[y] = rows[y][x]
		}
		col = dct1D(col)
		for y := 0; y < SampleSize; y++ {
			out[y][x] = col[y]
		}
	}
	return out
}

func dct1D(in [SampleSize]float64) [SampleSize]float64 {
	var out [SampleSize]float64
	scale := math.Sqrt(2.0 / SampleSize)
	for k := 0; k < SampleSize; k++ {
		var sum float64
		for n := 0; n < SampleSize; n++ {
			sum += in[n] * cosTable[k][n]
		}
		if k == 0 {
			sum *= 1 / math.Sqrt2
		}
		out[k] = sum * scale
	}
	return out
}

// Distance returns the Hamming distance between two hashes, 0 to 64.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// IsSimilar reports whether two hashes are within threshold bits of each other.
func IsSimilar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

// SimilarityPercentage returns (64 - distance) / 64 * 100.
func SimilarityPercentage(a, b uint64) float64 {
	return float64(Bits-Distance(a, b)) / Bits * 100
}
