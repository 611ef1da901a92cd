// Package compress holds the compression stage of the image pipeline.
package compress

import (
	"context"
	"fmt"
	"math"

	"ai-images-server-go/internal/domain/image"
	"ai-images-server-go/internal/platform/config"
	"ai-images-server-go/internal/platform/errors"
)

// Compressor turns encoded image bytes into a possibly smaller encoding.
// Implementations must be deterministic and must not modify data.
type Compressor interface {
	Name() string
	Compress(ctx context.Context, data []byte, fileName, mimeType string) (image.CompressionResult, error)
}

// Ratio returns the percentage of bytes saved. It is 0 when original is 0.
func Ratio(original, compressed int64) float64 {
	if original <= 0 {
		return 0
	}
	r := float64(original-compressed) / float64(original) * 100
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

func newResult(original, compressed []byte) image.CompressionResult {
	return image.CompressionResult{
		CompressedData:   compressed,
		OriginalSize:     int64(len(original)),
		CompressedSize:   int64(len(compressed)),
		CompressionRatio: Ratio(int64(len(original)), int64(len(compressed))),
	}
}

// New builds the compressor named by cfg.Driver.
func New(cfg config.CompressionConfig) (Compressor, error) {
	switch cfg.Driver {
	case "", config.CompressionPassthrough:
		return NewPassthrough(), nil
	case config.CompressionReencode:
		return NewReencoder(cfg.JPEGQuality), nil
	default:
		return nil, errors.New(errors.KindConfig, "compress.new", fmt.Sprintf("unknown compression driver %q", cfg.Driver))
	}
}
