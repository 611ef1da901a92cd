package compress

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"ai-images-server-go/internal/domain/image"
	"ai-images-server-go/internal/platform/errors"
)

const defaultJPEGQuality = 85

// Reencoder decodes PNG and JPEG input and encodes it again, PNG at best
// compression and JPEG at the configured quality. The re-encoded bytes are
// used only when they are smaller. WebP has no encoder here and passes
// through after a decode check.
type Reencoder struct {
	jpegQuality int
}

func NewReencoder(jpegQuality int) *Reencoder {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = defaultJPEGQuality
	}
	return &Reencoder{jpegQuality: jpegQuality}
}

func (*Reencoder) Name() string { return "reencode" }

func (r *Reencoder) Compress(ctx context.Context, data []byte, fileName, mimeType string) (image.CompressionResult, error) {
	if err := ctx.Err(); err != nil {
		return image.CompressionResult{}, errors.Wrap(errors.KindCompression, "compress.reencode", "compression cancelled", err)
	}

	format := image.DetectFormat(data)
	if format == "" {
		format = image.FormatFromMime(mimeType)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return image.CompressionResult{}, errors.Wrap(errors.KindCompression, "compress.reencode",
			fmt.Sprintf("cannot decode %s as %s", fileName, mimeType), err)
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	case "jpeg":
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(r.jpegQuality))
	default:
		return NewPassthrough().Compress(ctx, data, fileName, mimeType)
	}
	if err != nil {
		return image.CompressionResult{}, errors.Wrap(errors.KindCompression, "compress.reencode",
			fmt.Sprintf("cannot encode %s", fileName), err)
	}

	if buf.Len() >= len(data) {
		return NewPassthrough().Compress(ctx, data, fileName, mimeType)
	}
	return newResult(data, buf.Bytes()), nil
}
