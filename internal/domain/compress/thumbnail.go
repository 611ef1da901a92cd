package compress

import (
	"bytes"
	"encoding/base64"

	"github.com/disintegration/imaging"

	"ai-images-server-go/internal/platform/errors"
)

// ThumbnailSize bounds both edges of a history preview.
const ThumbnailSize = 96

const thumbnailQuality = 70

// Thumbnail renders data as a JPEG preview no larger than size x size and
// returns it as a data URL. Smaller images are not upscaled.
func Thumbnail(data []byte, size int) (string, error) {
	if size <= 0 {
		size = ThumbnailSize
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(errors.KindCompression, "compress.thumbnail", "cannot decode image", err)
	}

	thumb := imaging.Fit(img, size, size, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return "", errors.Wrap(errors.KindCompression, "compress.thumbnail", "cannot encode preview", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
