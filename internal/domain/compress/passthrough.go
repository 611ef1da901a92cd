package compress

import (
	"context"

	"ai-images-server-go/internal/domain/image"
)

// Passthrough returns a copy of its input. The ratio is always 0.
type Passthrough struct{}

func NewPassthrough() *Passthrough { return &Passthrough{} }

func (*Passthrough) Name() string { return "passthrough" }

func (*Passthrough) Compress(_ context.Context, data []byte, _, _ string) (image.CompressionResult, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return newResult(data, out), nil
}
