package publish

import (
	"context"

	"ai-images-server-go/internal/domain/image"
)

// Mock fabricates a URL under the development namespace without any I/O.
// It is selected only by configuration.
type Mock struct {
	keys    *KeyGenerator
	baseURL string
}

func NewMock(namespace, baseURL string) *Mock {
	if namespace == "" {
		namespace = "dev"
	}
	return &Mock{keys: NewKeyGenerator(namespace), baseURL: baseURL}
}

func (*Mock) Name() string { return "mock" }

func (m *Mock) Publish(_ context.Context, _ []byte, fileName, _ string) (image.PublishResult, error) {
	key, at := m.keys.Next(fileName)
	return image.PublishResult{
		URL:        JoinURL(m.baseURL, key),
		Key:        key,
		UploadedAt: timestamp(at),
	}, nil
}

func (*Mock) Delete(context.Context, string) error { return nil }
