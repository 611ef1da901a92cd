package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ai-images-server-go/internal/domain/image"
	"ai-images-server-go/internal/platform/errors"
)

// Filesystem stores objects under root/{key}. The HTTP layer serves root at
// route, so the returned URL is {baseURL}{route}/{key}.
type Filesystem struct {
	root    string
	baseURL string
	keys    *KeyGenerator
}

func NewFilesystem(root, namespace, baseURL, route string) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "publish.filesystem", "create storage root", err)
	}
	return &Filesystem{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/") + "/" + strings.Trim(route, "/"),
		keys:    NewKeyGenerator(namespace),
	}, nil
}

func (*Filesystem) Name() string { return "filesystem" }

func (f *Filesystem) Publish(ctx context.Context, data []byte, fileName, _ string) (image.PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return image.PublishResult{}, errors.Wrap(errors.KindStorage, "publish.filesystem", "storage unavailable", err)
	}

	key, at := f.keys.Next(fileName)
	if err := writeAtomic(filepath.Join(f.root, filepath.FromSlash(key)), data); err != nil {
		return image.PublishResult{}, errors.Wrap(errors.KindStorage, "publish.filesystem", "storage unavailable", err)
	}

	return image.PublishResult{
		URL:        JoinURL(f.baseURL, key),
		Key:        key,
		UploadedAt: timestamp(at),
	}, nil
}

func (f *Filesystem) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(f.root, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.KindStorage, "publish.filesystem", "delete "+key, err)
	}
	return nil
}

// writeAtomic writes to a temp file in the target directory, fsyncs it and
// renames it into place, so readers never observe a partial object.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	tmpName = ""
	return nil
}
