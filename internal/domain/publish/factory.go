package publish

import (
	"fmt"

	"ai-images-server-go/internal/platform/config"
	"ai-images-server-go/internal/platform/errors"
)

// New builds the publisher selected by cfg.Driver. The driver is resolved
// once by the config loader; nothing here looks at the environment.
func New(cfg config.StorageConfig) (Publisher, error) {
	switch cfg.Driver {
	case config.DriverMock:
		return NewMock(cfg.DevNamespace, cfg.PublicBaseURL), nil
	case config.DriverFilesystem:
		return NewFilesystem(cfg.Filesystem.Root, cfg.Namespace, cfg.PublicBaseURL, cfg.Filesystem.Route)
	case config.DriverS3:
		return NewS3(S3Options{
			Config:        cfg.S3,
			Namespace:     cfg.Namespace,
			PublicBaseURL: cfg.PublicBaseURL,
			CacheControl:  cfg.CacheControl,
		})
	default:
		return nil, errors.New(errors.KindConfig, "publish.new", fmt.Sprintf("unknown storage driver %q", cfg.Driver))
	}
}
