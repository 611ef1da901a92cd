package history

import (
	"context"
	"fmt"
	"strings"

	"ai-images-server-go/internal/platform/config"
	"ai-images-server-go/internal/platform/errors"
)

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.HistoryConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", config.HistoryDriverMemory:
		return NewMemory(cfg.Capacity), nil
	case config.HistoryDriverSQLite:
		return OpenSQLite(cfg.SQLite.DSN, cfg.Capacity)
	case config.HistoryDriverRedis:
		return DialRedis(ctx, cfg.Redis, cfg.Capacity)
	default:
		return nil, errors.New(errors.KindConfig, "history.new", fmt.Sprintf("unknown history driver %q", cfg.Driver))
	}
}
