package history

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"ai-images-server-go/internal/platform/config"
	"ai-images-server-go/internal/platform/errors"
)

const defaultRedisKey = "ai-images:history"

// RedisStore keeps entries in a Redis list, newest at the head.
type RedisStore struct {
	client   *redis.Client
	key      string
	capacity int
}

func NewRedis(client *redis.Client, key string, capacity int) *RedisStore {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisStore{client: client, key: key, capacity: normalizeCapacity(capacity)}
}

// DialRedis connects using cfg and checks the server is reachable.
func DialRedis(ctx context.Context, cfg config.HistoryRedis, capacity int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.KindStorage, "history.redis.dial", "redis unreachable", err)
	}
	return NewRedis(client, cfg.Key, capacity), nil
}

func (r *RedisStore) List(ctx context.Context) ([]Entry, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, int64(r.capacity-1)).Result()
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "history.redis.list", "failed to list history", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := sonic.UnmarshalString(item, &e); err != nil {
			return nil, errors.Wrap(errors.KindStorage, "history.redis.list", "corrupt history entry", err)
		}
		if e.Keywords == nil {
			e.Keywords = []string{}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *RedisStore) Append(ctx context.Context, entry Entry) error {
	if err := validateEntry("history.redis.append", entry); err != nil {
		return err
	}

	data, err := sonic.MarshalString(entry)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "history.redis.append", "failed to encode entry", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, r.key, data)
		pipe.LTrim(ctx, r.key, 0, int64(r.capacity-1))
		return nil
	})
	if err != nil {
		return errors.Wrap(errors.KindStorage, "history.redis.append", "failed to append history entry", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return errors.Wrap(errors.KindStorage, "history.redis.clear", "failed to clear history", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
