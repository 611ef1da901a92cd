// Package publish persists compressed images and returns public addresses.
package publish

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"ai-images-server-go/internal/domain/image"
)

// Publisher writes bytes durably and returns a publicly resolvable URL.
// The write must be readable at that URL once Publish returns. Delete is the
// compensating action for an earlier Publish.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, data []byte, fileName, mimeType string) (image.PublishResult, error)
	Delete(ctx context.Context, key string) error
}

// KeyGenerator builds "{namespace}/{unixMillis}-{name}" keys. Timestamps are
// strictly increasing within one generator, so two calls in the same
// millisecond still get distinct keys.
type KeyGenerator struct {
	namespace string
	now       func() time.Time

	mu   sync.Mutex
	last int64
}

func NewKeyGenerator(namespace string) *KeyGenerator {
	return &KeyGenerator{namespace: strings.Trim(namespace, "/"), now: time.Now}
}

// Next returns a fresh key and the instant it was issued for.
func (g *KeyGenerator) Next(fileName string) (string, time.Time) {
	now := g.now()
	ms := now.UnixMilli()

	g.mu.Lock()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	g.mu.Unlock()

	name := SafeName(fileName)
	key := strconv.FormatInt(ms, 10) + "-" + name
	if g.namespace != "" {
		key = g.namespace + "/" + key
	}
	return key, now
}

// SafeName replaces path separators so a file name cannot escape its
// namespace.
func SafeName(fileName string) string {
	r := strings.NewReplacer("/", "_", "\\", "_")
	name := r.Replace(strings.TrimSpace(fileName))
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}

// JoinURL appends key to base with exactly one slash between them.
func JoinURL(base, key string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), strings.TrimLeft(key, "/"))
}

func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
