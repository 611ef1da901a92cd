// Package history keeps the most recent successful uploads.
package history

import (
	"context"
	"time"

	"ai-images-server-go/internal/platform/errors"
)

// DefaultCapacity is the number of entries kept when none is configured.
const DefaultCapacity = 5

// Entry is one completed upload as shown in the history list.
type Entry struct {
	ID            string   `json:"id"`
	FileName      string   `json:"fileName"`
	URL           string   `json:"url"`
	Key           string   `json:"key,omitempty"`
	Description   string   `json:"description"`
	Keywords      []string `json:"keywords"`
	UploadedAt    string   `json:"uploadedAt"`
	ThumbnailData string   `json:"thumbnailData,omitempty"`
}

// Store is a capped, most-recent-first log of entries. Appending beyond
// capacity evicts the oldest entry.
type Store interface {
	List(ctx context.Context) ([]Entry, error)
	Append(ctx context.Context, entry Entry) error
	Clear(ctx context.Context) error
	Close() error
}

func normalizeCapacity(capacity int) int {
	if capacity <= 0 {
		return DefaultCapacity
	}
	return capacity
}

func validateEntry(op string, entry Entry) error {
	if entry.ID == "" {
		return errors.New(errors.KindValidation, op, "history entry id is empty")
	}
	if entry.UploadedAt == "" {
		return errors.New(errors.KindValidation, op, "history entry has no upload time")
	}
	return nil
}

func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
