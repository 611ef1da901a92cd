package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ai-images-server-go/internal/domain/compress"
	"ai-images-server-go/internal/domain/eventbus"
	"ai-images-server-go/internal/platform/logging"
)

const appendTimeout = 5 * time.Second

// Subscriber is the part of the event bus the recorder needs.
type Subscriber interface {
	Subscribe(topic string, fn interface{}) error
	Unsubscribe(topic string, handler interface{}) error
}

// Recorder appends an entry for every completed pipeline run.
type Recorder struct {
	store     Store
	logger    *logging.Logger
	newID     func() string
	thumbnail func([]byte) (string, error)
	handler   func(eventbus.PipelineEventData)
}

func NewRecorder(store Store, logger *logging.Logger) *Recorder {
	r := &Recorder{
		store:  store,
		logger: logger,
		newID:  uuid.NewString,
		thumbnail: func(data []byte) (string, error) {
			return compress.Thumbnail(data, compress.ThumbnailSize)
		},
	}
	r.handler = r.onCompleted
	return r
}

// Attach subscribes the recorder to completion events.
func (r *Recorder) Attach(bus Subscriber) error {
	return bus.Subscribe(eventbus.EventPipelineCompleted, r.handler)
}

func (r *Recorder) Detach(bus Subscriber) error {
	return bus.Unsubscribe(eventbus.EventPipelineCompleted, r.handler)
}

func (r *Recorder) onCompleted(ev eventbus.PipelineEventData) {
	if ev.Result == nil {
		return
	}

	keywords := ev.Result.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	uploadedAt := ev.Result.UploadedAt
	if uploadedAt == "" {
		uploadedAt = timestamp(ev.At)
	}

	entry := Entry{
		ID:            r.newID(),
		FileName:      ev.FileName,
		URL:           ev.Result.URL,
		Key:           ev.Result.Key,
		Description:   ev.Result.Description,
		Keywords:      keywords,
		UploadedAt:    uploadedAt,
		ThumbnailData: r.preview(ev),
	}

	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	if err := r.store.Append(ctx, entry); err != nil {
		r.logger.WarnTrace("History", ev.TraceID, "failed to record %s: %v", entry.Key, err)
		return
	}
	r.logger.DebugTrace("History", ev.TraceID, "recorded %s", entry.Key)
}

// preview returns an empty string when no usable image came with the event.
func (r *Recorder) preview(ev eventbus.PipelineEventData) string {
	if len(ev.Image) == 0 {
		return ""
	}
	thumb, err := r.thumbnail(ev.Image)
	if err != nil {
		r.logger.DebugTrace("History", ev.TraceID, "no preview for %s: %v", ev.FileName, err)
		return ""
	}
	return thumb
}
