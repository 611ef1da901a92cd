// Package pipeline sequences validation, compression, publishing and
// description of one upload and maps any stage failure to a single terminal
// outcome.
package pipeline

import (
	"time"

	"ai-images-server-go/internal/domain/image"
	"ai-images-server-go/internal/platform/errors"
)

type State string

const (
	StateIdle        State = ""
	StateValidating  State = "validating"
	StateCompressing State = "compressing"
	StatePublishing  State = "publishing"
	StateDescribing  State = "describing"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Progress is the rough completion percentage shown to clients while a run
// sits in s.
func (s State) Progress() int {
	switch s {
	case StateValidating:
		return 10
	case StateCompressing:
		return 30
	case StatePublishing:
		return 55
	case StateDescribing:
		return 80
	case StateCompleted, StateFailed:
		return 100
	default:
		return 0
	}
}

// Record accumulates stage outputs for one run. It is copied between stages
// and never shared across runs.
type Record struct {
	TraceID     string
	Request     image.UploadRequest
	Compression *image.CompressionResult
	Publish     *image.PublishResult
	Description *image.DescriptionResult
}

// Result merges the record into the caller-facing success payload. It is
// only meaningful once every stage has run.
func (r Record) Result() *image.Result {
	if r.Compression == nil || r.Publish == nil || r.Description == nil {
		return nil
	}
	return &image.Result{
		URL:              r.Publish.URL,
		Key:              r.Publish.Key,
		Description:      r.Description.Description,
		Keywords:         r.Description.Keywords,
		Confidence:       r.Description.Confidence,
		CompressionRatio: r.Compression.CompressionRatio,
		OriginalSize:     r.Compression.OriginalSize,
		CompressedSize:   r.Compression.CompressedSize,
		UploadedAt:       r.Publish.UploadedAt,
	}
}

// Transition is reported to observers each time a run changes state.
// Elapsed is the time spent in From.
type Transition struct {
	TraceID string
	From    State
	To      State
	Record  Record
	Err     error
	Elapsed time.Duration
}

// Outcome is the single terminal result of a run.
type Outcome struct {
	TraceID     string
	State       State
	Result      *image.Result
	Err         error
	FailedStage State
	Duration    time.Duration
}

func (o Outcome) Completed() bool {
	return o.State == StateCompleted
}

// Kind classifies a failed outcome; it is empty for completed runs.
func (o Outcome) Kind() errors.Kind {
	if o.Err == nil {
		return ""
	}
	return errors.KindOf(o.Err)
}
