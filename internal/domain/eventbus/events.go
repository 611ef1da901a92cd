package eventbus

import (
	"time"

	"ai-images-server-go/internal/domain/image"
)

// 事件类型定义
const (
	EventPipelineStarted   = "pipeline:started"
	EventPipelineStage     = "pipeline:stage"
	EventPipelineCompleted = "pipeline:completed"
	EventPipelineFailed    = "pipeline:failed"
)

// PipelineEventData 流水线生命周期事件
type PipelineEventData struct {
	TraceID  string        `json:"trace_id"`
	Stage    string        `json:"stage"`
	FileName string        `json:"file_name,omitempty"`
	Language string        `json:"language,omitempty"`
	Result   *image.Result `json:"result,omitempty"`
	// Image holds the published bytes on completion events.
	Image     []byte    `json:"-"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}
