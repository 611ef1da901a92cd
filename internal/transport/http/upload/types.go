package upload

import "ai-images-server-go/internal/domain/image"

// UploadResponse is the body of every POST /api/upload reply.
type UploadResponse struct {
	Success bool                   `json:"success"`
	Data    *image.Result          `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Details []image.FieldViolation `json:"details,omitempty"`
	TraceID string                 `json:"traceId"`
}

// HealthResponse is returned by GET /api/upload.
type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Endpoints map[string]string `json:"endpoints"`
}

// Frame types sent on the progress stream.
const (
	FrameProgress = "progress"
	FrameResult   = "result"
)

// ProgressFrame reports a stage change on the progress stream.
type ProgressFrame struct {
	Type     string `json:"type"`
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	TraceID  string `json:"traceId"`
}

// ResultFrame is the last frame of a stream.
type ResultFrame struct {
	Type string `json:"type"`
	UploadResponse
}
