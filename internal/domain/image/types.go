package image

import (
	"fmt"
	"strings"
)

// Payload is the raw upload body. Pointer fields let the validator tell a
// missing field from a zero value.
type Payload struct {
	FileName  *string `json:"fileName"`
	MimeType  *string `json:"mimeType"`
	FileSize  *int64  `json:"fileSize"`
	ImageData *string `json:"imageData"`
	Language  *string `json:"language,omitempty"`
}

// UploadRequest is a validated upload. Data holds the decoded bytes; it is
// decoded once by the validator and never mutated afterwards.
type UploadRequest struct {
	FileName  string
	MimeType  string
	FileSize  int64
	ImageData string
	Data      []byte
	Language  string
}

// CompressionResult is produced by the compressor.
type CompressionResult struct {
	CompressedData   []byte  `json:"-"`
	OriginalSize     int64   `json:"originalSize"`
	CompressedSize   int64   `json:"compressedSize"`
	CompressionRatio float64 `json:"compressionRatio"`
}

// PublishResult is produced by the storage publisher.
type PublishResult struct {
	URL        string `json:"url"`
	Key        string `json:"key"`
	UploadedAt string `json:"uploadedAt"`
}

// DescriptionResult is produced by the describer.
type DescriptionResult struct {
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Confidence  float64  `json:"confidence"`
}

// Result is the success payload returned to callers.
type Result struct {
	URL              string   `json:"url"`
	Key              string   `json:"key"`
	Description      string   `json:"description"`
	Keywords         []string `json:"keywords"`
	Confidence       float64  `json:"confidence"`
	CompressionRatio float64  `json:"compressionRatio"`
	OriginalSize     int64    `json:"originalSize"`
	CompressedSize   int64    `json:"compressedSize"`
	UploadedAt       string   `json:"uploadedAt"`
}

// FieldViolation names one violated constraint.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists every constraint the payload violated.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Reason))
	}
	return "invalid upload: " + strings.Join(parts, "; ")
}

// Has reports whether field has at least one violation.
func (e *ValidationError) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}
