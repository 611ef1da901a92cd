package upload

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"ai-images-server-go/internal/domain/image"
	"ai-images-server-go/internal/domain/pipeline"
	"ai-images-server-go/internal/platform/errors"
	"ai-images-server-go/internal/platform/logging"
	httptransport "ai-images-server-go/internal/transport/http"
	"ai-images-server-go/internal/transport/ws"
)

const defaultMaxBodySize = 15 << 20

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, traceID string, payload image.Payload, extra ...pipeline.Observer) pipeline.Outcome
}

type Options struct {
	Runner      Runner
	Logger      *logging.Logger
	ServiceName string
	MaxBodySize int64
	// Streams upgrades progress connections; nil disables GET /upload/ws.
	Streams *ws.Router
}

// Service exposes the upload pipeline over HTTP.
type Service struct {
	runner      Runner
	logger      *logging.Logger
	serviceName string
	maxBodySize int64
	streams     *ws.Router
}

func NewService(opts Options) (*Service, error) {
	if opts.Runner == nil {
		return nil, errors.New(errors.KindConfig, "upload.new", "pipeline runner is required")
	}
	if opts.Logger == nil {
		return nil, errors.New(errors.KindConfig, "upload.new", "logger is required")
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = defaultMaxBodySize
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "AI Images Agent"
	}
	return &Service{
		runner:      opts.Runner,
		logger:      opts.Logger,
		serviceName: opts.ServiceName,
		maxBodySize: opts.MaxBodySize,
		streams:     opts.Streams,
	}, nil
}

// Register 注册上传相关的HTTP路由
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.GET("/upload", s.handleGet)
	router.POST("/upload", s.handlePost)
	router.OPTIONS("/upload", s.handleOptions)
	if s.streams != nil {
		router.GET("/upload/ws", s.handleStream)
	}

	s.logger.InfoTag("HTTP", "upload routes registered")
	return nil
}

// handleGet 健康检查
// @Summary Upload service health
// @Description Static service identity payload
// @Tags Upload
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /upload [get]
func (s *Service) handleGet(c *gin.Context) {
	endpoints := map[string]string{"upload": "POST /api/upload"}
	if s.streams != nil {
		endpoints["stream"] = "GET /api/upload/ws"
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   s.serviceName,
		Endpoints: endpoints,
	})
}

func (s *Service) handleOptions(c *gin.Context) {
	c.Header("Allow", "GET, POST, OPTIONS")
	c.Status(http.StatusNoContent)
}

// handlePost 运行一次完整的上传流水线
// @Summary Upload and describe an image
// @Description Validates, compresses, publishes and describes a base64 encoded image
// @Tags Upload
// @Accept json
// @Produce json
// @Param request body image.Payload true "upload request"
// @Success 200 {object} UploadResponse
// @Failure 400 {object} UploadResponse
// @Failure 413 {object} UploadResponse
// @Failure 500 {object} UploadResponse
// @Router /upload [post]
func (s *Service) handlePost(c *gin.Context) {
	traceID := httptransport.TraceID(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodySize)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.logger.WarnTrace("HTTP", traceID, "upload body over %d bytes", s.maxBodySize)
			s.respondFailure(c, http.StatusRequestEntityTooLarge, traceID, "request body too large", nil)
			return
		}
		s.respondFailure(c, http.StatusBadRequest, traceID, "failed to read request body", nil)
		return
	}

	payload, err := decodePayload(body)
	if err != nil {
		s.logger.WarnTrace("HTTP", traceID, "malformed upload body: %v", err)
		s.respondFailure(c, http.StatusBadRequest, traceID, "invalid JSON body", nil)
		return
	}

	out := s.runner.Run(c.Request.Context(), traceID, payload)
	if out.Completed() {
		c.JSON(http.StatusOK, UploadResponse{Success: true, Data: out.Result, TraceID: traceID})
		return
	}

	status := httptransport.StatusForKind(out.Kind())
	s.respondFailure(c, status, traceID, errors.Public(out.Err), violations(out.Err))
}

func (s *Service) respondFailure(c *gin.Context, status int, traceID, message string, details []image.FieldViolation) {
	c.JSON(status, failure(traceID, message, details))
}

func failure(traceID, message string, details []image.FieldViolation) UploadResponse {
	return UploadResponse{
		Success: false,
		Error:   message,
		Details: details,
		TraceID: traceID,
	}
}

func decodePayload(body []byte) (image.Payload, error) {
	var payload image.Payload
	if len(body) == 0 {
		return payload, stderrors.New("empty body")
	}
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

func violations(err error) []image.FieldViolation {
	var verr *image.ValidationError
	if stderrors.As(err, &verr) {
		return verr.Violations
	}
	return nil
}
