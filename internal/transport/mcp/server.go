// Package mcptransport exposes the upload pipeline and its single stages as
// MCP tools over SSE.
package mcptransport

import (
	"context"
	"fmt"
	"math"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"ai-images-server-go/internal/domain/image"
	"ai-images-server-go/internal/domain/pipeline"
	"ai-images-server-go/internal/platform/errors"
	"ai-images-server-go/internal/platform/logging"
)

const (
	ToolName        = "image_workflow"
	SSEEndpoint     = "/sse"
	MessageEndpoint = "/message"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, traceID string, payload image.Payload, extra ...pipeline.Observer) pipeline.Outcome
}

type Options struct {
	Runner Runner
	// Stages enables the single-stage tools. Compressor, Publisher and
	// Describer must all be set; a nil Validator uses the default policy.
	Stages  *pipeline.Stages
	Logger  *logging.Logger
	Name    string
	Version string
}

// Server owns the MCP tool registry and its SSE transport.
type Server struct {
	runner    Runner
	stages    pipeline.Stages
	validator *image.Validator
	logger    *logging.Logger
	mcp       *server.MCPServer
	sse       *server.SSEServer
}

func NewServer(opts Options) (*Server, error) {
	if opts.Runner == nil {
		return nil, errors.New(errors.KindConfig, "mcp.new", "pipeline runner is required")
	}
	if opts.Logger == nil {
		return nil, errors.New(errors.KindConfig, "mcp.new", "logger is required")
	}
	if st := opts.Stages; st != nil && (st.Compressor == nil || st.Publisher == nil || st.Describer == nil) {
		return nil, errors.New(errors.KindConfig, "mcp.new", "stage tools need every pipeline stage")
	}
	if opts.Name == "" {
		opts.Name = "AI Images Agent"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}

	s := &Server{runner: opts.Runner, logger: opts.Logger}
	s.mcp = server.NewMCPServer(opts.Name, opts.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.mcp.AddTool(imageWorkflowTool(), s.HandleImageWorkflow)
	if opts.Stages != nil {
		s.registerStageTools(*opts.Stages)
	}
	s.sse = server.NewSSEServer(s.mcp,
		server.WithSSEEndpoint(SSEEndpoint),
		server.WithMessageEndpoint(MessageEndpoint),
	)
	return s, nil
}

func imageWorkflowTool() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription("Validate, compress, publish and describe one base64 encoded image. Returns the public URL, description and keywords as JSON."),
		mcp.WithString("fileName", mcp.Required(), mcp.Description("Original file name, 1-255 characters")),
		mcp.WithString("mimeType", mcp.Required(), mcp.Description("Image MIME type"), mcp.Enum(image.DefaultMimeTypes...)),
		mcp.WithNumber("fileSize", mcp.Required(), mcp.Description("Declared size in bytes")),
		mcp.WithString("imageData", mcp.Required(), mcp.Description("Base64 image bytes, optionally as a data URL")),
		mcp.WithString("language", mcp.Description("Description language, for example en or zh; unknown values fall back to English")),
	)
}

// Mount exposes the SSE stream and message endpoints on engine.
func (s *Server) Mount(engine *gin.Engine) {
	engine.GET(SSEEndpoint, gin.WrapH(s.sse.SSEHandler()))
	engine.POST(MessageEndpoint, gin.WrapH(s.sse.MessageHandler()))
	s.logger.InfoTag("MCP", "tool %s available at %s", ToolName, SSEEndpoint)
	if s.validator != nil {
		s.logger.InfoTag("MCP", "stage tools %v available at %s", StageToolNames, SSEEndpoint)
	}
}

// Shutdown closes open SSE sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.sse.Shutdown(ctx)
}

// HandleImageWorkflow runs one pipeline for a tool call. Pipeline failures are
// tool errors, not protocol errors.
func (s *Server) HandleImageWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	traceID := uuid.NewString()
	args, _ := any(req.Params.Arguments).(map[string]any)

	payload, err := payloadFromArgs(args)
	if err != nil {
		s.logger.WarnTrace("MCP", traceID, "bad arguments: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("%v (traceId %s)", err, traceID)), nil
	}

	out := s.runner.Run(ctx, traceID, payload)
	if !out.Completed() {
		s.logger.WarnTrace("MCP", traceID, "%s failed: %v", ToolName, out.Err)
		return mcp.NewToolResultError(fmt.Sprintf("%s (traceId %s)", errors.Public(out.Err), traceID)), nil
	}

	body, err := sonic.MarshalString(toolResult{Result: out.Result, TraceID: traceID})
	if err != nil {
		return nil, errors.Wrap(errors.KindTransport, "mcp.image_workflow", "failed to encode result", err)
	}
	return mcp.NewToolResultText(body), nil
}

type toolResult struct {
	*image.Result
	TraceID string `json:"traceId"`
}

// payloadFromArgs keeps absent arguments nil so the validator reports them.
func payloadFromArgs(args map[string]any) (image.Payload, error) {
	var p image.Payload
	var err error
	if p.FileName, err = stringArg(args, "fileName"); err != nil {
		return p, err
	}
	if p.MimeType, err = stringArg(args, "mimeType"); err != nil {
		return p, err
	}
	if p.ImageData, err = stringArg(args, "imageData"); err != nil {
		return p, err
	}
	if p.Language, err = stringArg(args, "language"); err != nil {
		return p, err
	}

	if v, ok := args["fileSize"]; ok && v != nil {
		f, ok := v.(float64)
		if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
			return p, fmt.Errorf("fileSize must be an integer")
		}
		size := int64(f)
		p.FileSize = &size
	}
	return p, nil
}

func stringArg(args map[string]any, key string) (*string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%s must be a string", key)
	}
	return &s, nil
}
