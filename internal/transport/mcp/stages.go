package mcptransport

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"ai-images-server-go/internal/domain/image"
	"ai-images-server-go/internal/domain/pipeline"
	"ai-images-server-go/internal/platform/errors"
)

const (
	CompressToolName = "compress_image_tool"
	UploadToolName   = "upload_r2_tool"
	DescribeToolName = "describe_image_tool"

	defaultToolFileName = "image"
)

// StageToolNames lists the single-stage tools registered next to the workflow.
var StageToolNames = []string{CompressToolName, UploadToolName, DescribeToolName}

func compressTool() mcp.Tool {
	return mcp.NewTool(CompressToolName,
		mcp.WithDescription("Compress one base64 encoded image. Returns the compressed image as base64 together with original and compressed sizes."),
		mcp.WithString("imageData", mcp.Required(), mcp.Description("Base64 image bytes, optionally as a data URL")),
		mcp.WithString("fileName", mcp.Required(), mcp.Description("Original file name, 1-255 characters")),
		mcp.WithString("mimeType", mcp.Required(), mcp.Description("Image MIME type"), mcp.Enum(image.DefaultMimeTypes...)),
	)
}

func uploadTool() mcp.Tool {
	return mcp.NewTool(UploadToolName,
		mcp.WithDescription("Store one base64 encoded image in object storage as is. Returns the public URL, object key and upload time."),
		mcp.WithString("imageData", mcp.Required(), mcp.Description("Base64 image bytes, optionally as a data URL")),
		mcp.WithString("fileName", mcp.Required(), mcp.Description("File name used to build the object key")),
		mcp.WithString("mimeType", mcp.Required(), mcp.Description("Image MIME type"), mcp.Enum(image.DefaultMimeTypes...)),
	)
}

func describeTool() mcp.Tool {
	return mcp.NewTool(DescribeToolName,
		mcp.WithDescription("Describe one base64 encoded image with the vision model. Returns the description, keywords and a confidence score."),
		mcp.WithString("imageData", mcp.Required(), mcp.Description("Base64 image bytes, optionally as a data URL")),
		mcp.WithString("mimeType", mcp.Required(), mcp.Description("Image MIME type"), mcp.Enum(image.DefaultMimeTypes...)),
		mcp.WithString("language", mcp.Description("Description language, for example en or zh")),
	)
}

type compressToolResult struct {
	image.CompressionResult
	ImageData string `json:"imageData"`
	TraceID   string `json:"traceId"`
}

type uploadToolResult struct {
	image.PublishResult
	TraceID string `json:"traceId"`
}

type describeToolResult struct {
	image.DescriptionResult
	TraceID string `json:"traceId"`
}

// registerStageTools adds one tool per pipeline stage. Each call validates its
// input the same way a workflow run does.
func (s *Server) registerStageTools(stages pipeline.Stages) {
	validator := stages.Validator
	if validator == nil {
		validator = image.NewValidator(image.DefaultPolicy())
	}
	s.stages = stages
	s.validator = validator

	s.mcp.AddTool(compressTool(), s.HandleCompress)
	s.mcp.AddTool(uploadTool(), s.HandleUpload)
	s.mcp.AddTool(describeTool(), s.HandleDescribe)
}

// HandleCompress runs only the compression stage.
func (s *Server) HandleCompress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.runStage(ctx, req, CompressToolName, true, func(ctx context.Context, traceID string, in image.UploadRequest) (any, error) {
		res, err := s.stages.Compressor.Compress(ctx, in.Data, in.FileName, in.MimeType)
		if err != nil {
			return nil, err
		}
		return compressToolResult{
			CompressionResult: res,
			ImageData:         base64.StdEncoding.EncodeToString(res.CompressedData),
			TraceID:           traceID,
		}, nil
	})
}

// HandleUpload publishes the given bytes without compressing them first.
func (s *Server) HandleUpload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.runStage(ctx, req, UploadToolName, true, func(ctx context.Context, traceID string, in image.UploadRequest) (any, error) {
		res, err := s.stages.Publisher.Publish(ctx, in.Data, in.FileName, in.MimeType)
		if err != nil {
			return nil, err
		}
		return uploadToolResult{PublishResult: res, TraceID: traceID}, nil
	})
}

// HandleDescribe runs only the describer.
func (s *Server) HandleDescribe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.runStage(ctx, req, DescribeToolName, false, func(ctx context.Context, traceID string, in image.UploadRequest) (any, error) {
		res, err := s.stages.Describer.Describe(ctx, in.Data, in.MimeType, in.Language)
		if err != nil {
			return nil, err
		}
		if res.Keywords == nil {
			res.Keywords = []string{}
		}
		return describeToolResult{DescriptionResult: res, TraceID: traceID}, nil
	})
}

type stageFunc func(ctx context.Context, traceID string, in image.UploadRequest) (any, error)

func (s *Server) runStage(ctx context.Context, req mcp.CallToolRequest, tool string, named bool, fn stageFunc) (*mcp.CallToolResult, error) {
	traceID := uuid.NewString()
	args, _ := any(req.Params.Arguments).(map[string]any)

	in, err := s.stageInput(args, named)
	if err != nil {
		s.logger.WarnTrace("MCP", traceID, "%s rejected: %v", tool, err)
		return mcp.NewToolResultError(fmt.Sprintf("%s (traceId %s)", errors.Public(err), traceID)), nil
	}

	out, err := fn(ctx, traceID, in)
	if err != nil {
		s.logger.WarnTrace("MCP", traceID, "%s failed: %v", tool, err)
		return mcp.NewToolResultError(fmt.Sprintf("%s (traceId %s)", errors.Public(err), traceID)), nil
	}
	s.logger.DebugTrace("MCP", traceID, "%s done", tool)

	body, err := sonic.MarshalString(out)
	if err != nil {
		return nil, errors.Wrap(errors.KindTransport, "mcp."+tool, "failed to encode result", err)
	}
	return mcp.NewToolResultText(body), nil
}

// stageInput validates stage tool arguments. fileSize is optional here and
// defaults to the decoded length. Tools that take no file name get a fixed one.
func (s *Server) stageInput(args map[string]any, named bool) (image.UploadRequest, error) {
	p, err := payloadFromArgs(args)
	if err != nil {
		return image.UploadRequest{}, errors.Wrap(errors.KindValidation, "mcp.stage", "invalid arguments", err)
	}
	if !named {
		name := defaultToolFileName
		p.FileName = &name
	}
	if p.FileSize == nil {
		var size int64
		if p.ImageData != nil {
			if data, err := base64.StdEncoding.DecodeString(image.StripDataURL(*p.ImageData)); err == nil {
				size = int64(len(data))
			}
		}
		p.FileSize = &size
	}
	return s.validator.Validate(p)
}
