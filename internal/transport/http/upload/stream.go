package upload

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ai-images-server-go/internal/domain/pipeline"
	"ai-images-server-go/internal/platform/errors"
	httptransport "ai-images-server-go/internal/transport/http"
	"ai-images-server-go/internal/transport/ws"
)

const requestReadTimeout = 30 * time.Second

var stageMessages = map[pipeline.State]string{
	pipeline.StateValidating:  "正在校验图片...",
	pipeline.StateCompressing: "正在无损压缩图片...",
	pipeline.StatePublishing:  "正在上传到云端...",
	pipeline.StateDescribing:  "AI 正在生成描述...",
	pipeline.StateCompleted:   "处理完成！",
	pipeline.StateFailed:      "处理失败",
}

// progressObserver forwards transitions to one websocket client.
type progressObserver struct {
	conn    *ws.Connection
	traceID string
	onError func(error)
}

func (p progressObserver) OnTransition(_ context.Context, t pipeline.Transition) {
	frame := ProgressFrame{
		Type:     FrameProgress,
		Stage:    string(t.To),
		Progress: t.To.Progress(),
		Message:  stageMessages[t.To],
		TraceID:  p.traceID,
	}
	if err := p.conn.WriteJSON(frame); err != nil && p.onError != nil {
		p.onError(err)
	}
}

// handleStream 通过 WebSocket 推送各阶段进度
// @Summary Upload with progress stream
// @Description Upgrade to a websocket, send one upload JSON message, receive progress frames and a final result frame
// @Tags Upload
// @Success 101 {object} ProgressFrame
// @Router /upload/ws [get]
func (s *Service) handleStream(c *gin.Context) {
	traceID := httptransport.TraceID(c)
	s.streams.Serve(c.Writer, c.Request, func(ctx context.Context, conn *ws.Connection) error {
		return s.stream(ctx, conn, traceID)
	})
}

func (s *Service) stream(ctx context.Context, conn *ws.Connection, traceID string) error {
	_ = conn.SetReadDeadline(time.Now().Add(requestReadTimeout))
	msgType, body, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	if msgType != websocket.TextMessage {
		return conn.WriteJSON(ResultFrame{Type: FrameResult, UploadResponse: failure(traceID, "expected a text message", nil)})
	}

	payload, err := decodePayload(body)
	if err != nil {
		s.logger.WarnTrace("WebSocket", traceID, "malformed upload message: %v", err)
		return conn.WriteJSON(ResultFrame{Type: FrameResult, UploadResponse: failure(traceID, "invalid JSON body", nil)})
	}

	conn.WatchPeer()

	observer := progressObserver{
		conn:    conn,
		traceID: traceID,
		onError: func(err error) {
			s.logger.DebugTrace("WebSocket", traceID, "progress frame dropped: %v", err)
		},
	}
	out := s.runner.Run(ctx, traceID, payload, observer)

	frame := ResultFrame{Type: FrameResult}
	if out.Completed() {
		frame.UploadResponse = UploadResponse{Success: true, Data: out.Result, TraceID: traceID}
	} else {
		frame.UploadResponse = failure(traceID, errors.Public(out.Err), violations(out.Err))
	}
	if err := conn.WriteJSON(frame); err != nil {
		return err
	}
	return conn.CloseWith(websocket.CloseNormalClosure, http.StatusText(http.StatusOK))
}
