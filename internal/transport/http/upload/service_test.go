package upload

import (
	"bytes"
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-images-server-go/internal/domain/compress"
	"ai-images-server-go/internal/domain/describe"
	"ai-images-server-go/internal/domain/image"
	"ai-images-server-go/internal/domain/pipeline"
	"ai-images-server-go/internal/domain/publish"
	"ai-images-server-go/internal/platform/testutil"
	httptransport "ai-images-server-go/internal/transport/http"
	"ai-images-server-go/internal/transport/ws"
)

type stubDescriber struct {
	err error
}

func (stubDescriber) Name() string { return "stub" }

func (s stubDescriber) Describe(context.Context, []byte, string, string) (image.DescriptionResult, error) {
	if s.err != nil {
		return image.DescriptionResult{}, s.err
	}
	return image.DescriptionResult{
		Description: "A solitary red pixel.",
		Keywords:    []string{"solitary", "pixel"},
		Confidence:  0.85,
	}, nil
}

func newEngine(t *testing.T, describerErr error, maxBody int64) *gin.Engine {
	t.Helper()
	return newEngineWith(t, stubDescriber{err: describerErr}, maxBody)
}

func newEngineWith(t *testing.T, describer describe.Describer, maxBody int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := testutil.SetupTestLogger(t)
	orch, err := pipeline.New(pipeline.Stages{
		Validator:  image.NewValidator(image.DefaultPolicy()),
		Compressor: compress.NewPassthrough(),
		Publisher:  publish.NewMock("dev", "https://cdn.test"),
		Describer:  describer,
	}, pipeline.Options{})
	require.NoError(t, err)

	cfg := testutil.SetupTestConfig(t)
	cfg.Log.Level = "INFO"
	router, err := httptransport.Build(httptransport.Options{Config: cfg, Logger: logger})
	require.NoError(t, err)

	svc, err := NewService(Options{
		Runner:      orch,
		Logger:      logger,
		ServiceName: "AI Images Agent",
		MaxBodySize: maxBody,
		Streams:     ws.NewRouter(ws.NewHub(), logger, ws.RouterOptions{}),
	})
	require.NoError(t, err)
	require.NoError(t, router.Register(context.Background(), svc))
	return router.Engine
}

func fixtureBody(t *testing.T, mutate func(map[string]interface{})) []byte {
	t.Helper()
	body := map[string]interface{}{
		"fileName":  "red.png",
		"mimeType":  "image/png",
		"fileSize":  70,
		"imageData": testutil.RedPixelPNG,
		"language":  "en",
	}
	if mutate != nil {
		mutate(body)
	}
	data, err := sonic.Marshal(body)
	require.NoError(t, err)
	return data
}

func post(engine *gin.Engine, body []byte, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) UploadResponse {
	t.Helper()
	var resp UploadResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestPostUploadSuccess(t *testing.T) {
	engine := newEngine(t, nil, 0)

	w := post(engine, fixtureBody(t, nil), nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	assert.Regexp(t, `^https://cdn\.test/dev/\d+-red\.png$`, resp.Data.URL)
	assert.Equal(t, 0.85, resp.Data.Confidence)
	assert.NotEmpty(t, resp.TraceID)
	assert.Equal(t, resp.TraceID, w.Header().Get(httptransport.TraceHeader))
	assert.Contains(t, w.Body.String(), `"compressionRatio":0`)
}

func TestPostUploadHonoursInboundTraceID(t *testing.T) {
	engine := newEngine(t, nil, 0)

	w := post(engine, fixtureBody(t, nil), http.Header{"X-Trace-Id": {"client-trace-1"}})

	assert.Equal(t, "client-trace-1", decode(t, w).TraceID)
}

func TestPostUploadValidationFailure(t *testing.T) {
	engine := newEngine(t, nil, 0)

	w := post(engine, fixtureBody(t, func(b map[string]interface{}) {
		b["fileName"] = ""
		b["mimeType"] = "image/gif"
	}), nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	assert.Contains(t, resp.Error, "fileName")
	assert.Len(t, resp.Details, 2)
	assert.NotEmpty(t, resp.TraceID)
}

func TestPostUploadMalformedJSON(t *testing.T) {
	engine := newEngine(t, nil, 0)

	for _, body := range []string{"", "{", "[1,2]", `{"fileSize":"big"}`} {
		w := post(engine, []byte(body), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "invalid JSON body", decode(t, w).Error, body)
	}
}

func TestPostUploadDescriberFailureIs500(t *testing.T) {
	engine := newEngine(t, stderrors.New("upstream status 503"), 0)

	w := post(engine, fixtureBody(t, nil), nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "upstream status 503")
	assert.Equal(t, resp.TraceID, w.Header().Get(httptransport.TraceHeader))
}

func TestPostUploadBodyTooLarge(t *testing.T) {
	engine := newEngine(t, nil, 64)

	w := post(engine, fixtureBody(t, nil), nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.False(t, decode(t, w).Success)
}

func TestGetUploadHealth(t *testing.T) {
	engine := newEngine(t, nil, 0)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/upload", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, HealthResponse{
		Status:  "ok",
		Service: "AI Images Agent",
		Endpoints: map[string]string{
			"upload": "POST /api/upload",
			"stream": "GET /api/upload/ws",
		},
	}, health)
}

func TestOptionsUpload(t *testing.T) {
	engine := newEngine(t, nil, 0)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/upload", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Allow"), "POST")
}

func dialStream(t *testing.T, engine *gin.Engine) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/upload/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func readFrames(t *testing.T, conn *websocket.Conn) ([]ProgressFrame, ResultFrame) {
	t.Helper()
	var progress []ProgressFrame
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var head struct {
			Type string `json:"type"`
		}
		require.NoError(t, sonic.Unmarshal(data, &head))
		if head.Type == FrameResult {
			var result ResultFrame
			require.NoError(t, sonic.Unmarshal(data, &result))
			return progress, result
		}

		var frame ProgressFrame
		require.NoError(t, sonic.Unmarshal(data, &frame))
		progress = append(progress, frame)
	}
}

func TestStreamReportsEveryStage(t *testing.T) {
	conn := dialStream(t, newEngine(t, nil, 0))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, fixtureBody(t, nil)))
	progress, result := readFrames(t, conn)

	stages := make([]string, 0, len(progress))
	for _, f := range progress {
		stages = append(stages, f.Stage)
		assert.Equal(t, result.TraceID, f.TraceID)
		assert.NotEmpty(t, f.Message)
	}
	assert.Equal(t, []string{"validating", "compressing", "publishing", "describing", "completed"}, stages)
	assert.Equal(t, "正在校验图片...", progress[0].Message)
	assert.Equal(t, 100, progress[len(progress)-1].Progress)

	assert.True(t, result.Success)
	require.NotNil(t, result.Data)
	assert.Contains(t, result.Data.Key, "dev/")
}

func TestStreamReportsFailure(t *testing.T) {
	conn := dialStream(t, newEngine(t, stderrors.New("model offline"), 0))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, fixtureBody(t, nil)))
	progress, result := readFrames(t, conn)

	require.NotEmpty(t, progress)
	assert.Equal(t, "failed", progress[len(progress)-1].Stage)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "model offline")
}

func TestStreamRejectsMalformedMessage(t *testing.T) {
	conn := dialStream(t, newEngine(t, nil, 0))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	progress, result := readFrames(t, conn)

	assert.Empty(t, progress)
	assert.False(t, result.Success)
	assert.Equal(t, "invalid JSON body", result.Error)
}

// blockingDescriber waits for its context so tests can observe cancellation.
type blockingDescriber struct {
	started   chan struct{}
	cancelled chan struct{}
}

func (blockingDescriber) Name() string { return "blocking" }

func (b blockingDescriber) Describe(ctx context.Context, _ []byte, _, _ string) (image.DescriptionResult, error) {
	close(b.started)
	<-ctx.Done()
	close(b.cancelled)
	return image.DescriptionResult{}, ctx.Err()
}

func TestStreamCancelsRunWhenClientLeaves(t *testing.T) {
	d := blockingDescriber{started: make(chan struct{}), cancelled: make(chan struct{})}
	conn := dialStream(t, newEngineWith(t, d, 0))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, fixtureBody(t, nil)))
	select {
	case <-d.started:
	case <-time.After(5 * time.Second):
		t.Fatal("describer never started")
	}

	require.NoError(t, conn.Close())

	select {
	case <-d.cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("run kept going after the client disconnected")
	}
}
