package pipeline

import (
	"context"
	stderrors "errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-images-server-go/internal/domain/compress"
	"ai-images-server-go/internal/domain/describe"
	"ai-images-server-go/internal/domain/eventbus"
	"ai-images-server-go/internal/domain/image"
	"ai-images-server-go/internal/domain/publish"
	"ai-images-server-go/internal/platform/config"
	"ai-images-server-go/internal/platform/errors"
	"ai-images-server-go/internal/platform/observability"
	"ai-images-server-go/internal/platform/testutil"
)

type fakeDescriber struct {
	calls atomic.Int32
	err   error
	panic bool
	lang  atomic.Value
}

func (*fakeDescriber) Name() string { return "fake" }

func (f *fakeDescriber) Describe(ctx context.Context, data []byte, mimeType, language string) (image.DescriptionResult, error) {
	f.calls.Add(1)
	f.lang.Store(language)
	if f.panic {
		panic("model exploded")
	}
	if f.err != nil {
		return image.DescriptionResult{}, f.err
	}
	return image.DescriptionResult{
		Description: "A single red pixel. The pixel is red.",
		Keywords:    []string{"pixel", "single"},
		Confidence:  describe.PlaceholderConfidence,
	}, nil
}

type fakePublisher struct {
	publish.Publisher
	err       error
	block     bool
	deleteErr error
	deleted   []string
	mu        sync.Mutex
}

func (f *fakePublisher) Publish(ctx context.Context, data []byte, fileName, mimeType string) (image.PublishResult, error) {
	if f.block {
		<-ctx.Done()
		return image.PublishResult{}, errors.Wrap(errors.KindStorage, "fake.publish", "storage unavailable", ctx.Err())
	}
	if f.err != nil {
		return image.PublishResult{}, f.err
	}
	return f.Publisher.Publish(ctx, data, fileName, mimeType)
}

func (f *fakePublisher) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return f.deleteErr
}

type countingCompressor struct {
	compress.Compressor
	calls atomic.Int32
}

func (c *countingCompressor) Compress(ctx context.Context, data []byte, fileName, mimeType string) (image.CompressionResult, error) {
	c.calls.Add(1)
	return c.Compressor.Compress(ctx, data, fileName, mimeType)
}

type recorder struct {
	mu          sync.Mutex
	transitions []Transition
}

func (r *recorder) OnTransition(_ context.Context, t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, 0, len(r.transitions))
	for _, t := range r.transitions {
		out = append(out, t.To)
	}
	return out
}

func fixturePayload(lang string) image.Payload {
	return image.Payload{
		FileName:  testutil.Ptr("red.png"),
		MimeType:  testutil.Ptr("image/png"),
		FileSize:  testutil.Ptr(int64(70)),
		ImageData: testutil.Ptr(testutil.RedPixelPNG),
		Language:  testutil.Ptr(lang),
	}
}

type harness struct {
	orch       *Orchestrator
	publisher  *fakePublisher
	describer  *fakeDescriber
	compressor *countingCompressor
	rec        *recorder
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		publisher:  &fakePublisher{Publisher: publish.NewMock("dev", "https://cdn.test")},
		describer:  &fakeDescriber{},
		compressor: &countingCompressor{Compressor: compress.NewPassthrough()},
		rec:        &recorder{},
	}
	orch, err := New(Stages{
		Validator:  image.NewValidator(image.DefaultPolicy()),
		Compressor: h.compressor,
		Publisher:  h.publisher,
		Describer:  h.describer,
	}, opts, h.rec)
	require.NoError(t, err)
	h.orch = orch
	return h
}

func TestRunCompletesFixture(t *testing.T) {
	h := newHarness(t, Options{})

	out := h.orch.Run(context.Background(), "trace-1", fixturePayload("en"))

	require.True(t, out.Completed(), "unexpected failure: %v", out.Err)
	require.NotNil(t, out.Result)
	assert.Regexp(t, regexp.MustCompile(`^https://cdn\.test/dev/\d+-red\.png$`), out.Result.URL)
	assert.Regexp(t, regexp.MustCompile(`^dev/\d+-red\.png$`), out.Result.Key)
	assert.LessOrEqual(t, len(out.Result.Keywords), 10)
	assert.GreaterOrEqual(t, out.Result.Confidence, 0.0)
	assert.LessOrEqual(t, out.Result.Confidence, 1.0)
	assert.False(t, math.IsNaN(out.Result.CompressionRatio) || math.IsInf(out.Result.CompressionRatio, 0))
	assert.Equal(t, int64(len(testutil.RedPixelBytes(t))), out.Result.OriginalSize)
	assert.Equal(t, "trace-1", out.TraceID)

	assert.Equal(t, []State{StateValidating, StateCompressing, StatePublishing, StateDescribing, StateCompleted}, h.rec.states())
}

func TestRunProducesExactlyOneTerminalTransition(t *testing.T) {
	cases := map[string]func(h *harness){
		"completed":         func(*harness) {},
		"storage failure":   func(h *harness) { h.publisher.err = stderrors.New("bucket gone") },
		"describer failure": func(h *harness) { h.describer.err = stderrors.New("503") },
		"describer panic":   func(h *harness) { h.describer.panic = true },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, Options{})
			mutate(h)
			out := h.orch.Run(context.Background(), "t", fixturePayload("en"))

			terminal := 0
			for _, s := range h.rec.states() {
				if s.Terminal() {
					terminal++
				}
			}
			assert.Equal(t, 1, terminal)
			assert.True(t, out.State.Terminal())
		})
	}
}

func TestRunValidationFailureShortCircuits(t *testing.T) {
	h := newHarness(t, Options{})
	p := fixturePayload("en")
	p.MimeType = testutil.Ptr("image/gif")

	out := h.orch.Run(context.Background(), "t", p)

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, StateValidating, out.FailedStage)
	assert.Equal(t, errors.KindValidation, out.Kind())
	var verr *image.ValidationError
	assert.True(t, stderrors.As(out.Err, &verr))
	assert.Zero(t, h.compressor.calls.Load())
	assert.Zero(t, h.describer.calls.Load())
}

func TestRunStorageFailureNeverInvokesDescriber(t *testing.T) {
	h := newHarness(t, Options{})
	h.publisher.err = stderrors.New("dial tcp: connection refused")

	out := h.orch.Run(context.Background(), "t", fixturePayload("en"))

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, StatePublishing, out.FailedStage)
	assert.Equal(t, errors.KindStorage, out.Kind())
	assert.True(t, errors.Retryable(out.Kind()))
	assert.Zero(t, h.describer.calls.Load())
	assert.Nil(t, out.Result)
	assert.Equal(t, []State{StateValidating, StateCompressing, StatePublishing, StateFailed}, h.rec.states())
}

func TestRunPublishTimeoutIsStorageFailure(t *testing.T) {
	h := newHarness(t, Options{PublishTimeout: 20 * time.Millisecond})
	h.publisher.block = true

	out := h.orch.Run(context.Background(), "t", fixturePayload("en"))

	assert.Equal(t, errors.KindStorage, out.Kind())
	assert.True(t, stderrors.Is(out.Err, context.DeadlineExceeded))
	assert.Zero(t, h.describer.calls.Load())
}

func TestRunDescriberFailureWithoutCompensation(t *testing.T) {
	h := newHarness(t, Options{})
	h.describer.err = stderrors.New("upstream 500")

	out := h.orch.Run(context.Background(), "t", fixturePayload("en"))

	assert.Equal(t, StateDescribing, out.FailedStage)
	assert.Equal(t, errors.KindDescription, out.Kind())
	assert.Empty(t, h.publisher.deleted)
}

type compensationSpy struct {
	recorder
	keys []string
	errs []error
}

func (c *compensationSpy) OnCompensation(_ context.Context, _ string, key string, err error) {
	c.keys = append(c.keys, key)
	c.errs = append(c.errs, err)
}

func TestRunDescriberFailureCompensates(t *testing.T) {
	h := newHarness(t, Options{Compensate: true})
	h.describer.err = stderrors.New("upstream 500")
	h.publisher.deleteErr = stderrors.New("delete denied")
	spy := &compensationSpy{}

	out := h.orch.Run(context.Background(), "t", fixturePayload("en"), spy)

	require.Len(t, h.publisher.deleted, 1)
	assert.True(t, strings.HasPrefix(h.publisher.deleted[0], "dev/"))
	assert.Equal(t, h.publisher.deleted, spy.keys)
	assert.EqualError(t, spy.errs[0], "delete denied")
	// the original failure is reported, not the delete failure
	assert.Equal(t, errors.KindDescription, out.Kind())
	assert.Contains(t, out.Err.Error(), "upstream 500")
}

func TestRunPanicBecomesFailure(t *testing.T) {
	h := newHarness(t, Options{})
	h.describer.panic = true

	out := h.orch.Run(context.Background(), "t", fixturePayload("en"))

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, StateDescribing, out.FailedStage)
	assert.Equal(t, errors.KindPlatform, out.Kind())
}

func TestRunTwiceYieldsDistinctKeys(t *testing.T) {
	h := newHarness(t, Options{})

	first := h.orch.Run(context.Background(), "a", fixturePayload("en"))
	second := h.orch.Run(context.Background(), "b", fixturePayload("en"))

	require.True(t, first.Completed())
	require.True(t, second.Completed())
	assert.NotEqual(t, first.Result.Key, second.Result.Key)
}

func TestConcurrentRunsAreIndependent(t *testing.T) {
	h := newHarness(t, Options{})
	const n = 20

	keys := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := h.orch.Run(context.Background(), "c", fixturePayload("zh"))
			if out.Completed() {
				keys <- out.Result.Key
			}
		}()
	}
	wg.Wait()
	close(keys)

	seen := map[string]bool{}
	for k := range keys {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
	assert.Len(t, seen, n)
}

func TestUnknownLanguageCompletesWithFallbackPrompt(t *testing.T) {
	var prompt atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		prompt.Store(string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Crimson square. Crimson again."}}]}`)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig().Describer
	cfg.APIKey = "sk-test"
	cfg.BaseURL = srv.URL + "/v1"
	d, err := describe.New(cfg)
	require.NoError(t, err)

	orch, err := New(Stages{
		Validator:  image.NewValidator(image.DefaultPolicy()),
		Compressor: compress.NewPassthrough(),
		Publisher:  publish.NewMock("dev", "https://cdn.test"),
		Describer:  d,
	}, Options{})
	require.NoError(t, err)

	out := orch.Run(context.Background(), "t", fixturePayload("tlh"))

	require.True(t, out.Completed(), "unexpected failure: %v", out.Err)
	enPrompt, _ := describe.Prompt("en", "en")
	assert.Contains(t, prompt.Load().(string), enPrompt)
	assert.Equal(t, "crimson", out.Result.Keywords[0])
}

func TestNewRequiresStages(t *testing.T) {
	_, err := New(Stages{}, Options{})
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}

func TestObserversPublishEventsAndMetrics(t *testing.T) {
	bus := eventbus.NewAsyncEventBus(1, 16)
	bus.Start()
	defer bus.Stop()

	var completed atomic.Value
	require.NoError(t, bus.Subscribe(eventbus.EventPipelineCompleted, func(ev eventbus.PipelineEventData) {
		completed.Store(ev)
	}))

	metrics := observability.NewMetrics()
	h := newHarness(t, Options{})
	h.orch.Observe(
		EventObserver{Bus: bus, Logger: testutil.SetupTestLogger(t)},
		MetricsObserver{Metrics: metrics},
		LogObserver{Logger: testutil.SetupTestLogger(t)},
	)

	out := h.orch.Run(context.Background(), "trace-ev", fixturePayload("en"))
	require.True(t, out.Completed())
	bus.WaitAsync()

	ev, ok := completed.Load().(eventbus.PipelineEventData)
	require.True(t, ok, "completion event not delivered")
	assert.Equal(t, "trace-ev", ev.TraceID)
	require.NotNil(t, ev.Result)
	assert.Equal(t, out.Result.Key, ev.Result.Key)
	assert.Equal(t, "red.png", ev.FileName)
	assert.Equal(t, testutil.RedPixelBytes(t), ev.Image)
}
