package eventbus

import (
	"sync/atomic"
	"testing"
)

func TestPublishAsyncDeliversBeforeWaitReturns(t *testing.T) {
	bus := NewAsyncEventBus(2, 16)
	bus.Start()
	defer bus.Stop()

	var got atomic.Int32
	if err := bus.Subscribe(EventPipelineCompleted, func(ev PipelineEventData) {
		if ev.TraceID == "t-1" {
			got.Add(1)
		}
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := bus.PublishAsync(EventPipelineCompleted, PipelineEventData{TraceID: "t-1"}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	bus.WaitAsync()

	if got.Load() != 5 {
		t.Fatalf("expected 5 deliveries, got %d", got.Load())
	}
}

func TestPublishAsyncQueueFull(t *testing.T) {
	bus := NewAsyncEventBus(1, 1)
	// workers not started, so the queue fills up
	if err := bus.PublishAsync("x"); err != nil {
		t.Fatalf("first publish should fit: %v", err)
	}
	if err := bus.PublishAsync("x"); err == nil {
		t.Fatal("expected queue full error")
	}
	bus.Start()
	bus.Stop()
}

func TestSubscriberPanicIsRecovered(t *testing.T) {
	bus := NewAsyncEventBus(1, 4)
	var panics atomic.Int32
	bus.OnPanic(func(string, interface{}) { panics.Add(1) })
	bus.Start()
	defer bus.Stop()

	_ = bus.Subscribe(EventPipelineFailed, func(PipelineEventData) { panic("boom") })
	_ = bus.PublishAsync(EventPipelineFailed, PipelineEventData{})
	bus.WaitAsync()

	if panics.Load() != 1 {
		t.Fatalf("expected recovered panic, got %d", panics.Load())
	}
	if !bus.HasCallback(EventPipelineFailed) {
		t.Fatal("subscriber should remain registered")
	}
}

func TestSyncPublish(t *testing.T) {
	bus := NewAsyncEventBus(1, 1)
	var stage string
	_ = bus.Subscribe(EventPipelineStage, func(ev PipelineEventData) { stage = ev.Stage })
	bus.Publish(EventPipelineStage, PipelineEventData{Stage: "publishing"})
	if stage != "publishing" {
		t.Fatalf("expected synchronous delivery, got %q", stage)
	}
}
