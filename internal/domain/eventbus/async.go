package eventbus

import (
	"fmt"
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// AsyncEventBus 进程内事件总线，同步发布直接分发，异步发布交给 worker 池
type AsyncEventBus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	stopChan  chan struct{}
	wg        sync.WaitGroup
	pending   sync.WaitGroup
	onPanic   func(topic string, recovered interface{})
	stopOnce  sync.Once
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

// NewAsyncEventBus 创建异步事件总线
func NewAsyncEventBus(workerNum, queueSize int) *AsyncEventBus {
	if workerNum <= 0 {
		workerNum = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &AsyncEventBus{
		bus:       evbus.New(),
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, queueSize),
		stopChan:  make(chan struct{}),
	}
}

// OnPanic 设置订阅者 panic 时的回调
func (aeb *AsyncEventBus) OnPanic(fn func(topic string, recovered interface{})) {
	aeb.onPanic = fn
}

// Start 启动 worker
func (aeb *AsyncEventBus) Start() {
	for i := 0; i < aeb.workerNum; i++ {
		aeb.wg.Add(1)
		go aeb.worker()
	}
}

// Stop 处理完队列中的事件后停止 worker，可重复调用
func (aeb *AsyncEventBus) Stop() {
	aeb.stopOnce.Do(func() {
		aeb.pending.Wait()
		close(aeb.stopChan)
		aeb.wg.Wait()
	})
}

func (aeb *AsyncEventBus) worker() {
	defer aeb.wg.Done()

	for {
		select {
		case <-aeb.stopChan:
			return
		case event := <-aeb.workChan:
			aeb.dispatch(event)
		}
	}
}

func (aeb *AsyncEventBus) dispatch(event asyncEvent) {
	defer aeb.pending.Done()
	defer func() {
		if r := recover(); r != nil && aeb.onPanic != nil {
			aeb.onPanic(event.topic, r)
		}
	}()
	aeb.bus.Publish(event.topic, event.args...)
}

// Publish 同步发布事件
func (aeb *AsyncEventBus) Publish(topic string, args ...interface{}) {
	aeb.bus.Publish(topic, args...)
}

// PublishAsync 异步发布事件，队列满时返回错误而不是阻塞调用方
func (aeb *AsyncEventBus) PublishAsync(topic string, args ...interface{}) error {
	aeb.pending.Add(1)
	select {
	case aeb.workChan <- asyncEvent{topic: topic, args: args}:
		return nil
	default:
		aeb.pending.Done()
		return fmt.Errorf("event queue full, dropped %s", topic)
	}
}

// Subscribe 订阅事件
func (aeb *AsyncEventBus) Subscribe(topic string, fn interface{}) error {
	return aeb.bus.Subscribe(topic, fn)
}

// Unsubscribe 取消订阅
func (aeb *AsyncEventBus) Unsubscribe(topic string, handler interface{}) error {
	return aeb.bus.Unsubscribe(topic, handler)
}

// HasCallback 检查是否有订阅者
func (aeb *AsyncEventBus) HasCallback(topic string) bool {
	return aeb.bus.HasCallback(topic)
}

// WaitAsync 等待已入队的异步事件全部处理完
func (aeb *AsyncEventBus) WaitAsync() {
	aeb.pending.Wait()
}
