package eventbus

import (
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"
)

// AsyncEventBus 异步事件分发
type AsyncEventBus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	dropped   atomic.Uint64
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

func newAsyncEventBus(bus evbus.Bus, workerNum int) *AsyncEventBus {
	if workerNum <= 0 {
		workerNum = 4
	}
	return &AsyncEventBus{
		bus:       bus,
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, 1000), // 缓冲区1000个事件
		stopChan:  make(chan struct{}),
	}
}

// Start 启动异步处理
func (aeb *AsyncEventBus) Start() {
	for i := 0; i < aeb.workerNum; i++ {
		aeb.wg.Add(1)
		go aeb.worker()
	}
}

// Stop 停止异步处理
func (aeb *AsyncEventBus) Stop() {
	aeb.stopOnce.Do(func() {
		close(aeb.stopChan)
	})
	aeb.wg.Wait()
}

func (aeb *AsyncEventBus) worker() {
	defer aeb.wg.Done()

	for {
		select {
		case <-aeb.stopChan:
			// 处理完剩余事件再退出
			for {
				select {
				case event := <-aeb.workChan:
					aeb.deliver(event)
				default:
					return
				}
			}
		case event := <-aeb.workChan:
			aeb.deliver(event)
		}
	}
}

func (aeb *AsyncEventBus) deliver(event asyncEvent) {
	defer func() {
		// 订阅者 panic 不影响 worker
		_ = recover()
	}()
	aeb.bus.Publish(event.topic, event.args...)
}

// PublishAsync 异步发布事件
func (aeb *AsyncEventBus) PublishAsync(topic string, args ...interface{}) {
	select {
	case <-aeb.stopChan:
		aeb.dropped.Add(1)
		return
	default:
	}
	select {
	case aeb.workChan <- asyncEvent{topic: topic, args: args}:
	default:
		aeb.dropped.Add(1)
	}
}

// Dropped 丢弃计数
func (aeb *AsyncEventBus) Dropped() uint64 {
	return aeb.dropped.Load()
}
