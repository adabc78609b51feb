package eventbus

import (
	evbus "github.com/asaskevich/EventBus"
)

// Bus 事件总线：同步发布直接回调，异步发布交给 worker 池
type Bus struct {
	bus   evbus.Bus
	async *AsyncEventBus
}

// New 创建事件总线并启动 workers 个异步 worker
func New(workers int) *Bus {
	bus := evbus.New()
	async := newAsyncEventBus(bus, workers)
	async.Start()
	return &Bus{bus: bus, async: async}
}

// Publish 发布同步事件
func (b *Bus) Publish(topic string, args ...interface{}) {
	b.bus.Publish(topic, args...)
}

// PublishAsync 发布异步事件，队列满时丢弃
func (b *Bus) PublishAsync(topic string, args ...interface{}) {
	b.async.PublishAsync(topic, args...)
}

// Subscribe 订阅事件
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// Unsubscribe 取消订阅
func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

// HasCallback 检查是否有订阅者
func (b *Bus) HasCallback(topic string) bool {
	return b.bus.HasCallback(topic)
}

// Dropped 返回因队列满而丢弃的异步事件数
func (b *Bus) Dropped() uint64 {
	return b.async.Dropped()
}

// Shutdown 停止异步 worker，已入队的事件会被处理完
func (b *Bus) Shutdown() {
	b.async.Stop()
}
