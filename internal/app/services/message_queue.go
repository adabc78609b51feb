package services

import (
	"sync"
	"sync/atomic"

	"vesta-voice/internal/platform/errors"
	"vesta-voice/internal/platform/logging"
	"vesta-voice/internal/transport/ws"
)

const defaultQueueSize = 128

// Conn is the part of a websocket connection a page session uses.
type Conn interface {
	ID() string
	ReadFrame() (ws.Frame, error)
	WriteFrame(typ string, data interface{}) error
	Close() error
}

type outFrame struct {
	typ  string
	data interface{}
}

// MessageQueue 出站消息队列。入队不阻塞，由单个写协程按顺序写出
type MessageQueue struct {
	conn   Conn
	logger *logging.Logger

	queue   chan outFrame
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

// NewMessageQueue starts the writer goroutine for conn.
func NewMessageQueue(conn Conn, size int, logger *logging.Logger) *MessageQueue {
	if size <= 0 {
		size = defaultQueueSize
	}
	q := &MessageQueue{
		conn:   conn,
		logger: logger,
		queue:  make(chan outFrame, size),
		stop:   make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// Send enqueues a frame. It fails when the queue is stopped or full.
func (q *MessageQueue) Send(typ string, data interface{}) error {
	select {
	case <-q.stop:
		return errors.New(errors.KindTransport, "queue.send", "session closed")
	default:
	}
	select {
	case q.queue <- outFrame{typ: typ, data: data}:
		return nil
	default:
		q.dropped.Add(1)
		return errors.New(errors.KindTransport, "queue.send", "send queue full")
	}
}

// Dropped 因队列满被丢弃的消息数
func (q *MessageQueue) Dropped() uint64 {
	return q.dropped.Load()
}

// Stop flushes what is already queued and stops the writer.
func (q *MessageQueue) Stop() {
	q.once.Do(func() {
		close(q.stop)
	})
	q.wg.Wait()
}

func (q *MessageQueue) run() {
	defer q.wg.Done()
	for {
		select {
		case f := <-q.queue:
			q.write(f)
		case <-q.stop:
			for {
				select {
				case f := <-q.queue:
					q.write(f)
				default:
					return
				}
			}
		}
	}
}

func (q *MessageQueue) write(f outFrame) {
	if err := q.conn.WriteFrame(f.typ, f.data); err != nil {
		q.logger.DebugTag(logging.TagWebSocket, "写出 %s 失败 conn=%s: %v", f.typ, q.conn.ID(), err)
	}
}
