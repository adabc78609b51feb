package ws

import "errors"

var (
	// ErrHandshakeTimeout indicates the websocket handshake exceeded the configured timeout.
	ErrHandshakeTimeout = errors.New("websocket handshake timed out")
	// ErrSessionShutdown is the close reason when the server ends a session.
	ErrSessionShutdown = errors.New("websocket session shutdown")
	// ErrPeerGone is the close reason when the page ended the read loop.
	ErrPeerGone = errors.New("websocket peer gone")
	// ErrConnectionClosed is returned when writing to a closed connection.
	ErrConnectionClosed = errors.New("websocket connection closed")
	// ErrNoHandler 构建器返回了空处理器
	ErrNoHandler = errors.New("handler builder returned no session handler")
	// ErrEmptyFrameType 帧缺少 type 字段
	ErrEmptyFrameType = errors.New("frame type is empty")
)
