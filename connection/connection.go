package connection

import (
	"errors"

	"oxyrun/model"
)

var (
	// ErrProtocolViolation 收到当前上下文不允许的消息（例如会话中途的 Welcome），视为致命错误
	ErrProtocolViolation = errors.New("connection: protocol violation")
	// ErrClosed 连接已关闭
	ErrClosed = errors.New("connection: closed")
)

// Connection 访问权威方的统一接口，内嵌本地模拟与远程服务端两种实现
// Submit 提交客户端消息；Poll 返回自上次调用以来产生的下行消息（按到达顺序）
// elapsed 为自上次 Poll 以来的真实时间（秒），只有本地实现用它驱动 Tick
type Connection interface {
	Submit(msg model.ClientMessage) error
	Poll(elapsed float64) ([]model.ServerMessage, error)
	Close() error
}
