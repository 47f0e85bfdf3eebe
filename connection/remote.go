package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"oxyrun/model"
	"oxyrun/protocol"
)

const (
	writeWait      = 5 * time.Second
	welcomeWait    = 10 * time.Second
	closeWait      = time.Second
	sendQueueSize  = 64
	recvQueueSize  = 1024
	maxMessageSize = 1 << 20 // 1MB
)

// Remote 联网模式：上行为非阻塞发送队列，下行为非阻塞排空
// 发送即忘：无确认、无重试、无背压
type Remote struct {
	ws   *websocket.Conn
	send chan []byte
	recv chan model.ServerMessage
	errs chan error

	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once

	log *zap.Logger
}

type RemoteOption func(*Remote)

func WithRemoteLogger(log *zap.Logger) RemoteOption {
	return func(r *Remote) { r.log = log }
}

// Dial 建立 WebSocket 连接并读取欢迎消息；第一条消息不是 Welcome 即视为协议错误
func Dial(ctx context.Context, url string, opts ...RemoteOption) (*Remote, model.WelcomeMessage, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, model.WelcomeMessage{}, fmt.Errorf("dial %s: %w", url, err)
	}
	r := &Remote{
		ws:         ws,
		send:       make(chan []byte, sendQueueSize),
		recv:       make(chan model.ServerMessage, recvQueueSize),
		errs:       make(chan error, 1),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	ws.SetReadLimit(maxMessageSize)

	deadline := time.Now().Add(welcomeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = ws.SetReadDeadline(deadline)
	_, payload, err := ws.ReadMessage()
	if err != nil {
		_ = ws.Close()
		return nil, model.WelcomeMessage{}, fmt.Errorf("read welcome: %w", err)
	}
	msg, err := protocol.DecodeServerMessage(payload)
	if err != nil {
		_ = ws.Close()
		return nil, model.WelcomeMessage{}, fmt.Errorf("decode welcome: %v: %w", err, ErrProtocolViolation)
	}
	welcome, ok := msg.(model.WelcomeMessage)
	if !ok {
		_ = ws.Close()
		return nil, model.WelcomeMessage{}, fmt.Errorf("expected welcome, got %T: %w", msg, ErrProtocolViolation)
	}
	_ = ws.SetReadDeadline(time.Time{})

	r.log.Info("connected", zap.String("url", url), zap.Uint64("player_id", uint64(welcome.PlayerID)))
	go r.writePump()
	go r.readPump()
	return r, welcome, nil
}

// Submit 编码后压入发送队列；队列满则丢弃
func (r *Remote) Submit(msg model.ClientMessage) error {
	b, err := protocol.EncodeClientMessage(msg)
	if err != nil {
		return err
	}
	select {
	case <-r.done:
		return ErrClosed
	default:
	}
	select {
	case r.send <- b:
	default:
		r.log.Warn("send queue full, message dropped")
	}
	return nil
}

// Poll 返回已到达的全部消息（保持到达顺序），没有则返回空
// 队列排空后才报告读协程遇到的错误
func (r *Remote) Poll(float64) ([]model.ServerMessage, error) {
	var out []model.ServerMessage
	for {
		select {
		case msg := <-r.recv:
			out = append(out, msg)
			continue
		default:
		}
		break
	}
	if len(out) > 0 {
		return out, nil
	}
	select {
	case err := <-r.errs:
		// 保留错误，后续 Poll 仍然报告
		r.errs <- err
		return nil, err
	default:
		return nil, nil
	}
}

// Close 冲刷发送队列后关闭连接（尽力而为，最多等待 closeWait）
func (r *Remote) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		select {
		case <-r.writerDone:
		case <-time.After(closeWait):
			_ = r.ws.Close()
		}
	})
	return nil
}

func (r *Remote) fail(err error) {
	select {
	case r.errs <- err:
	default:
	}
}

func (r *Remote) readPump() {
	for {
		_, payload, err := r.ws.ReadMessage()
		if err != nil {
			r.log.Debug("read pump stopped", zap.Error(err))
			r.fail(fmt.Errorf("%v: %w", err, ErrClosed))
			return
		}
		msg, err := protocol.DecodeServerMessage(payload)
		if err != nil {
			r.log.Error("undecodable server message", zap.Error(err))
			r.fail(fmt.Errorf("%v: %w", err, ErrProtocolViolation))
			return
		}
		select {
		case r.recv <- msg:
		case <-r.done:
			return
		}
	}
}

func (r *Remote) write(b []byte) error {
	_ = r.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return r.ws.WriteMessage(websocket.TextMessage, b)
}

func (r *Remote) writePump() {
	defer close(r.writerDone)
	defer r.ws.Close()
	for {
		select {
		case b := <-r.send:
			if err := r.write(b); err != nil {
				r.log.Debug("write pump stopped", zap.Error(err))
				return
			}
		case <-r.done:
			for {
				select {
				case b := <-r.send:
					if err := r.write(b); err != nil {
						return
					}
					continue
				default:
				}
				break
			}
			_ = r.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(writeWait))
			return
		}
	}
}
