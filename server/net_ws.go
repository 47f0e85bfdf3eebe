package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"oxyrun/model"
	"oxyrun/protocol"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ID   string
	ws   *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func NewClientConn(ws *websocket.Conn, queueSize int) *ClientConn {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &ClientConn{
		ID:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, queueSize),
		done: make(chan struct{}),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		// 为了实时性直接丢弃，防止阻塞 Tick
		return false
	}
}

// Close 通知写协程冲刷队列后关闭底层连接
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期发送 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			for {
				select {
				case msg := <-c.send:
					_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
					continue
				default:
				}
				break
			}
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// readPump 读取客户端消息，解码后注入房间
func (c *ClientConn) readPump(room *Room, playerID model.ID) {
	defer c.Close()
	// 读泵退出时，通知房间在 Tick 线程中移除该玩家
	defer room.RequestLeave(playerID)
	c.ws.SetReadLimit(1 << 20) // 1MB
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				Log.Debugw("read error", "conn", c.ID, "player", playerID, "err", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		msg, err := protocol.DecodeClientMessage(payload)
		if err != nil {
			messagesDropped.WithLabelValues("decode").Inc()
			Log.Warnw("bad client message", "conn", c.ID, "player", playerID, "err", err)
			continue
		}
		room.OnInput(Input{PlayerID: playerID, Msg: msg})
	}
}

func newUpgrader(origins []string) *websocket.Upgrader {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || allowed[origin]
		},
	}
}

// HandleWS WebSocket 接入：/ws?room=room-1
// 玩家 ID 由房间的权威 Model 分配，客户端不能指定
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = s.cfg.DefaultRoom
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}

	room := s.rooms.GetOrCreateRoom(roomID)
	client := NewClientConn(ws, s.cfg.SendQueueSize)
	go client.writePump()

	playerID, err := room.Join(r.Context(), client)
	if err != nil {
		Log.Warnw("join failed", "conn", client.ID, "room", roomID, "err", err)
		client.Close()
		return
	}
	Log.Infow("client connected", "conn", client.ID, "room", roomID, "player", playerID, "remote", r.RemoteAddr)
	go client.readPump(room, playerID)
}
