package server

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"oxyrun/model"
	"oxyrun/protocol"
)

// ErrRoomStopped 房间已停止
var ErrRoomStopped = errors.New("server: room stopped")

// RoomConfig 房间参数
type RoomConfig struct {
	TicksPerSecond    float64
	MessagesPerSecond float64
	MessageBurst      int
}

// Room 房间世界：权威 Model 只在 Run 所在的单个协程中读写
type Room struct {
	ID string

	model   *model.Model
	members map[model.ID]*Member
	pending []model.Event // 已应用、尚未广播的事件

	joinChan  chan joinRequest
	inputChan chan Input
	leaveChan chan model.ID
	ctrlChan  chan func()
	quit      chan struct{}
	stopped   chan struct{}

	cfg     RoomConfig
	tickSeq int64
	metrics *RoomMetrics
	log     *zap.SugaredLogger

	tickerStarted bool
}

// NewRoom 创建房间，初始化数据结构
func NewRoom(id string, cfg RoomConfig) *Room {
	m := model.New()
	if cfg.TicksPerSecond > 0 {
		m.TicksPerSecond = cfg.TicksPerSecond
	}
	return &Room{
		ID:        id,
		model:     m,
		members:   make(map[model.ID]*Member),
		joinChan:  make(chan joinRequest),
		inputChan: make(chan Input, 256), // 足够缓冲，避免网络读阻塞影响 Tick
		leaveChan: make(chan model.ID, 64),
		ctrlChan:  make(chan func()),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
		cfg:       cfg,
		metrics:   &RoomMetrics{},
		log:       Log.With("room", id),
	}
}

// Join 请求加入房间；欢迎消息在返回前已经进入 conn 的发送队列
func (r *Room) Join(ctx context.Context, conn Conn) (model.ID, error) {
	reply := make(chan model.ID, 1)
	select {
	case r.joinChan <- joinRequest{Conn: conn, Reply: reply}:
	case <-r.stopped:
		return 0, ErrRoomStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case id, ok := <-reply:
		if !ok {
			return 0, fmt.Errorf("room %s rejected join", r.ID)
		}
		return id, nil
	case <-r.stopped:
		return 0, ErrRoomStopped
	}
}

// OnInput 入站消息（非阻塞）：通道满则丢弃，保证 Tick 准时
func (r *Room) OnInput(in Input) {
	select {
	case r.inputChan <- in:
	default:
		r.metrics.IncChanFullDiscarded()
	}
}

// RequestLeave 请求在 Tick 线程中移除玩家，避免并发改动房间状态
func (r *Room) RequestLeave(id model.ID) {
	select {
	case r.leaveChan <- id:
	case <-r.stopped:
	}
}

// do 在房间协程中执行 fn 并等待完成
func (r *Room) do(fn func()) error {
	done := make(chan struct{})
	select {
	case r.ctrlChan <- func() { fn(); close(done) }:
	case <-r.stopped:
		return ErrRoomStopped
	}
	<-done
	return nil
}

// Status 房间状态快照
func (r *Room) Status() (RoomStatus, error) {
	var st RoomStatus
	err := r.do(func() {
		st = RoomStatus{
			Room:           r.ID,
			Tick:           r.tickSeq,
			TicksPerSecond: r.model.TicksPerSecond,
			Players:        make([]model.Player, 0, len(r.model.Players)),
			Metrics:        r.metrics.Snapshot(),
		}
		for _, id := range r.model.SortedIDs() {
			st.Players = append(st.Players, r.model.Players[id])
		}
	})
	return st, err
}

// SetTicksPerSecond 热更新 Tick 频率，下一次 Tick 起生效
func (r *Room) SetTicksPerSecond(tps float64) error {
	if tps <= 0 {
		return fmt.Errorf("ticks per second must be > 0, got %v", tps)
	}
	return r.do(func() {
		r.model.TicksPerSecond = tps
		r.log.Infof("config updated: ticksPerSecond=%.2f", tps)
	})
}

func (r *Room) Metrics() *RoomMetrics { return r.metrics }

// handleJoin 先把已应用的事件发给现有成员，再发送欢迎快照，保证新快照与事件流衔接
func (r *Room) handleJoin(req joinRequest) {
	r.flushPending()

	welcome, events := r.model.Welcome()
	b, err := protocol.EncodeServerMessage(welcome)
	if err != nil {
		r.log.Errorf("encode welcome: %v", err)
		r.model.DropPlayer(welcome.PlayerID)
		req.Conn.Close()
		close(req.Reply)
		return
	}
	if !req.Conn.Enqueue(b) {
		r.metrics.IncSendDropped()
	}
	r.broadcast(model.Update{Events: events})

	r.members[welcome.PlayerID] = newMember(welcome.PlayerID, req.Conn, r.cfg.MessagesPerSecond, r.cfg.MessageBurst)
	r.metrics.IncJoins()
	playerCount.WithLabelValues(r.ID).Set(float64(len(r.members)))
	r.log.Infow("player joined", "player", welcome.PlayerID, "players", len(r.members))
	req.Reply <- welcome.PlayerID
}

// LeavePlayer 将玩家移出房间，PlayerLeft 随下一次 Tick 广播
func (r *Room) LeavePlayer(id model.ID) {
	mem, ok := r.members[id]
	if !ok {
		return
	}
	mem.Conn.Close()
	delete(r.members, id)
	r.pending = append(r.pending, r.model.DropPlayer(id)...)
	r.metrics.IncLeaves()
	playerCount.WithLabelValues(r.ID).Set(float64(len(r.members)))
	r.log.Infow("player left", "player", id, "players", len(r.members))
}

// handleInput 应用客户端消息，回显事件进入待广播队列
func (r *Room) handleInput(in Input) {
	mem, ok := r.members[in.PlayerID]
	if !ok {
		return
	}
	if !mem.limiter.Allow() {
		r.metrics.IncRateLimited()
		return
	}
	if in.Msg.Event != nil && in.Msg.Event.Subject() != in.PlayerID {
		r.log.Debugw("event for another player", "from", in.PlayerID, "subject", in.Msg.Event.Subject())
	}
	r.pending = append(r.pending, r.model.HandleMessage(in.PlayerID, in.Msg)...)
	r.metrics.IncAccepted()
}

// ProcessInputs 非阻塞地处理当前积压的离开与消息
func (r *Room) ProcessInputs() {
	for {
		select {
		case id := <-r.leaveChan:
			r.LeavePlayer(id)
		case in := <-r.inputChan:
			r.handleInput(in)
		default:
			return
		}
	}
}

// UpdateWorld 执行死亡/重生规则
func (r *Room) UpdateWorld() {
	died := r.model.Tick()
	if len(died) > 0 {
		r.metrics.AddDeaths(r.ID, len(died))
		r.log.Debugw("players died", "count", len(died))
	}
	r.pending = append(r.pending, died...)
}

// BroadcastDelta 把本 Tick 的事件作为一个 Update 发给所有成员
// 空批次同样发送：客户端以收到的批次作为上报自身状态的节拍
func (r *Room) BroadcastDelta() {
	events := r.pending
	r.pending = nil
	r.broadcast(model.Update{Events: events})
}

func (r *Room) flushPending() {
	if len(r.pending) == 0 {
		return
	}
	r.BroadcastDelta()
}

func (r *Room) broadcast(up model.Update) {
	b, err := protocol.EncodeServerMessage(up)
	if err != nil {
		r.log.Errorf("encode update: %v", err)
		return
	}
	for _, e := range up.Events {
		eventsBroadcast.WithLabelValues(eventKind(e)).Inc()
	}
	for _, mem := range r.members {
		if !mem.Conn.Enqueue(b) {
			r.metrics.IncSendDropped()
		}
	}
}

func eventKind(e model.Event) string {
	switch e.(type) {
	case model.PlayerJoined:
		return protocol.EvPlayerJoined
	case model.PlayerUpdated:
		return protocol.EvPlayerUpdated
	case model.PlayerLeft:
		return protocol.EvPlayerLeft
	case model.PlayerDied:
		return protocol.EvPlayerDied
	default:
		return "unknown"
	}
}
