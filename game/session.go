package game

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"oxyrun/connection"
	"oxyrun/model"
)

// ErrNotWelcomed 会话不在活跃状态
var ErrNotWelcomed = errors.New("game: session not welcomed")

// State 会话状态机：Connecting → Welcomed → {Disconnected, LocalShutdown}
type State int

const (
	Connecting State = iota
	Welcomed
	Disconnected
	LocalShutdown
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Welcomed:
		return "welcomed"
	case Disconnected:
		return "disconnected"
	case LocalShutdown:
		return "local_shutdown"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stats 会话运行计数
type Stats struct {
	Frames      int64
	Batches     int64
	Events      int64
	Sent        int64
	Corrections int64
}

// Session 客户端调和循环：本地预测 + 权威事件合并
// 单线程逐帧驱动，世界副本只由 Update 修改
type Session struct {
	conn  connection.Connection
	local bool

	world  *model.Model
	player model.Player
	views  map[model.ID]*PlayerView
	toSend []model.ClientMessage

	state State
	stats Stats
	log   *zap.Logger
}

type Option func(*Session)

func WithLogger(log *zap.Logger) Option {
	return func(s *Session) { s.log = log }
}

func NewSession(conn connection.Connection, opts ...Option) *Session {
	_, local := conn.(*connection.Local)
	s := &Session{
		conn:  conn,
		local: local,
		views: make(map[model.ID]*PlayerView),
		state: Connecting,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Welcome 用欢迎消息引导世界副本与本地玩家
// prev 非空时沿用之前的玩家状态，只换成新分配的 ID（重连场景）
func (s *Session) Welcome(w model.WelcomeMessage, prev *model.Player) error {
	if s.state != Connecting {
		return fmt.Errorf("welcome in state %s: %w", s.state, connection.ErrProtocolViolation)
	}
	if w.Model == nil {
		return fmt.Errorf("welcome without snapshot: %w", connection.ErrProtocolViolation)
	}
	self, ok := w.Model.Players[w.PlayerID]
	if !ok && prev == nil {
		return fmt.Errorf("welcome snapshot lacks player %d: %w", w.PlayerID, connection.ErrProtocolViolation)
	}
	if prev != nil {
		self = *prev
		self.ID = w.PlayerID
	}
	s.world = w.Model
	s.player = self
	s.state = Welcomed
	s.log = s.log.With(zap.Uint64("player_id", uint64(self.ID)))
	s.log.Info("session welcomed", zap.Int("players", len(s.world.Players)), zap.Bool("local", s.local))
	return nil
}

func (s *Session) State() State         { return s.state }
func (s *Session) Stats() Stats         { return s.stats }
func (s *Session) Player() model.Player { return s.player }
func (s *Session) World() *model.Model  { return s.world }

// View 玩家的显示簿记；本地玩家的视图来自预测对象而不是世界副本
func (s *Session) View(id model.ID) (PlayerView, bool) {
	v, ok := s.views[id]
	if !ok {
		return PlayerView{}, false
	}
	return *v, true
}

// Update 处理一帧：拉取权威消息并应用 → 推进本地预测 → 必要时上报自身状态 → 发送 → 更新显示簿记
func (s *Session) Update(dt float64, in Input) error {
	if s.state != Welcomed {
		return ErrNotWelcomed
	}
	s.stats.Frames++

	msgs, err := s.conn.Poll(dt)
	if err != nil {
		return s.fail(err)
	}
	if err := s.applyAll(msgs); err != nil {
		return s.fail(err)
	}

	delta := float32(dt)
	s.player.TargetVelocity = in.TargetVelocity()
	s.player.Update(delta)
	// 远端玩家用同一积分器外推，直到下一次权威更新
	for id, p := range s.world.Players {
		if id == s.player.ID {
			continue
		}
		p.Update(delta)
		s.world.Players[id] = p
	}

	// 每收到一轮权威消息上报一次，而不是每帧
	if len(msgs) > 0 {
		s.toSend = append(s.toSend, model.ClientMessage{Event: model.PlayerUpdated{Player: s.player}})
	}
	if err := s.flush(); err != nil {
		return s.fail(err)
	}
	// 离线模式下提交的回显在本帧内取回应用，不参与下一帧的上报判断
	if s.local {
		echoes, err := s.conn.Poll(0)
		if err != nil {
			return s.fail(err)
		}
		if err := s.applyAll(echoes); err != nil {
			return s.fail(err)
		}
	}

	s.updateViews(delta)
	return nil
}

func (s *Session) applyAll(msgs []model.ServerMessage) error {
	for _, msg := range msgs {
		up, ok := msg.(model.Update)
		if !ok {
			return fmt.Errorf("unexpected %T mid-session: %w", msg, connection.ErrProtocolViolation)
		}
		s.apply(up)
	}
	return nil
}

func (s *Session) apply(up model.Update) {
	s.stats.Batches++
	for _, e := range up.Events {
		s.stats.Events++
		// 唯一的强制纠正：本地玩家死亡时用权威载荷覆盖预测对象
		if died, ok := e.(model.PlayerDied); ok && died.Player.ID == s.player.ID {
			s.player = died.Player
			s.stats.Corrections++
			s.log.Info("player died, prediction overwritten")
		}
		s.world.Handle(e)
	}
}

func (s *Session) flush() error {
	pending := s.toSend
	s.toSend = nil
	for _, msg := range pending {
		if err := s.conn.Submit(msg); err != nil {
			return err
		}
		s.stats.Sent++
	}
	return nil
}

func (s *Session) updateViews(dt float32) {
	for id, p := range s.world.Players {
		if id == s.player.ID {
			continue
		}
		v, ok := s.views[id]
		if !ok {
			v = &PlayerView{}
			s.views[id] = v
		}
		v.Update(p, dt)
	}
	self, ok := s.views[s.player.ID]
	if !ok {
		self = &PlayerView{}
		s.views[s.player.ID] = self
	}
	self.Update(s.player, dt)

	for id := range s.views {
		if id == s.player.ID {
			continue
		}
		if _, ok := s.world.Players[id]; !ok {
			delete(s.views, id)
		}
	}
}

func (s *Session) fail(err error) error {
	s.log.Error("session failed", zap.Error(err))
	_ = s.conn.Close()
	s.state = Disconnected
	return err
}

// Disconnect 结束会话：远程连接先发送 PlayerLeft 告别（不等待确认），再关闭连接
// 调用方应通过 defer 保证会话结束时一定执行；重复调用无副作用
func (s *Session) Disconnect() error {
	switch s.state {
	case Disconnected, LocalShutdown:
		return nil
	case Welcomed:
		if !s.local {
			if err := s.conn.Submit(model.ClientMessage{Event: model.PlayerLeft{ID: s.player.ID}}); err != nil {
				s.log.Warn("goodbye not sent", zap.Error(err))
			}
		}
	}
	err := s.conn.Close()
	if s.local {
		s.state = LocalShutdown
	} else {
		s.state = Disconnected
	}
	s.log.Info("session ended", zap.Stringer("state", s.state))
	return err
}
