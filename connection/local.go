package connection

import (
	"go.uber.org/zap"

	"oxyrun/model"
)

// DefaultMaxCatchUpTicks 单次 Poll 最多补跑的 Tick 数（20 TPS 下约 5 秒）
const DefaultMaxCatchUpTicks = 100

// Local 离线模式：持有权威 Model，按固定 Tick 推进，与渲染帧率无关
type Local struct {
	model      *model.Model
	nextTick   float64
	maxCatchUp int
	pending    []model.ServerMessage
	closed     bool
	log        *zap.Logger
}

type LocalOption func(*Local)

// WithMaxCatchUpTicks 补跑上限，<= 0 表示不限制
func WithMaxCatchUpTicks(n int) LocalOption {
	return func(l *Local) { l.maxCatchUp = n }
}

func WithLocalLogger(log *zap.Logger) LocalOption {
	return func(l *Local) { l.log = log }
}

// WithNextTick 距离下一次 Tick 的秒数
func WithNextTick(sec float64) LocalOption {
	return func(l *Local) { l.nextTick = sec }
}

func NewLocal(m *model.Model, opts ...LocalOption) *Local {
	l := &Local{
		model:      m,
		maxCatchUp: DefaultMaxCatchUpTicks,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Welcome 在内嵌世界中生成本地玩家；PlayerJoined 在下一次 Poll 时返回
func (l *Local) Welcome() model.WelcomeMessage {
	w, events := l.model.Welcome()
	l.pending = append(l.pending, model.Update{Events: events})
	return w
}

// Model 内嵌的权威世界（仅供调试与测试读取）
func (l *Local) Model() *model.Model { return l.model }

// NextTick 距离下一次 Tick 的剩余秒数
func (l *Local) NextTick() float64 { return l.nextTick }

// Submit 同步应用客户端消息，结果批次排入待返回队列
func (l *Local) Submit(msg model.ClientMessage) error {
	if l.closed {
		return ErrClosed
	}
	// 离线模式下只有一个玩家，消息来源即提交事件的主体
	var from model.ID
	if msg.Event != nil {
		from = msg.Event.Subject()
	}
	l.pending = append(l.pending, model.Update{Events: l.model.HandleMessage(from, msg)})
	return nil
}

// Poll 扣减倒计时，倒计时 <= 0 时循环执行 Tick 并补足周期
// 超过补跑上限时丢弃剩余积压，把倒计时重置为一个周期
func (l *Local) Poll(elapsed float64) ([]model.ServerMessage, error) {
	if l.closed {
		return nil, ErrClosed
	}
	out := l.pending
	l.pending = nil

	period := l.model.TickPeriod()
	l.nextTick -= elapsed
	ticks := 0
	for l.nextTick <= 0 {
		if l.maxCatchUp > 0 && ticks >= l.maxCatchUp {
			l.log.Warn("tick catch-up capped, rebasing",
				zap.Int("ticks", ticks),
				zap.Float64("behind_seconds", -l.nextTick))
			l.nextTick = period
			break
		}
		out = append(out, model.Update{Events: l.model.Tick()})
		l.nextTick += period
		ticks++
	}
	return out, nil
}

func (l *Local) Close() error {
	l.closed = true
	l.pending = nil
	return nil
}
