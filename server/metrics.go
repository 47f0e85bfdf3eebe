package server

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 进程级 Prometheus 指标，标签只用房间名与固定的原因枚举
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "oxyrun_tick_duration_seconds",
		Help:    "Time spent in one authoritative tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
	})

	playerCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "oxyrun_players",
		Help: "Players currently in a room",
	}, []string{"room"})

	eventsBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oxyrun_events_broadcast_total",
		Help: "Events broadcast to clients",
	}, []string{"kind"})

	deathsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oxyrun_deaths_total",
		Help: "Players that ran out of oxygen and respawned",
	}, []string{"room"})

	messagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oxyrun_messages_dropped_total",
		Help: "Client or server messages dropped",
	}, []string{"reason"}) // rate_limit, inbox_full, send_full, decode
)

// RoomMetrics 房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount         int64 // Tick 次数
	MessagesAccepted  int64 // 被接受的客户端消息
	RateLimited       int64 // 因限流被拒绝的消息
	ChanFullDiscarded int64 // 因通道满被丢弃的消息
	SendDropped       int64 // 下行队列满被丢弃的消息
	Joins             int64
	Leaves            int64
	Deaths            int64
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
}

func (m *RoomMetrics) IncAccepted() { atomic.AddInt64(&m.MessagesAccepted, 1) }
func (m *RoomMetrics) IncRateLimited() {
	atomic.AddInt64(&m.RateLimited, 1)
	messagesDropped.WithLabelValues("rate_limit").Inc()
}
func (m *RoomMetrics) IncChanFullDiscarded() {
	atomic.AddInt64(&m.ChanFullDiscarded, 1)
	messagesDropped.WithLabelValues("inbox_full").Inc()
}
func (m *RoomMetrics) IncSendDropped() {
	atomic.AddInt64(&m.SendDropped, 1)
	messagesDropped.WithLabelValues("send_full").Inc()
}
func (m *RoomMetrics) IncJoins()  { atomic.AddInt64(&m.Joins, 1) }
func (m *RoomMetrics) IncLeaves() { atomic.AddInt64(&m.Leaves, 1) }
func (m *RoomMetrics) AddDeaths(room string, n int) {
	atomic.AddInt64(&m.Deaths, int64(n))
	deathsTotal.WithLabelValues(room).Add(float64(n))
}
func (m *RoomMetrics) AddTick(d time.Duration) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, d.Nanoseconds())
	tickDuration.Observe(d.Seconds())
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":          tick,
		"messages_accepted":   atomic.LoadInt64(&m.MessagesAccepted),
		"rate_limited":        atomic.LoadInt64(&m.RateLimited),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"send_dropped":        atomic.LoadInt64(&m.SendDropped),
		"joins":               atomic.LoadInt64(&m.Joins),
		"leaves":              atomic.LoadInt64(&m.Leaves),
		"deaths":              atomic.LoadInt64(&m.Deaths),
		"avg_tick_ms":         avgMs,
	}
}
