package server

import (
	"golang.org/x/time/rate"

	"oxyrun/model"
)

// Conn 房间向客户端发送数据的抽象（ClientConn 或测试替身）
type Conn interface {
	// Enqueue 非阻塞发送，队列满返回 false
	Enqueue(b []byte) bool
	Close()
}

// Member 房间内的一个连接及其玩家
type Member struct {
	PlayerID model.ID
	Conn     Conn
	limiter  *rate.Limiter
}

func newMember(id model.ID, conn Conn, perSecond float64, burst int) *Member {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Member{PlayerID: id, Conn: conn, limiter: rate.NewLimiter(limit, burst)}
}
