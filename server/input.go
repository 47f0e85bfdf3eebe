package server

import "oxyrun/model"

// Input 客户端上行消息，进入房间 Tick 线程处理
type Input struct {
	PlayerID model.ID
	Msg      model.ClientMessage
}

// joinRequest 新连接加入，Reply 返回分配的玩家 ID
type joinRequest struct {
	Conn  Conn
	Reply chan<- model.ID
}

// RoomStatus 房间状态快照（管理接口）
type RoomStatus struct {
	Room           string         `json:"room"`
	Tick           int64          `json:"tick"`
	TicksPerSecond float64        `json:"ticksPerSecond"`
	Players        []model.Player `json:"players"`
	Metrics        map[string]any `json:"metrics"`
}
