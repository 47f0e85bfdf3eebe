package protocol

import "encoding/json"

// 信封类型
const (
	MsgEvent   = "event"
	MsgUpdate  = "update"
	MsgWelcome = "welcome"
)

// 事件类型
const (
	EvPlayerJoined  = "player_joined"
	EvPlayerUpdated = "player_updated"
	EvPlayerLeft    = "player_left"
	EvPlayerDied    = "player_died"
)

// Envelope 所有线上消息的外层：类型 + 原始载荷
type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"`
}

type welcomePayload struct {
	PlayerID uint64          `json:"player_id"`
	Model    json.RawMessage `json:"model"`
}

type leftPayload struct {
	ID uint64 `json:"id"`
}
