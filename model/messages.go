package model

// ClientMessage 客户端上行消息
type ClientMessage struct {
	Event Event
}

// ServerMessage 权威方下行消息：Update 或 WelcomeMessage
type ServerMessage interface {
	isServerMessage()
}

// Update 一批有序事件
type Update struct {
	Events []Event
}

// WelcomeMessage 连接建立时发送一次，包含玩家 ID 与完整世界快照
type WelcomeMessage struct {
	PlayerID ID
	Model    *Model
}

func (Update) isServerMessage()         {}
func (WelcomeMessage) isServerMessage() {}
