package model

// Event 世界状态变化的复制词汇：原子、可重放的增量
// 封闭的和类型，只有本包内的四种实现
type Event interface {
	// Subject 事件作用的玩家
	Subject() ID
	isEvent()
}

// PlayerJoined 新玩家加入
type PlayerJoined struct {
	Player Player
}

// PlayerUpdated 玩家状态更新（客户端上报的预测结果）
type PlayerUpdated struct {
	Player Player
}

// PlayerLeft 玩家离开
type PlayerLeft struct {
	ID ID
}

// PlayerDied 玩家死亡，Player 已经是重生后的值
type PlayerDied struct {
	Player Player
}

func (e PlayerJoined) Subject() ID  { return e.Player.ID }
func (e PlayerUpdated) Subject() ID { return e.Player.ID }
func (e PlayerLeft) Subject() ID    { return e.ID }
func (e PlayerDied) Subject() ID    { return e.Player.ID }

func (PlayerJoined) isEvent()  {}
func (PlayerUpdated) isEvent() {}
func (PlayerLeft) isEvent()    {}
func (PlayerDied) isEvent()    {}
