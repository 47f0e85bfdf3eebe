package model

import "sort"

// DefaultTicksPerSecond 权威模拟的默认 Tick 频率
const DefaultTicksPerSecond = 20.0

// Model 权威世界状态：ID 生成器、Tick 频率、玩家表
// 不变式：Players 的键等于对应值的 ID；idGen 计数 ≥ 已签发的最大 ID
type Model struct {
	idGen          IDGen
	TicksPerSecond float64
	Players        map[ID]Player
}

// New 创建空世界
func New() *Model {
	return &Model{
		TicksPerSecond: DefaultTicksPerSecond,
		Players:        make(map[ID]Player),
	}
}

// Clone 深拷贝（用作欢迎快照，与原世界不共享 map）
func (m *Model) Clone() *Model {
	c := &Model{
		idGen:          m.idGen,
		TicksPerSecond: m.TicksPerSecond,
		Players:        make(map[ID]Player, len(m.Players)),
	}
	for id, p := range m.Players {
		c.Players[id] = p
	}
	return c
}

// NextID 生成器下一个待签发的值
func (m *Model) NextID() uint64 { return m.idGen.NextID }

// TickPeriod 一个 Tick 的时长（秒）
func (m *Model) TickPeriod() float64 { return 1.0 / m.TicksPerSecond }

// SortedIDs 按 ID 升序返回玩家列表，保证遍历顺序确定
func (m *Model) SortedIDs() []ID {
	ids := make([]ID, 0, len(m.Players))
	for id := range m.Players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *Model) spawnPlayer() (ID, []Event) {
	p := NewPlayer(&m.idGen)
	m.Players[p.ID] = p
	return p.ID, []Event{PlayerJoined{Player: p}}
}

// Welcome 生成新玩家，返回欢迎消息（完整快照）以及需要广播给其他玩家的 PlayerJoined
func (m *Model) Welcome() (WelcomeMessage, []Event) {
	id, events := m.spawnPlayer()
	return WelcomeMessage{PlayerID: id, Model: m.Clone()}, events
}

// DropPlayer 玩家断开连接
func (m *Model) DropPlayer(id ID) []Event {
	delete(m.Players, id)
	return []Event{PlayerLeft{ID: id}}
}

// HandleMessage 应用客户端消息携带的事件，并原样回显以便广播
// 服务端信任客户端对自身移动的上报，权威仅限于 ID 签发、死亡重生与进出记录
func (m *Model) HandleMessage(playerID ID, msg ClientMessage) []Event {
	var events []Event
	if msg.Event == nil {
		return events
	}
	m.handleImpl(msg.Event, &events)
	return events
}

// Tick 执行死亡/重生规则：氧气为负的玩家原地重置并产生 PlayerDied
// 位置与氧气的推进不在这里，由各端逐帧调用 Player.Update
func (m *Model) Tick() []Event {
	var events []Event
	for _, id := range m.SortedIDs() {
		p := m.Players[id]
		if !p.Dead() {
			continue
		}
		p.Reset()
		m.Players[id] = p
		events = append(events, PlayerDied{Player: p})
	}
	return events
}

// Handle 纯状态迁移，各副本按事件顺序应用即可最终一致
func (m *Model) Handle(e Event) {
	m.handleImpl(e, nil)
}

// handleImpl 应用事件；out 非空时把已应用的事件追加进去
func (m *Model) handleImpl(e Event, out *[]Event) {
	switch e := e.(type) {
	case PlayerJoined:
		m.Players[e.Player.ID] = e.Player
	case PlayerUpdated:
		m.Players[e.Player.ID] = e.Player
	case PlayerLeft:
		delete(m.Players, e.ID)
	case PlayerDied:
		// 只接收事件流的副本从不调用 Tick，这里必须写入重生后的值
		m.Players[e.Player.ID] = e.Player
	}
	if out != nil {
		*out = append(*out, e)
	}
}
