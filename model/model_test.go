package model

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDGenStrictlyIncreasing(t *testing.T) {
	var g IDGen
	prev := g.Generate()
	seen := map[ID]bool{prev: true}
	for i := 0; i < 1000; i++ {
		id := g.Generate()
		require.Greater(t, id, prev)
		require.False(t, seen[id])
		seen[id] = true
		prev = id
	}
	assert.Len(t, seen, 1001)
}

func TestPlayerOxygenDrainsOutsideRefillZone(t *testing.T) {
	var g IDGen
	p := NewPlayer(&g)
	p.Position = Vec2{X: 3, Y: 0}
	prev := p.Oxygen
	for i := 0; i < 210; i++ {
		p.Update(0.05)
		assert.Less(t, p.Oxygen, prev)
		prev = p.Oxygen
	}
	// 10.5s 之后应当耗尽
	assert.True(t, p.Dead())
}

func TestPlayerOxygenRefillsInsideZone(t *testing.T) {
	var g IDGen
	p := NewPlayer(&g)
	p.Oxygen = 1
	p.Position = Vec2{X: 0.5, Y: 0.2}
	prev := p.Oxygen
	for p.Oxygen < MaxOxygen {
		p.Update(0.01)
		assert.Greater(t, p.Oxygen, prev)
		prev = p.Oxygen
	}
	p.Update(1)
	assert.Equal(t, MaxOxygen, p.Oxygen)
}

func TestPlayerVelocityChangeBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var g IDGen
	p := NewPlayer(&g)
	for i := 0; i < 500; i++ {
		p.TargetVelocity = Vec2{X: float32(rng.Intn(3) - 1), Y: float32(rng.Intn(3) - 1)}
		dt := float32(rng.Float64() * 0.1)
		before := p.Velocity
		p.Update(dt)
		change := p.Velocity.Sub(before).Len()
		assert.LessOrEqual(t, change, Acceleration*dt+1e-5)
	}
}

func TestPlayerApproachesTargetSpeed(t *testing.T) {
	var g IDGen
	p := NewPlayer(&g)
	p.TargetVelocity = Vec2{X: 1}
	for i := 0; i < 100; i++ {
		p.Update(0.05)
	}
	assert.InDelta(t, float64(Speed), float64(p.Velocity.X), 1e-5)
	assert.InDelta(t, 0, float64(p.Velocity.Y), 1e-6)
}

func TestPlayerUpdateDeterministic(t *testing.T) {
	var g IDGen
	a := NewPlayer(&g)
	a.TargetVelocity = Vec2{X: 1, Y: -1}
	b := a
	for i := 0; i < 50; i++ {
		a.Update(1.0 / 60)
		b.Update(1.0 / 60)
	}
	assert.Equal(t, a, b)
}

func TestWelcomeAndTickDeath(t *testing.T) {
	m := New()
	w0, ev0 := m.Welcome()
	w1, ev1 := m.Welcome()

	assert.Equal(t, ID(0), w0.PlayerID)
	assert.Equal(t, ID(1), w1.PlayerID)
	require.Len(t, ev0, 1)
	require.Len(t, ev1, 1)
	assert.Equal(t, PlayerJoined{Player: m.Players[1]}, ev1[0])
	for _, id := range []ID{0, 1} {
		assert.Equal(t, Vec2{}, m.Players[id].Position)
		assert.Equal(t, MaxOxygen, m.Players[id].Oxygen)
	}
	// 快照与权威世界不共享状态
	assert.Len(t, w0.Model.Players, 1)
	assert.Len(t, w1.Model.Players, 2)

	assert.Empty(t, m.Tick())

	p := m.Players[0]
	p.Oxygen = -0.1
	p.Position = Vec2{X: 4, Y: 4}
	m.Players[0] = p

	events := m.Tick()
	require.Len(t, events, 1)
	died, ok := events[0].(PlayerDied)
	require.True(t, ok)
	assert.Equal(t, ID(0), died.Player.ID)
	assert.Equal(t, MaxOxygen, died.Player.Oxygen)
	assert.Equal(t, Vec2{}, died.Player.Position)
	assert.Equal(t, died.Player, m.Players[0])
}

func TestTickManyDeathsInIDOrder(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		_, _ = m.Welcome()
	}
	for id, p := range m.Players {
		p.Oxygen = -1
		m.Players[id] = p
	}
	events := m.Tick()
	require.Len(t, events, 5)
	for i, e := range events {
		assert.Equal(t, ID(i), e.Subject())
	}
}

func TestJoinThenLeave(t *testing.T) {
	m := New()
	var g IDGen
	p := NewPlayer(&g)
	m.Handle(PlayerJoined{Player: p})
	assert.Contains(t, m.Players, p.ID)
	m.Handle(PlayerLeft{ID: p.ID})
	assert.NotContains(t, m.Players, p.ID)

	// 对不存在的 ID 再次离开是空操作
	m.Handle(PlayerLeft{ID: p.ID})
	m.Handle(PlayerLeft{ID: 42})
	assert.Empty(t, m.Players)
}

func TestDropPlayer(t *testing.T) {
	m := New()
	w, _ := m.Welcome()
	events := m.DropPlayer(w.PlayerID)
	assert.Equal(t, []Event{PlayerLeft{ID: w.PlayerID}}, events)
	assert.Empty(t, m.Players)
	// 已签发的 ID 不会被复用
	w2, _ := m.Welcome()
	assert.Greater(t, w2.PlayerID, w.PlayerID)
}

func TestHandleMessageEchoesEvent(t *testing.T) {
	m := New()
	w, _ := m.Welcome()
	self := w.Model.Players[w.PlayerID]
	self.Position = Vec2{X: 2.5, Y: -1}
	self.TargetVelocity = Vec2{X: 1}

	msg := ClientMessage{Event: PlayerUpdated{Player: self}}
	events := m.HandleMessage(w.PlayerID, msg)
	assert.Equal(t, []Event{PlayerUpdated{Player: self}}, events)
	assert.Equal(t, Vec2{X: 2.5, Y: -1}, m.Players[w.PlayerID].Position)

	assert.Empty(t, m.HandleMessage(w.PlayerID, ClientMessage{}))
}

func TestHandleImplCollectsAppliedEvents(t *testing.T) {
	m := New()
	id, _ := m.spawnPlayer()

	var out []Event
	m.handleImpl(PlayerLeft{ID: id}, &out)
	assert.Equal(t, []Event{PlayerLeft{ID: id}}, out)
	assert.NotContains(t, m.Players, id)

	// Handle 只迁移状态，不收集事件
	p := Player{ID: id, Oxygen: MaxOxygen}
	m.Handle(PlayerJoined{Player: p})
	assert.Equal(t, p, m.Players[id])
	assert.Len(t, out, 1)
}

func TestReplicasConverge(t *testing.T) {
	authority := New()
	w, _ := authority.Welcome()
	a := w.Model.Clone()
	b := w.Model.Clone()

	var log []Event
	_, joined := authority.Welcome()
	log = append(log, joined...)

	moved := authority.Players[1]
	moved.Position = Vec2{X: 9}
	moved.Oxygen = -0.5
	log = append(log, authority.HandleMessage(1, ClientMessage{Event: PlayerUpdated{Player: moved}})...)
	log = append(log, authority.Tick()...)
	log = append(log, authority.DropPlayer(0)...)

	for _, e := range log {
		a.Handle(e)
	}
	for _, e := range log {
		b.Handle(e)
	}
	assert.Equal(t, a.Players, b.Players)
	assert.Equal(t, authority.Players, a.Players)
}

// 只接收事件流的副本在 PlayerDied 之后得到重生后的状态
func TestPlayerDiedUpsertsOnReplica(t *testing.T) {
	authority := New()
	w, _ := authority.Welcome()
	replica := w.Model.Clone()

	dying := authority.Players[w.PlayerID]
	dying.Oxygen = -0.1
	dying.Position = Vec2{X: 5}
	replica.Handle(PlayerUpdated{Player: dying})
	authority.Handle(PlayerUpdated{Player: dying})

	for _, e := range authority.Tick() {
		replica.Handle(e)
	}
	assert.Equal(t, MaxOxygen, replica.Players[w.PlayerID].Oxygen)
	assert.Equal(t, Vec2{}, replica.Players[w.PlayerID].Position)
}

// 顺序错乱时过期的 PlayerDied 会覆盖更新的状态，传输层必须保证单连接有序
func TestStalePlayerDiedOverwritesNewerState(t *testing.T) {
	m := New()
	w, _ := m.Welcome()
	newer := m.Players[w.PlayerID]
	newer.Position = Vec2{X: 3}
	m.Handle(PlayerUpdated{Player: newer})

	var respawned Player
	respawned.ID = w.PlayerID
	respawned.Reset()
	m.Handle(PlayerDied{Player: respawned})
	assert.Equal(t, Vec2{}, m.Players[w.PlayerID].Position)
}

func TestCloneIsDeep(t *testing.T) {
	m := New()
	_, _ = m.Welcome()
	c := m.Clone()
	_, _ = m.Welcome()
	assert.Len(t, c.Players, 1)
	assert.Equal(t, uint64(1), c.NextID())
	assert.Equal(t, uint64(2), m.NextID())
}
