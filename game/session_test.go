package game

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oxyrun/connection"
	"oxyrun/model"
)

// fakeConn 远程连接替身：每次 Poll 弹出一帧预置的消息
type fakeConn struct {
	frames    [][]model.ServerMessage
	submitted []model.ClientMessage
	pollErr   error
	closed    bool
}

func (f *fakeConn) Submit(msg model.ClientMessage) error {
	if f.closed {
		return connection.ErrClosed
	}
	f.submitted = append(f.submitted, msg)
	return nil
}

func (f *fakeConn) Poll(float64) ([]model.ServerMessage, error) {
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if len(f.frames) == 0 {
		return nil, nil
	}
	next := f.frames[0]
	f.frames = f.frames[1:]
	return next, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func welcomedRemote(t *testing.T) (*Session, *fakeConn, *model.Model) {
	t.Helper()
	authority := model.New()
	w, _ := authority.Welcome()
	fc := &fakeConn{}
	s := NewSession(fc)
	require.NoError(t, s.Welcome(w, nil))
	return s, fc, authority
}

func TestUpdateBeforeWelcome(t *testing.T) {
	s := NewSession(&fakeConn{})
	assert.Equal(t, Connecting, s.State())
	assert.ErrorIs(t, s.Update(0.016, Input{}), ErrNotWelcomed)
}

func TestWelcomeKeepsPreviousPlayer(t *testing.T) {
	authority := model.New()
	_, _ = authority.Welcome()
	w, _ := authority.Welcome()

	prev := model.Player{ID: 0, Oxygen: 3, Position: model.Vec2{X: 2}}
	s := NewSession(&fakeConn{})
	require.NoError(t, s.Welcome(w, &prev))
	assert.Equal(t, model.ID(1), s.Player().ID)
	assert.Equal(t, model.Vec2{X: 2}, s.Player().Position)
	assert.Equal(t, float32(3), s.Player().Oxygen)

	assert.ErrorIs(t, s.Welcome(w, nil), connection.ErrProtocolViolation)
}

func TestPredictionAdvancesWithoutTraffic(t *testing.T) {
	s, fc, _ := welcomedRemote(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Update(0.1, Input{Right: true, Up: true}))
	}
	p := s.Player()
	assert.Greater(t, p.Position.X, float32(0))
	assert.Equal(t, p.Position.X, p.Position.Y)
	assert.Equal(t, model.Vec2{X: 1, Y: 1}, p.TargetVelocity)
	// 没有权威消息就不上报
	assert.Empty(t, fc.submitted)
}

func TestReportOncePerFrameWithTraffic(t *testing.T) {
	s, fc, _ := welcomedRemote(t)
	fc.frames = [][]model.ServerMessage{
		{model.Update{}, model.Update{}, model.Update{}},
		nil,
		{model.Update{}},
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Update(0.05, Input{Left: true}))
	}
	require.Len(t, fc.submitted, 2)
	up, ok := fc.submitted[1].Event.(model.PlayerUpdated)
	require.True(t, ok)
	assert.Equal(t, s.Player(), up.Player)
}

func TestOwnDeathOverwritesPrediction(t *testing.T) {
	s, fc, authority := welcomedRemote(t)
	for i := 0; i < 20; i++ {
		require.NoError(t, s.Update(0.1, Input{Right: true}))
	}
	require.NotEqual(t, model.Vec2{}, s.Player().Position)

	respawned := authority.Players[s.Player().ID]
	fc.frames = [][]model.ServerMessage{{model.Update{Events: []model.Event{model.PlayerDied{Player: respawned}}}}}
	require.NoError(t, s.Update(0, Input{}))

	assert.Equal(t, respawned, s.Player())
	assert.Equal(t, respawned, s.World().Players[respawned.ID])
	assert.Equal(t, int64(1), s.Stats().Corrections)
}

func TestOtherDeathLeavesPredictionAlone(t *testing.T) {
	s, fc, authority := welcomedRemote(t)
	_, joined := authority.Welcome()
	other := authority.Players[1]
	other.Position = model.Vec2{X: 8}
	other.Oxygen = -1
	authority.Handle(model.PlayerUpdated{Player: other})
	died := authority.Tick()

	fc.frames = [][]model.ServerMessage{
		{model.Update{Events: joined}},
		{model.Update{Events: []model.Event{model.PlayerUpdated{Player: other}}}},
		{model.Update{Events: died}},
	}
	require.NoError(t, s.Update(0.1, Input{Down: true}))
	require.NoError(t, s.Update(0.1, Input{Down: true}))
	before := s.Player()
	require.NoError(t, s.Update(0, Input{Down: true}))

	assert.Equal(t, before.Position, s.Player().Position)
	assert.Equal(t, model.MaxOxygen, s.World().Players[1].Oxygen)
	assert.Equal(t, model.Vec2{}, s.World().Players[1].Position)
	assert.Zero(t, s.Stats().Corrections)
}

func TestWelcomeMidSessionIsFatal(t *testing.T) {
	s, fc, authority := welcomedRemote(t)
	w, _ := authority.Welcome()
	fc.frames = [][]model.ServerMessage{{w}}

	err := s.Update(0.016, Input{})
	assert.ErrorIs(t, err, connection.ErrProtocolViolation)
	assert.Equal(t, Disconnected, s.State())
	assert.True(t, fc.closed)
	assert.ErrorIs(t, s.Update(0.016, Input{}), ErrNotWelcomed)
}

func TestPollErrorEndsSession(t *testing.T) {
	s, fc, _ := welcomedRemote(t)
	fc.pollErr = errors.New("boom")
	assert.Error(t, s.Update(0.016, Input{}))
	assert.Equal(t, Disconnected, s.State())
}

func TestRemoteDisconnectSendsGoodbye(t *testing.T) {
	s, fc, _ := welcomedRemote(t)
	require.NoError(t, s.Disconnect())
	assert.Equal(t, Disconnected, s.State())
	assert.True(t, fc.closed)
	require.Len(t, fc.submitted, 1)
	assert.Equal(t, model.PlayerLeft{ID: s.Player().ID}, fc.submitted[0].Event)

	require.NoError(t, s.Disconnect())
	assert.Len(t, fc.submitted, 1)
}

func TestLocalSessionEndToEnd(t *testing.T) {
	m := model.New()
	conn := connection.NewLocal(m)
	s := NewSession(conn)
	require.NoError(t, s.Welcome(conn.Welcome(), nil))
	id := s.Player().ID

	for i := 0; i < 60; i++ {
		require.NoError(t, s.Update(1.0/60, Input{Right: true}))
	}
	// 权威世界通过 PlayerUpdated 得到了预测位置
	assert.Greater(t, m.Players[id].Position.X, float32(0))
	// 1 秒 20 个 Tick，每个 Tick 帧上报一次
	assert.InDelta(t, 20, s.Stats().Sent, 1)

	require.NoError(t, s.Disconnect())
	assert.Equal(t, LocalShutdown, s.State())
	// 离线模式不发送告别
	assert.Contains(t, m.Players, id)
}

func TestLocalReportCadenceFollowsTicks(t *testing.T) {
	m := model.New()
	conn := connection.NewLocal(m)
	s := NewSession(conn)
	require.NoError(t, s.Welcome(conn.Welcome(), nil))

	tickFrames := 0
	for i := 0; i < 120; i++ {
		before := conn.NextTick()
		require.NoError(t, s.Update(1.0/60, Input{Right: true}))
		// 倒计时回升说明本帧跑过 Tick
		if conn.NextTick() > before-1.0/60 {
			tickFrames++
		}
	}
	assert.InDelta(t, 40, tickFrames, 1)
	assert.Equal(t, int64(tickFrames), s.Stats().Sent)
	assert.Less(t, s.Stats().Sent, s.Stats().Frames)
}

func TestLocalEchoDoesNotTriggerReport(t *testing.T) {
	m := model.New()
	conn := connection.NewLocal(m)
	s := NewSession(conn)
	require.NoError(t, s.Welcome(conn.Welcome(), nil))

	// 第一帧带 PlayerJoined 与首个 Tick，上报一次
	require.NoError(t, s.Update(0.001, Input{}))
	require.Equal(t, int64(1), s.Stats().Sent)
	// 之后的帧不到一个周期，只有回显的话不再上报
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Update(0.001, Input{}))
	}
	assert.Equal(t, int64(1), s.Stats().Sent)
}

func TestLocalSessionRespawnsAfterSuffocating(t *testing.T) {
	m := model.New()
	conn := connection.NewLocal(m)
	s := NewSession(conn)
	require.NoError(t, s.Welcome(conn.Welcome(), nil))

	died := false
	for i := 0; i < 20*60 && !died; i++ {
		in := Input{}
		if s.Player().Position.X < 3 {
			in.Right = true
		}
		require.NoError(t, s.Update(1.0/20, in))
		died = s.Stats().Corrections > 0
	}
	require.True(t, died)
	assert.LessOrEqual(t, s.Player().Position.Len(), float32(0.5))
}

func TestViewsTrackWorld(t *testing.T) {
	s, fc, authority := welcomedRemote(t)
	_, joined := authority.Welcome()
	fc.frames = [][]model.ServerMessage{
		{model.Update{Events: joined}},
		{model.Update{Events: authority.DropPlayer(1)}},
	}
	require.NoError(t, s.Update(0.016, Input{}))
	_, ok := s.View(1)
	assert.True(t, ok)
	_, ok = s.View(s.Player().ID)
	assert.True(t, ok)

	require.NoError(t, s.Update(0.016, Input{}))
	_, ok = s.View(1)
	assert.False(t, ok)
}
