package model

const (
	Speed        float32 = 2.0
	Acceleration float32 = 2.0
	MaxOxygen    float32 = 10.0

	// 原点附近的补氧区半径及补氧/耗氧速率（每秒）
	RefillRadius float32 = 1.0
	RefillRate   float32 = 10.0
	DrainRate    float32 = 1.0
)

// Player 玩家的物理与资源状态
// TargetVelocity 为玩家输入的期望方向，尚未体现在 Velocity 上
type Player struct {
	ID             ID      `json:"id"`
	Oxygen         float32 `json:"oxygen"`
	Position       Vec2    `json:"position"`
	Velocity       Vec2    `json:"velocity"`
	TargetVelocity Vec2    `json:"target_velocity"`
}

// NewPlayer 签发新 ID 并以出生点默认值初始化
func NewPlayer(gen *IDGen) Player {
	p := Player{ID: gen.Generate()}
	p.Reset()
	return p
}

// Reset 恢复到出生点默认值（死亡重生同样走这里）
func (p *Player) Reset() {
	p.Oxygen = MaxOxygen
	p.Position = Vec2{}
	p.Velocity = Vec2{}
	p.TargetVelocity = Vec2{}
}

// Update 固定步长积分，客户端预测与服务端共用，结果只取决于输入与 dt
func (p *Player) Update(dt float32) {
	if p.Position.Len() < RefillRadius {
		p.Oxygen += RefillRate * dt
		if p.Oxygen > MaxOxygen {
			p.Oxygen = MaxOxygen
		}
	} else {
		// 允许降到 0 以下：Tick 的死亡判定依赖于此
		p.Oxygen -= DrainRate * dt
	}
	diff := p.TargetVelocity.Scale(Speed).Sub(p.Velocity)
	p.Velocity = p.Velocity.Add(diff.ClampLen(Acceleration * dt))
	p.Position = p.Position.Add(p.Velocity.Scale(dt))
}

// Dead 氧气耗尽
func (p *Player) Dead() bool { return p.Oxygen < 0 }
