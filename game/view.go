package game

import "oxyrun/model"

// PlayerView 每个玩家的显示用簿记（步态动画相位），渲染层读取
type PlayerView struct {
	Position      model.Vec2
	Oxygen        float32
	StepAnimation float32
}

func (v *PlayerView) Update(p model.Player, dt float32) {
	v.Position = p.Position
	v.Oxygen = p.Oxygen
	v.StepAnimation += p.Velocity.Len() * dt
}
