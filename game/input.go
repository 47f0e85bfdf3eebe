package game

import "oxyrun/model"

// Input 方向键状态
type Input struct {
	Left, Right, Up, Down bool
}

// TargetVelocity 每个轴取 {-1,0,+1}，对角线不归一化
func (in Input) TargetVelocity() model.Vec2 {
	var v model.Vec2
	if in.Left {
		v.X--
	}
	if in.Right {
		v.X++
	}
	if in.Up {
		v.Y++
	}
	if in.Down {
		v.Y--
	}
	return v
}

// InputSource 每帧提供一次输入
type InputSource interface {
	Next(dt float64) Input
}

// InputFunc 函数适配为 InputSource
type InputFunc func(dt float64) Input

func (f InputFunc) Next(dt float64) Input { return f(dt) }

// BotInput 无头客户端的脚本输入：依次向右、上、左、下各走 Leg 秒，然后停 Rest 秒
type BotInput struct {
	Leg  float64
	Rest float64
	t    float64
}

func (b *BotInput) Next(dt float64) Input {
	leg := b.Leg
	if leg <= 0 {
		leg = 1
	}
	cycle := 4*leg + b.Rest
	b.t += dt
	for b.t >= cycle {
		b.t -= cycle
	}
	switch int(b.t / leg) {
	case 0:
		return Input{Right: true}
	case 1:
		return Input{Up: true}
	case 2:
		return Input{Left: true}
	case 3:
		return Input{Down: true}
	default:
		return Input{}
	}
}
