package model

import "math"

// Vec2 二维向量（float32，客户端预测与服务端使用同一精度）
type Vec2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(k float32) Vec2 { return Vec2{v.X * k, v.Y * k} }

// Len 向量长度
func (v Vec2) Len() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y)))
}

// ClampLen 将向量长度限制在 limit 以内，方向不变
func (v Vec2) ClampLen(limit float32) Vec2 {
	l := v.Len()
	if l <= limit || l == 0 {
		return v
	}
	return v.Scale(limit / l)
}
