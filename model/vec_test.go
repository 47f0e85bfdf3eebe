package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec2ClampLen(t *testing.T) {
	tests := []struct {
		name string
		in   Vec2
		max  float32
		want float32
	}{
		{"Short", Vec2{X: 0.3, Y: 0.4}, 1, 0.5},
		{"Long", Vec2{X: 3, Y: 4}, 1, 1},
		{"Zero", Vec2{}, 1, 0},
		{"ZeroMax", Vec2{X: 1}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, float64(tt.want), float64(tt.in.ClampLen(tt.max).Len()), 1e-6)
		})
	}
}
