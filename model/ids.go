package model

// ID 实体的不透明数字句柄，仅由权威方的 IDGen 签发
type ID uint64

// IDGen 单调递增的 ID 生成器
// 只能由当前权威方（服务端或离线模式下的内嵌 Model）持有，不可在副本之间复制
type IDGen struct {
	NextID uint64 `json:"next_id"`
}

// Generate 返回一个严格大于此前所有返回值的 ID
func (g *IDGen) Generate() ID {
	id := ID(g.NextID)
	g.NextID++
	return id
}
