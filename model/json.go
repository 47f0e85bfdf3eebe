package model

import "encoding/json"

type modelJSON struct {
	IDGen          IDGen         `json:"id_gen"`
	TicksPerSecond float64       `json:"ticks_per_second"`
	Players        map[ID]Player `json:"players"`
}

// MarshalJSON 快照包含 ID 生成器计数，便于客户端校验不变式
func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(modelJSON{
		IDGen:          m.idGen,
		TicksPerSecond: m.TicksPerSecond,
		Players:        m.Players,
	})
}

func (m *Model) UnmarshalJSON(b []byte) error {
	var w modelJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	m.idGen = w.IDGen
	m.TicksPerSecond = w.TicksPerSecond
	if m.TicksPerSecond <= 0 {
		m.TicksPerSecond = DefaultTicksPerSecond
	}
	m.Players = w.Players
	if m.Players == nil {
		m.Players = make(map[ID]Player)
	}
	return nil
}
