package game

import (
	"context"
	"time"
)

// Run 以固定帧率驱动会话，直到 ctx 结束或会话出错
// dt 取真实经过的时间，Tick 节奏由连接自己负责
func Run(ctx context.Context, s *Session, src InputSource, fps int) error {
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if err := s.Update(dt, src.Next(dt)); err != nil {
				return err
			}
		}
	}
}
