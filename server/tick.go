package server

import "time"

func tickInterval(tps float64) time.Duration {
	return time.Duration(float64(time.Second) / tps)
}

// StartTicker 启动房间的 Tick 循环（单协程推进世界）
func (r *Room) StartTicker() {
	if r.tickerStarted {
		return
	}
	r.tickerStarted = true
	go r.Run()
}

// Run 房间主循环：连接事件随到随处理，Tick 到点时处理积压 → 更新世界 → 广播
func (r *Room) Run() {
	defer close(r.stopped)
	tps := r.model.TicksPerSecond
	ticker := time.NewTicker(tickInterval(tps))
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			r.shutdown()
			return
		case req := <-r.joinChan:
			r.handleJoin(req)
		case id := <-r.leaveChan:
			r.LeavePlayer(id)
		case fn := <-r.ctrlChan:
			fn()
			if r.model.TicksPerSecond != tps {
				tps = r.model.TicksPerSecond
				ticker.Reset(tickInterval(tps))
			}
		case <-ticker.C:
			start := time.Now()
			r.tickSeq++
			r.ProcessInputs()
			r.UpdateWorld()
			r.BroadcastDelta()
			r.metrics.AddTick(time.Since(start))
		}
	}
}

// Stop 停止房间循环并关闭所有连接
func (r *Room) Stop() {
	select {
	case <-r.quit:
	default:
		close(r.quit)
	}
	<-r.stopped
}

func (r *Room) shutdown() {
	for id, mem := range r.members {
		mem.Conn.Close()
		delete(r.members, id)
	}
	playerCount.WithLabelValues(r.ID).Set(0)
	r.log.Info("room stopped")
}
