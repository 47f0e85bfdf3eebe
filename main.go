package main

import "oxyrun/cmd"

// oxyrun 入口：serve 启动权威服务端，play 运行无头客户端（联网或离线）
func main() {
	cmd.Execute()
}
