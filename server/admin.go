package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"oxyrun/config"
)

// Server HTTP 入口：WebSocket 接入、健康检查、指标与房间管理接口
type Server struct {
	cfg      config.ServerConfig
	rooms    *RoomManager
	upgrader *websocket.Upgrader
}

func New(cfg config.ServerConfig, rooms *RoomManager) *Server {
	return &Server{
		cfg:      cfg,
		rooms:    rooms,
		upgrader: newUpgrader(cfg.Origins()),
	}
}

func (s *Server) Rooms() *RoomManager { return s.rooms }

// Router 组装路由
//
//	GET  /ws?room=room-1        WebSocket 接入
//	GET  /healthz               健康检查
//	GET  /metrics               Prometheus 指标
//	GET  /admin/rooms/{room}    房间状态与计数
//	POST /admin/rooms/{room}    更新房间配置，例如 {"ticksPerSecond":30}
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Origins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/ws", s.HandleWS)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/admin/rooms/{room}", s.HandleRoomStatus)
	r.Post("/admin/rooms/{room}", s.HandleRoomConfig)
	return r
}

// HandleRoomStatus 输出房间状态；房间不存在返回 404
func (s *Server) HandleRoomStatus(w http.ResponseWriter, r *http.Request) {
	room, ok := s.rooms.GetRoom(chi.URLParam(r, "room"))
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	st, err := room.Status()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleRoomConfig 以 JSON 载荷更新部分字段
func (s *Server) HandleRoomConfig(w http.ResponseWriter, r *http.Request) {
	room, ok := s.rooms.GetRoom(chi.URLParam(r, "room"))
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	var body struct {
		TicksPerSecond *float64 `json:"ticksPerSecond,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if body.TicksPerSecond != nil {
		if err := room.SetTicksPerSecond(*body.TicksPerSecond); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
