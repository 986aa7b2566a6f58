package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"home-pulse/internal/alert"
	"home-pulse/internal/logger"
	"home-pulse/internal/metrics"
	"home-pulse/internal/models"
	"home-pulse/internal/scheduler"
	"home-pulse/internal/store"
)

// Server wraps the HTTP API server.
type Server struct {
	httpServer *http.Server
	hub        *Hub
}

type handler struct {
	cfg       *models.Config
	store     *store.Store
	engine    *alert.Engine
	scheduler *scheduler.Scheduler
	hub       *Hub
	startedAt time.Time
}

// NewServer builds the HTTP server for console/API consumption.
func NewServer(cfg *models.Config, st *store.Store, engine *alert.Engine, sched *scheduler.Scheduler) *Server {
	hub := NewHub()
	h := &handler{
		cfg:       cfg,
		store:     st,
		engine:    engine,
		scheduler: sched,
		hub:       hub,
		startedAt: time.Now(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", h.health)
	mux.HandleFunc("/api/status", h.status)
	mux.HandleFunc("/api/events", h.events)
	mux.HandleFunc("/api/pending", h.pending)
	mux.HandleFunc("/api/trigger", h.trigger)
	mux.HandleFunc("/api/ws", hub.HandleWS)
	mux.HandleFunc("/metrics", h.metrics)

	srv := &http.Server{
		Addr:         cfg.APIBind,
		Handler:      withCORS(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return &Server{httpServer: srv, hub: hub}
}

// Hub 返回事件推送中心 供引擎回调接入
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start boots the API server asynchronously.
func (s *Server) Start() {
	s.hub.Start()
	go func() {
		logger.Info("API 服务监听 %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API 服务异常退出: %v", err)
		}
	}()
}

// Shutdown gracefully stops the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.hub.Stop()
	return s.httpServer.Shutdown(ctx)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"uptime":  time.Since(h.startedAt).String(),
		"alerts":  h.cfg.AlertsOn(),
		"clients": h.hub.ClientCount(),
	})
}

// status 返回全部检查项的当前状态快照
func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	snapshots, err := h.store.ServiceStatuses(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

// events 返回最近的已确认事件 limit 默认 50
func (h *handler) events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	events, err := h.store.LatestEvents(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// pending 返回宽限期内的待确认变更 用于排障
func (h *handler) pending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Grace().Pending())
}

// trigger 手动触发一轮采集 与定时周期互斥
func (h *handler) trigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	go h.scheduler.RunCycle(context.Background())
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (h *handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	_, _ = w.Write([]byte(metrics.Global().RenderPrometheus()))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
