// 本文件用于 WebSocket 事件推送中心
// 确认事件通过广播通道实时推给面板 连接异常直接踢掉 不做重发
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"home-pulse/internal/alert"
	"home-pulse/internal/logger"
)

const (
	hubBroadcastBuffer = 64
	hubWriteTimeout    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 面板与 API 可能不同源 放开来源校验
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub 管理 WebSocket 连接并广播确认事件
type Hub struct {
	mu        sync.Mutex
	clients   map[*websocket.Conn]struct{}
	broadcast chan alert.Event
	stop      chan struct{}
	once      sync.Once
}

// NewHub 创建推送中心
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan alert.Event, hubBroadcastBuffer),
		stop:      make(chan struct{}),
	}
}

// Start 启动广播循环
func (h *Hub) Start() {
	go h.run()
}

// Stop 停止广播并断开全部连接
func (h *Hub) Stop() {
	h.once.Do(func() {
		close(h.stop)
	})
}

// Publish 投递一条确认事件 通道满时丢弃 推送属尽力而为
func (h *Hub) Publish(event alert.Event) {
	select {
	case h.broadcast <- event:
	default:
		logger.Warn("事件推送通道已满 丢弃事件 %s", event.Key)
	}
}

// ClientCount 返回当前连接数
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWS 升级连接并纳入广播
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket 升级失败: %v", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	logger.Debug("WebSocket 连接建立 %s", conn.RemoteAddr())

	// 读循环只为感知断开 收到的内容全部丢弃
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for conn := range h.clients {
				_ = conn.Close()
			}
			h.clients = make(map[*websocket.Conn]struct{})
			h.mu.Unlock()
			return
		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

func (h *Hub) broadcastEvent(event alert.Event) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
		if err := conn.WriteJSON(event); err != nil {
			logger.Debug("WebSocket 写入失败 断开连接: %v", err)
			h.remove(conn)
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		_ = conn.Close()
	}
	h.mu.Unlock()
}
