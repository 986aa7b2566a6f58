package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"home-pulse/internal/alert"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, got %d", want, hub.ClientCount())
}

// 确认事件应广播到所有已连接的客户端
func TestHubBroadcastFanOut(t *testing.T) {
	hub := NewHub()
	hub.Start()
	defer hub.Stop()

	first := dialHub(t, hub)
	second := dialHub(t, hub)
	waitForClients(t, hub, 2)

	hub.Publish(alert.Event{
		Key:        "service_plex",
		Category:   alert.CategoryService,
		Name:       "Plex",
		PrevStatus: alert.StatusOK,
		NewStatus:  alert.StatusFail,
		OccurredAt: time.Now().UTC(),
	})

	for _, conn := range []*websocket.Conn{first, second} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got alert.Event
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("read broadcast event failed: %v", err)
		}
		if got.Key != "service_plex" {
			t.Errorf("expected key service_plex, got %s", got.Key)
		}
		if got.NewStatus != alert.StatusFail {
			t.Errorf("expected new status FAIL, got %s", got.NewStatus)
		}
	}
}

// 客户端断开后应从连接表中移除
func TestHubRemovesDisconnectedClient(t *testing.T) {
	hub := NewHub()
	hub.Start()
	defer hub.Stop()

	conn := dialHub(t, hub)
	waitForClients(t, hub, 1)

	_ = conn.Close()
	waitForClients(t, hub, 0)
}

// 广播通道满时 Publish 不应阻塞
func TestHubPublishDoesNotBlockWhenFull(t *testing.T) {
	hub := NewHub()
	// 不启动广播循环 直接灌满缓冲

	done := make(chan struct{})
	go func() {
		for i := 0; i < hubBroadcastBuffer+10; i++ {
			hub.Publish(alert.Event{Key: "docker_jellyfin"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full broadcast channel")
	}
}
