// 本文件用于 Discord 通知测试
package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"home-pulse/internal/alert"
)

func captureServer(t *testing.T, status int) (*httptest.Server, *[]webhookMessage) {
	t.Helper()
	received := &[]webhookMessage{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg webhookMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode webhook payload failed: %v", err)
		}
		*received = append(*received, msg)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, received
}

func TestWebhook_Notify(t *testing.T) {
	server, received := captureServer(t, http.StatusNoContent)
	webhook := NewWebhook(server.URL)

	err := webhook.Notify(context.Background(), alert.NotifyPayload{
		Key:        "service_plex",
		Name:       "Plex",
		Category:   alert.CategoryService,
		PrevStatus: alert.StatusOK,
		NewStatus:  alert.StatusFail,
		Message:    "Plex: OK → FAIL",
		Details:    map[string]interface{}{"状态码": 503},
		Time:       time.Date(2026, 8, 24, 2, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if len(*received) != 1 {
		t.Fatalf("expected 1 webhook call, got %d", len(*received))
	}
	msg := (*received)[0]
	if msg.Username != webhookUsername {
		t.Fatalf("expected username %s, got %s", webhookUsername, msg.Username)
	}
	if len(msg.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(msg.Embeds))
	}
	embed := msg.Embeds[0]
	if embed.Color != 0xFF0000 {
		t.Fatalf("FAIL expected red embed, got %#x", embed.Color)
	}
	if !strings.Contains(embed.Title, "🔴") || !strings.Contains(embed.Title, "Plex") {
		t.Fatalf("unexpected title: %s", embed.Title)
	}
	if len(embed.Fields) != 1 || embed.Fields[0].Name != "状态码" {
		t.Fatalf("expected detail field, got %#v", embed.Fields)
	}
}

func TestWebhook_NotifyServerError(t *testing.T) {
	server, _ := captureServer(t, http.StatusInternalServerError)
	webhook := NewWebhook(server.URL)

	err := webhook.Notify(context.Background(), alert.NotifyPayload{
		Name:      "Plex",
		NewStatus: alert.StatusFail,
	})
	if err == nil {
		t.Fatalf("5xx response expected error")
	}
}

func TestWebhook_EmptyURL(t *testing.T) {
	webhook := NewWebhook("  ")
	if err := webhook.Notify(context.Background(), alert.NotifyPayload{}); err == nil {
		t.Fatalf("empty url expected error")
	}
	if err := webhook.SendDigest(context.Background(), alert.Digest{}); err == nil {
		t.Fatalf("empty url expected error for digest")
	}
}

func TestWebhook_SendDigest(t *testing.T) {
	server, received := captureServer(t, http.StatusNoContent)
	webhook := NewWebhook(server.URL)

	err := webhook.SendDigest(context.Background(), alert.Digest{
		Period:     "23:00-07:00",
		EventCount: 2,
		Lines: []alert.DigestLine{
			{Time: "2:15 AM", Name: "Plex", PrevStatus: alert.StatusOK, NewStatus: alert.StatusFail},
			{Time: "2:45 AM", Name: "Plex", PrevStatus: alert.StatusFail, NewStatus: alert.StatusOK},
		},
		GeneratedAt: time.Date(2026, 8, 24, 7, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("send digest failed: %v", err)
	}
	embed := (*received)[0].Embeds[0]
	if !strings.Contains(embed.Title, "23:00-07:00") {
		t.Fatalf("period expected in title: %s", embed.Title)
	}
	if !strings.Contains(embed.Description, "2:15 AM") || !strings.Contains(embed.Description, "Plex") {
		t.Fatalf("lines expected in description: %s", embed.Description)
	}
	if embed.Color != 0xFFFF00 {
		t.Fatalf("digest without ongoing expected yellow, got %#x", embed.Color)
	}
}

func TestWebhook_DigestQuietNight(t *testing.T) {
	server, received := captureServer(t, http.StatusNoContent)
	webhook := NewWebhook(server.URL)

	err := webhook.SendDigest(context.Background(), alert.Digest{
		Period:      "23:00-07:00",
		QuietNight:  true,
		GeneratedAt: time.Date(2026, 8, 24, 7, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("send digest failed: %v", err)
	}
	embed := (*received)[0].Embeds[0]
	if embed.Color != 0x00FF00 {
		t.Fatalf("quiet night expected green, got %#x", embed.Color)
	}
	if !strings.Contains(embed.Description, "无事件") {
		t.Fatalf("quiet night description expected, got %s", embed.Description)
	}
}

func TestWebhook_DigestOngoingTurnsRed(t *testing.T) {
	server, received := captureServer(t, http.StatusNoContent)
	webhook := NewWebhook(server.URL)

	err := webhook.SendDigest(context.Background(), alert.Digest{
		Period:     "23:00-07:00",
		EventCount: 1,
		Lines: []alert.DigestLine{
			{Time: "3:00 AM", Name: "md0", PrevStatus: alert.StatusOK, NewStatus: alert.StatusFail},
		},
		Ongoing:     []string{"md0: FAIL"},
		GeneratedAt: time.Date(2026, 8, 24, 7, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("send digest failed: %v", err)
	}
	embed := (*received)[0].Embeds[0]
	if embed.Color != 0xFF0000 {
		t.Fatalf("ongoing issues expected red, got %#x", embed.Color)
	}
	if len(embed.Fields) != 1 || !strings.Contains(embed.Fields[0].Value, "md0") {
		t.Fatalf("ongoing field expected, got %#v", embed.Fields)
	}
}

func TestStatusColorAndEmoji(t *testing.T) {
	if statusColor(alert.StatusOK) != 0x00FF00 || statusEmoji(alert.StatusOK) != "🟢" {
		t.Fatalf("unexpected OK rendering")
	}
	if statusColor(alert.StatusWarn) != 0xFFFF00 || statusEmoji(alert.StatusWarn) != "🟡" {
		t.Fatalf("unexpected WARN rendering")
	}
	if statusColor(alert.StatusFail) != 0xFF0000 || statusEmoji(alert.StatusFail) != "🔴" {
		t.Fatalf("unexpected FAIL rendering")
	}
}
