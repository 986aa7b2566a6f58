package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"home-pulse/internal/alert"
	"home-pulse/internal/logger"
)

const (
	webhookUsername = "home-pulse"
	// 同一周期可能确认多条事件 发送间隔过密会被 Discord 限流
	minSendInterval = 1 * time.Second
)

// Webhook Discord 通知机器人
// 实现 alert.Notifier 与 alert.DigestSender
type Webhook struct {
	mu       sync.Mutex
	url      string
	client   *http.Client
	lastSent time.Time
}

type webhookMessage struct {
	Username string  `json:"username"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// NewWebhook 创建 Discord 通知器
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify 发送单条状态变更通知
func (w *Webhook) Notify(ctx context.Context, payload alert.NotifyPayload) error {
	if w.url == "" {
		return fmt.Errorf("discord webhook 为空")
	}

	msg := webhookMessage{
		Username: webhookUsername,
		Embeds: []embed{
			{
				Title:       fmt.Sprintf("%s %s", statusEmoji(payload.NewStatus), payload.Name),
				Description: payload.Message,
				Color:       statusColor(payload.NewStatus),
				Fields:      buildDetailFields(payload.Details),
				Timestamp:   payload.Time.UTC().Format(time.RFC3339),
			},
		},
	}
	if err := w.post(ctx, msg); err != nil {
		return err
	}
	logger.Info("Discord 通知发送成功: %s", payload.Key)
	return nil
}

// SendDigest 发送晨间摘要
func (w *Webhook) SendDigest(ctx context.Context, digest alert.Digest) error {
	if w.url == "" {
		return fmt.Errorf("discord webhook 为空")
	}

	msg := webhookMessage{
		Username: webhookUsername,
		Embeds:   []embed{buildDigestEmbed(digest)},
	}
	if err := w.post(ctx, msg); err != nil {
		return err
	}
	logger.Info("Discord 晨间摘要发送成功 事件 %d 条", digest.EventCount)
	return nil
}

// buildDigestEmbed 组装摘要消息 安静夜晚发送简短问候
func buildDigestEmbed(digest alert.Digest) embed {
	title := fmt.Sprintf("☀️ 晨间摘要 (%s)", digest.Period)
	if digest.QuietNight {
		return embed{
			Title:       title,
			Description: "夜间无事件 一切正常",
			Color:       statusColor(alert.StatusOK),
			Timestamp:   digest.GeneratedAt.UTC().Format(time.RFC3339),
		}
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("夜间共 %d 条事件", digest.EventCount))
	if digest.ExcludedCount > 0 {
		builder.WriteString(fmt.Sprintf(" 另有 %d 条落在维护窗口内已剔除", digest.ExcludedCount))
	}
	builder.WriteString("\n\n")
	for _, line := range digest.Lines {
		builder.WriteString(fmt.Sprintf("%s `%s` %s: %s → %s\n",
			statusEmoji(line.NewStatus), line.Time, line.Name, line.PrevStatus, line.NewStatus))
	}

	color := statusColor(alert.StatusWarn)
	fields := []embedField(nil)
	if len(digest.Ongoing) > 0 {
		color = statusColor(alert.StatusFail)
		fields = append(fields, embedField{
			Name:  "仍未恢复",
			Value: strings.Join(digest.Ongoing, "\n"),
		})
	}
	return embed{
		Title:       title,
		Description: builder.String(),
		Color:       color,
		Fields:      fields,
		Timestamp:   digest.GeneratedAt.UTC().Format(time.RFC3339),
	}
}

// buildDetailFields 把采集细节展开为消息字段 键排序保证输出稳定
func buildDetailFields(details map[string]interface{}) []embedField {
	if len(details) == 0 {
		return nil
	}
	keys := make([]string, 0, len(details))
	for key := range details {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make([]embedField, 0, len(keys))
	for _, key := range keys {
		fields = append(fields, embedField{
			Name:   key,
			Value:  fmt.Sprintf("%v", details[key]),
			Inline: true,
		})
	}
	return fields
}

func (w *Webhook) post(ctx context.Context, msg webhookMessage) error {
	jsonReq, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化 Discord 消息失败: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// 发送前做最小间隔节流
	if !w.lastSent.IsZero() {
		if wait := minSendInterval - time.Since(w.lastSent); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewBuffer(jsonReq))
	if err != nil {
		return fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer resp.Body.Close()
	w.lastSent = time.Now()

	// Discord 成功返回 204 No Content
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("Discord webhook 状态码异常: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// statusColor 状态与消息颜色的映射
func statusColor(status alert.Status) int {
	switch status {
	case alert.StatusOK:
		return 0x00FF00
	case alert.StatusWarn:
		return 0xFFFF00
	default:
		return 0xFF0000
	}
}

// statusEmoji 状态与表情的映射
func statusEmoji(status alert.Status) string {
	switch status {
	case alert.StatusOK:
		return "🟢"
	case alert.StatusWarn:
		return "🟡"
	default:
		return "🔴"
	}
}
