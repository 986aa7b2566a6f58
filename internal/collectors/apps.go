// 本文件用于第三方应用 API 探测 支持 Pi-hole 与 qBittorrent
package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"home-pulse/internal/alert"
	"home-pulse/internal/models"
)

const defaultAppTimeout = 5 * time.Second

// AppCollector 探测配置中的应用 API
type AppCollector struct {
	targets []models.AppTarget
	client  *http.Client
}

// NewAppCollector 创建应用探测采集器
func NewAppCollector(cfg *models.Config) *AppCollector {
	return &AppCollector{
		targets: cfg.Apps,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *AppCollector) Name() string {
	return "apps"
}

// Collect 逐个应用探测
func (c *AppCollector) Collect(ctx context.Context) ([]alert.Sample, error) {
	samples := make([]alert.Sample, 0, len(c.targets))
	for _, target := range c.targets {
		samples = append(samples, c.probe(ctx, target))
	}
	return samples, nil
}

func (c *AppCollector) probe(ctx context.Context, target models.AppTarget) alert.Sample {
	timeout := defaultAppTimeout
	if target.TimeoutSeconds > 0 {
		timeout = time.Duration(target.TimeoutSeconds) * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch strings.ToLower(strings.TrimSpace(target.Type)) {
	case "pihole":
		return c.probePihole(reqCtx, target)
	case "qbittorrent":
		return c.probeQbittorrent(reqCtx, target)
	default:
		sample := alert.NewSample(alert.CategoryApp, target.Name, alert.StatusFail)
		sample.ValueText = fmt.Sprintf("未知应用类型: %s", target.Type)
		return sample
	}
}

// probePihole 查询 Pi-hole summary 接口 过滤未启用判 WARN
func (c *AppCollector) probePihole(ctx context.Context, target models.AppTarget) alert.Sample {
	url := strings.TrimRight(target.URL, "/") + "/admin/api.php?summaryRaw"
	if target.Token != "" {
		url += "&auth=" + target.Token
	}
	var body struct {
		Status       string `json:"status"`
		AdsBlocked   int64  `json:"ads_blocked_today"`
		QueriesToday int64  `json:"dns_queries_today"`
	}
	if err := c.getJSON(ctx, url, &body); err != nil {
		sample := alert.NewSample(alert.CategoryApp, target.Name, alert.StatusFail)
		sample.ValueText = fmt.Sprintf("请求失败: %v", err)
		return sample
	}

	status := alert.StatusOK
	if body.Status != "enabled" {
		status = alert.StatusWarn
	}
	sample := alert.NewSample(alert.CategoryApp, target.Name, status)
	sample.ValueText = body.Status
	sample.Details = map[string]interface{}{
		"过滤状态": body.Status,
		"今日拦截": body.AdsBlocked,
		"今日查询": body.QueriesToday,
	}
	return sample
}

// probeQbittorrent 查询 qBittorrent 版本接口 可达即判 OK
func (c *AppCollector) probeQbittorrent(ctx context.Context, target models.AppTarget) alert.Sample {
	url := strings.TrimRight(target.URL, "/") + "/api/v2/app/version"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		sample := alert.NewSample(alert.CategoryApp, target.Name, alert.StatusFail)
		sample.ValueText = fmt.Sprintf("无效 URL: %v", err)
		return sample
	}
	resp, err := c.client.Do(req)
	if err != nil {
		sample := alert.NewSample(alert.CategoryApp, target.Name, alert.StatusFail)
		sample.ValueText = fmt.Sprintf("请求失败: %v", err)
		return sample
	}
	defer resp.Body.Close()

	// 未登录返回 403 说明进程活着 判 OK
	status := alert.StatusOK
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusForbidden {
		status = alert.StatusFail
	}
	sample := alert.NewSample(alert.CategoryApp, target.Name, status)
	sample.ValueText = fmt.Sprintf("HTTP %d", resp.StatusCode)
	return sample
}

func (c *AppCollector) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("状态码异常: %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
