// 本文件用于 HTTP 服务可用性探测
package collectors

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"home-pulse/internal/alert"
	"home-pulse/internal/models"
)

const defaultServiceTimeout = 5 * time.Second

// ServiceCollector 探测配置中的 HTTP 服务
type ServiceCollector struct {
	targets []models.ServiceTarget
	client  *http.Client
}

// NewServiceCollector 创建服务探测采集器
func NewServiceCollector(cfg *models.Config) *ServiceCollector {
	return &ServiceCollector{
		targets: cfg.Services,
		// 超时在每次请求上单独控制 客户端超时兜底
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *ServiceCollector) Name() string {
	return "services"
}

// Collect 逐个服务探测 探测彼此独立
func (c *ServiceCollector) Collect(ctx context.Context) ([]alert.Sample, error) {
	samples := make([]alert.Sample, 0, len(c.targets))
	for _, target := range c.targets {
		samples = append(samples, c.probe(ctx, target))
	}
	return samples, nil
}

func (c *ServiceCollector) probe(ctx context.Context, target models.ServiceTarget) alert.Sample {
	timeout := defaultServiceTimeout
	if target.TimeoutSeconds > 0 {
		timeout = time.Duration(target.TimeoutSeconds) * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target.URL, nil)
	if err != nil {
		sample := alert.NewSample(alert.CategoryService, target.Name, alert.StatusFail)
		sample.ValueText = fmt.Sprintf("无效 URL: %v", err)
		return sample
	}
	resp, err := c.client.Do(req)
	if err != nil {
		sample := alert.NewSample(alert.CategoryService, target.Name, alert.StatusFail)
		sample.ValueText = fmt.Sprintf("请求失败: %v", err)
		return sample
	}
	defer resp.Body.Close()
	elapsed := time.Since(started)

	status := alert.StatusOK
	if target.ExpectStatus > 0 {
		if resp.StatusCode != target.ExpectStatus {
			status = alert.StatusFail
		}
	} else if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		status = alert.StatusFail
	}

	latencyMs := float64(elapsed.Milliseconds())
	sample := alert.NewSample(alert.CategoryService, target.Name, status)
	sample.ValueNum = &latencyMs
	sample.ValueText = fmt.Sprintf("HTTP %d %.0fms", resp.StatusCode, latencyMs)
	sample.Details = map[string]interface{}{
		"状态码": resp.StatusCode,
		"耗时":  fmt.Sprintf("%.0fms", latencyMs),
	}
	return sample
}
