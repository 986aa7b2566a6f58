// 本文件用于 Docker 容器状态采集
// 通过 unix socket 直接访问 Engine API 不依赖官方 SDK 的庞大依赖树
package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"home-pulse/internal/alert"
	"home-pulse/internal/models"
)

// DockerCollector 列举全部容器 重启中与异常退出的容器判为 FAIL
type DockerCollector struct {
	client *http.Client
}

type dockerContainer struct {
	Names  []string `json:"Names"`
	State  string   `json:"State"`
	Status string   `json:"Status"`
}

// NewDockerCollector 创建容器采集器
func NewDockerCollector(cfg *models.Config) *DockerCollector {
	socket := strings.TrimSpace(cfg.DockerSocket)
	if socket == "" {
		socket = "/var/run/docker.sock"
	}
	return &DockerCollector{
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var dialer net.Dialer
					return dialer.DialContext(ctx, "unix", socket)
				},
			},
		},
	}
}

func (c *DockerCollector) Name() string {
	return "docker"
}

// Collect 列举容器并逐个判级
// 守护进程不可达返回错误 由调度器对 docker 键整体记 FAIL
func (c *DockerCollector) Collect(ctx context.Context) ([]alert.Sample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://docker/containers/json?all=true", nil)
	if err != nil {
		return nil, fmt.Errorf("创建 Docker 请求失败: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("连接 Docker 守护进程失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Docker API 状态码异常: %d", resp.StatusCode)
	}

	var containers []dockerContainer
	if err := json.NewDecoder(resp.Body).Decode(&containers); err != nil {
		return nil, fmt.Errorf("解析容器列表失败: %w", err)
	}

	samples := make([]alert.Sample, 0, len(containers))
	for _, container := range containers {
		samples = append(samples, containerSample(container))
	}
	return samples, nil
}

// containerSample 按容器状态判级
// created 与 paused 属于人为操作 判 WARN 不判 FAIL
func containerSample(container dockerContainer) alert.Sample {
	name := "unknown"
	if len(container.Names) > 0 {
		name = strings.TrimPrefix(container.Names[0], "/")
	}

	status := alert.StatusOK
	switch strings.ToLower(container.State) {
	case "running":
		status = alert.StatusOK
	case "created", "paused":
		status = alert.StatusWarn
	case "restarting":
		status = alert.StatusFail
	case "exited", "dead":
		status = alert.StatusFail
		// 正常停止的容器退出码为 0 判 WARN
		if strings.Contains(container.Status, "(0)") {
			status = alert.StatusWarn
		}
	default:
		status = alert.StatusWarn
	}

	sample := alert.NewSample(alert.CategoryDocker, name, status)
	sample.ValueText = container.Status
	sample.Details = map[string]interface{}{
		"状态": container.State,
		"详情": container.Status,
	}
	return sample
}
