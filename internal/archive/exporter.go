// 本文件用于事件历史的 OSS 归档导出
// 每日清理前把前一天的事件导出为 JSON 对象 长期留存不占用本地库
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sdk "github.com/aliyun/aliyun-oss-go-sdk/oss"

	"home-pulse/internal/alert"
	"home-pulse/internal/logger"
	"home-pulse/internal/models"
)

// EventSource 表示归档所需的事件查询能力
type EventSource interface {
	EventsBetween(ctx context.Context, from, to time.Time) ([]alert.Event, error)
}

// Exporter 把事件历史归档到 OSS
type Exporter struct {
	bucket *sdk.Bucket
	prefix string
	source EventSource
}

// NewExporter 创建归档导出器
func NewExporter(cfg *models.Config, source EventSource) (*Exporter, error) {
	logger.Info("初始化 OSS 归档客户端...")
	endpoint, err := normalizeEndpoint(cfg.OSSEndpoint)
	if err != nil {
		return nil, err
	}
	ossClient, err := sdk.New(endpoint, cfg.OSSAK, cfg.OSSSK)
	if err != nil {
		return nil, fmt.Errorf("创建 OSS 客户端失败: %w", err)
	}
	bucket, err := ossClient.Bucket(cfg.OSSBucket)
	if err != nil {
		return nil, fmt.Errorf("获取 OSS Bucket 失败: %w", err)
	}
	logger.Info("OSS 归档客户端初始化成功")
	return &Exporter{
		bucket: bucket,
		prefix: strings.Trim(strings.TrimSpace(cfg.OSSPrefix), "/"),
		source: source,
	}, nil
}

// ExportDay 导出指定日期的事件 无事件时跳过上传
func (e *Exporter) ExportDay(ctx context.Context, day time.Time) error {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()).UTC()
	to := from.Add(24 * time.Hour)

	events, err := e.source.EventsBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("查询归档事件失败: %w", err)
	}
	if len(events) == 0 {
		logger.Debug("当日无事件 跳过归档: %s", day.Format("2006-01-02"))
		return nil
	}

	payload, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化归档事件失败: %w", err)
	}
	objectKey := e.buildObjectKey(day)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.bucket.PutObject(
		objectKey,
		bytes.NewReader(payload),
		sdk.ContentType("application/json"),
	); err != nil {
		return fmt.Errorf("上传归档对象失败: %w", err)
	}
	logger.Info("事件归档完成: %s 共 %d 条", objectKey, len(events))
	return nil
}

// buildObjectKey 对象按年/月分目录 events/2026/08/2026-08-27.json
func (e *Exporter) buildObjectKey(day time.Time) string {
	key := fmt.Sprintf("events/%s/%s.json", day.Format("2006/01"), day.Format("2006-01-02"))
	if e.prefix != "" {
		return e.prefix + "/" + key
	}
	return key
}

// normalizeEndpoint 补全协议头 默认走 HTTPS
func normalizeEndpoint(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("OSS endpoint 为空")
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed, nil
	}
	return "https://" + trimmed, nil
}
