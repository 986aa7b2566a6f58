package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v2"

	"home-pulse/internal/logger"
	"home-pulse/internal/models"
)

// 轮询周期下限，防止把被监控对象打爆
const (
	minPollInterval      = 10
	minSmartPollInterval = 60
	minRaidPollInterval  = 60
)

// LoadConfig 加载配置文件
func LoadConfig(configFile string) (*models.Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}

	var config models.Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	applyDefaults(&config)
	return &config, nil
}

// applyDefaults 设置默认值并钳制非法区间
func applyDefaults(config *models.Config) {
	if config.PollInterval <= 0 {
		config.PollInterval = 60
	}
	if config.PollInterval < minPollInterval {
		logger.Warn("poll_interval 过小(%ds)，按最小值 %ds 处理", config.PollInterval, minPollInterval)
		config.PollInterval = minPollInterval
	}
	if config.SmartPollInterval <= 0 {
		config.SmartPollInterval = 600
	}
	if config.SmartPollInterval < minSmartPollInterval {
		logger.Warn("smart_poll_interval 过小(%ds)，按最小值 %ds 处理", config.SmartPollInterval, minSmartPollInterval)
		config.SmartPollInterval = minSmartPollInterval
	}
	if config.RaidPollInterval <= 0 {
		config.RaidPollInterval = 120
	}
	if config.RaidPollInterval < minRaidPollInterval {
		logger.Warn("raid_poll_interval 过小(%ds)，按最小值 %ds 处理", config.RaidPollInterval, minRaidPollInterval)
		config.RaidPollInterval = minRaidPollInterval
	}
	if config.GraceChecks <= 0 {
		config.GraceChecks = 3
	}
	if config.AlertCooldownMinutes <= 0 {
		config.AlertCooldownMinutes = 30
	}
	if config.CPUWarnPercent <= 0 {
		config.CPUWarnPercent = 80
	}
	if config.CPUFailPercent <= 0 {
		config.CPUFailPercent = 95
	}
	if config.MemWarnPercent <= 0 {
		config.MemWarnPercent = 85
	}
	if config.MemFailPercent <= 0 {
		config.MemFailPercent = 95
	}
	if config.DockerSocket == "" {
		config.DockerSocket = "/var/run/docker.sock"
	}
	if config.MdstatPath == "" {
		config.MdstatPath = "/proc/mdstat"
	}
	if config.DatabasePath == "" {
		config.DatabasePath = "data/homepulse.db"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.APIBind == "" {
		config.APIBind = ":8093"
	}
	if config.SleepSummaryTime == "" {
		// 摘要时间缺省跟随睡眠结束时间
		config.SleepSummaryTime = config.SleepScheduleEnd
	}
}

// ValidateConfig 验证配置
func ValidateConfig(config *models.Config) error {
	if config.DatabasePath == "" {
		return fmt.Errorf("数据库路径不能为空")
	}
	for _, svc := range config.Services {
		if svc.Name == "" {
			return fmt.Errorf("服务名不能为空")
		}
		if _, err := url.ParseRequestURI(svc.URL); err != nil {
			return fmt.Errorf("服务 %s 的 URL 无效: %v", svc.Name, err)
		}
	}
	for _, app := range config.Apps {
		if app.Name == "" || app.Type == "" {
			return fmt.Errorf("应用探测配置缺少 name 或 type")
		}
		if _, err := url.ParseRequestURI(app.URL); err != nil {
			return fmt.Errorf("应用 %s 的 URL 无效: %v", app.Name, err)
		}
	}
	if config.OSSEnabled {
		if config.OSSBucket == "" {
			return fmt.Errorf("OSS Bucket不能为空")
		}
		if config.OSSAK == "" || config.OSSSK == "" {
			return fmt.Errorf("OSS认证信息不能为空")
		}
		if config.OSSEndpoint == "" {
			return fmt.Errorf("OSS Endpoint不能为空")
		}
	}
	if config.SleepScheduleEnabled {
		if config.SleepScheduleStart == "" || config.SleepScheduleEnd == "" {
			return fmt.Errorf("睡眠时段已启用但未配置起止时间")
		}
	}
	return nil
}
