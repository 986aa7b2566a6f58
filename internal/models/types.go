// 本文件用于定义配置与业务模型
package models

// Config 配置结构体
type Config struct {
	PollInterval             int    `yaml:"poll_interval"`       // 基础采集周期（秒）
	SmartPollInterval        int    `yaml:"smart_poll_interval"` // SMART 采集周期（秒）
	RaidPollInterval         int    `yaml:"raid_poll_interval"`  // RAID 采集周期（秒）
	GraceChecks              int    `yaml:"grace_checks"`        // 状态变更确认所需的连续次数
	AlertCooldownMinutes     int    `yaml:"alert_cooldown_minutes"`
	AlertsEnabled            *bool  `yaml:"alerts_enabled"`
	DiscordWebhook           string `yaml:"discord_webhook"`
	SleepScheduleEnabled     bool   `yaml:"sleep_schedule_enabled"`
	SleepScheduleStart       string `yaml:"sleep_schedule_start"` // HH:MM 含起点
	SleepScheduleEnd         string `yaml:"sleep_schedule_end"`   // HH:MM 不含终点
	SleepSummaryEnabled      *bool  `yaml:"sleep_summary_enabled"`
	SleepSummaryTime         string `yaml:"sleep_summary_time"`
	SleepAllowCriticalAlerts bool   `yaml:"sleep_allow_critical_alerts"`
	GlobalMaintenanceWindow  string `yaml:"global_maintenance_window"` // HH:MM-HH:MM
	GlobalMaintenanceDays    string `yaml:"global_maintenance_days"`   // 0=周一 6=周日

	MaintenanceWindows map[string]MaintenanceEntry `yaml:"maintenance_windows"` // 按服务名覆盖

	Services []ServiceTarget `yaml:"services"`
	Disks    []DiskTarget    `yaml:"disks"`
	Apps     []AppTarget     `yaml:"apps"`

	CPUWarnPercent float64 `yaml:"cpu_warn_percent"`
	CPUFailPercent float64 `yaml:"cpu_fail_percent"`
	MemWarnPercent float64 `yaml:"mem_warn_percent"`
	MemFailPercent float64 `yaml:"mem_fail_percent"`

	DockerEnabled bool   `yaml:"docker_enabled"`
	DockerSocket  string `yaml:"docker_socket"`
	SmartEnabled  bool   `yaml:"smart_enabled"`
	RaidEnabled   bool   `yaml:"raid_enabled"`
	MdstatPath    string `yaml:"mdstat_path"`

	DatabasePath         string `yaml:"database_path"`
	MetricsRetentionDays *int   `yaml:"metrics_retention_days"`

	OSSEnabled  bool   `yaml:"oss_enabled"` // 事件历史归档开关
	OSSEndpoint string `yaml:"oss_endpoint"`
	OSSBucket   string `yaml:"oss_bucket"`
	OSSAK       string `yaml:"oss_ak"`
	OSSSK       string `yaml:"oss_sk"`
	OSSPrefix   string `yaml:"oss_prefix"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	APIBind  string `yaml:"api_bind"` // API 服务监听地址
}

// MaintenanceEntry 表示单个服务的维护窗口配置
type MaintenanceEntry struct {
	Window string `yaml:"window"` // HH:MM-HH:MM 支持跨午夜
	Days   string `yaml:"days"`   // 逗号分隔 0=周一 留空表示每天
}

// ServiceTarget 表示被监控的 HTTP 服务
type ServiceTarget struct {
	Name           string `yaml:"name"`
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	ExpectStatus   int    `yaml:"expect_status"` // 为 0 时接受任意 2xx
}

// DiskTarget 表示被监控的挂载点
type DiskTarget struct {
	Path        string  `yaml:"path"`
	WarnFreeGB  float64 `yaml:"warn_free_gb"`
	FailFreeGB  float64 `yaml:"fail_free_gb"`
	WarnUsedPct float64 `yaml:"warn_used_pct"`
}

// AppTarget 表示第三方应用 API 探测目标
type AppTarget struct {
	Name           string `yaml:"name"`
	Type           string `yaml:"type"` // pihole / qbittorrent
	URL            string `yaml:"url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AlertsOn 返回告警总开关 未配置时默认开启
func (c *Config) AlertsOn() bool {
	return c.AlertsEnabled == nil || *c.AlertsEnabled
}

// SummaryOn 返回晨间摘要开关 未配置时默认开启
func (c *Config) SummaryOn() bool {
	return c.SleepSummaryEnabled == nil || *c.SleepSummaryEnabled
}

// RetentionDays 返回采样数据保留天数 未配置时默认 30 天
func (c *Config) RetentionDays() int {
	if c.MetricsRetentionDays == nil {
		return 30
	}
	return *c.MetricsRetentionDays
}
