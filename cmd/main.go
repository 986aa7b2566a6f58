// 本文件用于程序启动入口
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"home-pulse/internal/alert"
	"home-pulse/internal/api"
	"home-pulse/internal/archive"
	"home-pulse/internal/collectors"
	"home-pulse/internal/config"
	"home-pulse/internal/discord"
	"home-pulse/internal/logger"
	"home-pulse/internal/models"
	"home-pulse/internal/scheduler"
	"home-pulse/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("程序退出: %v", err)
	}
}

func run() error {
	configPath := parseFlags()
	log.Printf("程序启动，配置文件: %s", configPath)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	if err := logger.InitLogger(cfg); err != nil {
		return err
	}
	defer logger.Close()

	logConfig(cfg)

	eventStore, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("初始化存储失败: %v", err)
		return err
	}
	defer eventStore.Close()

	webhook := discord.NewWebhook(cfg.DiscordWebhook)
	maintenance := alert.NewMaintenancePolicy(cfg)
	sleep := alert.NewSleepSchedule(cfg)

	engine := alert.NewEngine(eventStore, webhook, alert.Options{
		Enabled:     cfg.AlertsOn(),
		GraceChecks: cfg.GraceChecks,
		Cooldown:    time.Duration(cfg.AlertCooldownMinutes) * time.Minute,
		Maintenance: maintenance,
		Sleep:       sleep,
	})
	summarizer := alert.NewSummarizer(cfg, eventStore, webhook, maintenance, sleep)

	sched := scheduler.New(cfg, engine, summarizer, eventStore)
	registerCollectors(cfg, sched)

	if cfg.OSSEnabled {
		exporter, err := archive.NewExporter(cfg, eventStore)
		if err != nil {
			logger.Error("初始化 OSS 归档失败: %v", err)
			return err
		}
		sched.SetArchiver(exporter)
	}

	apiServer := api.NewServer(cfg, eventStore, engine, sched)
	engine.SetOnConfirmed(apiServer.Hub().Publish)
	apiServer.Start()

	sched.Start()

	// 配置热加载只覆盖抑制策略相关字段 采集目标与存储仍需重启
	watcherCtx, cancelWatcher := context.WithCancel(context.Background())
	defer cancelWatcher()
	cfgWatcher, err := config.NewWatcher(configPath, func(newCfg *models.Config) {
		engine.UpdatePolicies(
			alert.NewMaintenancePolicy(newCfg),
			alert.NewSleepSchedule(newCfg),
			time.Duration(newCfg.AlertCooldownMinutes)*time.Minute,
			newCfg.AlertsOn(),
		)
		summarizer.UpdatePolicies(alert.NewMaintenancePolicy(newCfg))
	})
	if err != nil {
		logger.Warn("配置热加载不可用: %v", err)
	} else {
		go cfgWatcher.Run(watcherCtx)
	}

	waitForShutdown(sched, apiServer)
	return nil
}

func parseFlags() string {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.Parse()
	return configPath
}

// registerCollectors 按配置装配采集器
func registerCollectors(cfg *models.Config, sched *scheduler.Scheduler) {
	sched.Register(collectors.NewSystemCollector(cfg))
	if len(cfg.Disks) > 0 {
		sched.Register(collectors.NewDiskCollector(cfg))
	}
	if len(cfg.Services) > 0 {
		sched.Register(collectors.NewServiceCollector(cfg))
	}
	if len(cfg.Apps) > 0 {
		sched.Register(collectors.NewAppCollector(cfg))
	}
	if cfg.DockerEnabled {
		sched.Register(collectors.NewDockerCollector(cfg))
	}
	if cfg.SmartEnabled {
		sched.RegisterSmart(collectors.NewSmartCollector())
	}
	if cfg.RaidEnabled {
		sched.RegisterRaid(collectors.NewRaidCollector(cfg.MdstatPath))
	}
}

func logConfig(cfg *models.Config) {
	logger.Info("配置加载成功")
	logger.Info("基础采集周期: %d 秒", cfg.PollInterval)
	logger.Info("状态确认次数: %d", cfg.GraceChecks)
	logger.Info("通知冷却: %d 分钟", cfg.AlertCooldownMinutes)
	logger.Info("告警开关: %v", cfg.AlertsOn())
	if strings.TrimSpace(cfg.DiscordWebhook) == "" {
		logger.Warn("Discord webhook 未配置，告警只落库不通知")
	}
	if cfg.SleepScheduleEnabled {
		logger.Info("睡眠时段: %s-%s 摘要时间 %s", cfg.SleepScheduleStart, cfg.SleepScheduleEnd, cfg.SleepSummaryTime)
		logger.Info("关键告警豁免睡眠抑制: %v", cfg.SleepAllowCriticalAlerts)
	}
	if strings.TrimSpace(cfg.GlobalMaintenanceWindow) != "" {
		logger.Info("全局维护窗口: %s", cfg.GlobalMaintenanceWindow)
	}
	logger.Info("数据库路径: %s", cfg.DatabasePath)
	logger.Info("样本保留天数: %d", cfg.RetentionDays())
	logger.Info("Docker 采集: %v", cfg.DockerEnabled)
	logger.Info("SMART 采集: %v", cfg.SmartEnabled)
	logger.Info("RAID 采集: %v", cfg.RaidEnabled)
	logger.Info("OSS 归档: %v", cfg.OSSEnabled)
	logger.Info("日志级别: %s", cfg.LogLevel)
	if cfg.LogFile != "" {
		logger.Info("日志文件: %s", cfg.LogFile)
	}
}

func waitForShutdown(sched *scheduler.Scheduler, apiServer *api.Server) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	<-signalChan
	logger.Info("收到退出信号，正在关闭服务...")

	sched.Stop()
	if apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			logger.Warn("关闭 API 服务失败: %v", err)
		}
	}

	logger.Info("程序已退出")
	os.Exit(0)
}
