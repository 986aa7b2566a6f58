// 本文件用于配置文件热加载
// 只允许抑制策略相关字段在运行期变更 其余字段仍需重启生效
package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"home-pulse/internal/logger"
	"home-pulse/internal/models"
)

// 编辑器保存往往触发多个事件，合并一小段时间内的抖动
const reloadDebounce = 500 * time.Millisecond

// Watcher 监听配置文件变化并回调新配置
type Watcher struct {
	configPath string
	onReload   func(*models.Config)
	watcher    *fsnotify.Watcher
}

// NewWatcher 创建配置热加载监听器
func NewWatcher(configPath string, onReload func(*models.Config)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// 监听目录而不是文件本身 部分编辑器通过 rename 覆盖写入
	if err := fsWatcher.Add(filepath.Dir(configPath)); err != nil {
		fsWatcher.Close()
		return nil, err
	}
	return &Watcher{
		configPath: configPath,
		onReload:   onReload,
		watcher:    fsWatcher,
	}, nil
}

// Run 启动监听循环 直到 ctx 取消
func (w *Watcher) Run(ctx context.Context) {
	if w == nil {
		return
	}
	defer w.watcher.Close()

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerCh = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("配置监听出错: %v", err)
		case <-timerCh:
			timer = nil
			timerCh = nil
			w.reload()
		}
	}
}

// reload 用于重新加载配置 失败时保留旧配置
func (w *Watcher) reload() {
	cfg, err := LoadConfig(w.configPath)
	if err != nil {
		logger.Error("配置热加载失败，沿用旧配置: %v", err)
		return
	}
	if err := ValidateConfig(cfg); err != nil {
		logger.Error("配置热加载校验失败，沿用旧配置: %v", err)
		return
	}
	logger.Info("配置热加载成功: %s", w.configPath)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
