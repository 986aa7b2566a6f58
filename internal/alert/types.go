// 本文件用于定义告警相关的数据结构
// 文件职责：实现当前模块的核心业务逻辑与数据流转
// 关键路径：入口参数先校验再执行业务处理 最后返回统一结果
// 边界与容错：异常场景显式返回错误 由上层决定重试或降级

package alert

import (
	"fmt"
	"strings"
	"time"
)

// Status 表示检查项状态 具备全序关系 OK < WARN < FAIL
type Status int

const (
	// StatusOK 表示正常
	StatusOK Status = iota
	// StatusWarn 表示告警
	StatusWarn
	// StatusFail 表示故障
	StatusFail
)

// String 输出状态的规范文本
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// WorseThan 判断状态是否比 other 更差
func (s Status) WorseThan(other Status) bool {
	return s > other
}

// ParseStatus 解析状态文本
func ParseStatus(raw string) (Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "OK":
		return StatusOK, true
	case "WARN":
		return StatusWarn, true
	case "FAIL":
		return StatusFail, true
	default:
		return StatusOK, false
	}
}

// Category 表示检查项类别
type Category string

const (
	// CategorySystem 表示系统资源
	CategorySystem Category = "system"
	// CategoryService 表示 HTTP 服务
	CategoryService Category = "service"
	// CategoryDocker 表示容器
	CategoryDocker Category = "docker"
	// CategorySmart 表示 SMART 磁盘健康
	CategorySmart Category = "smart"
	// CategoryRaid 表示 RAID 阵列
	CategoryRaid Category = "raid"
	// CategoryApp 表示第三方应用 API
	CategoryApp Category = "app"
)

// Critical 判断类别是否属于关键基础设施
// SMART 与 RAID 故障意味着数据风险 默认绕过维护窗口抑制
func (c Category) Critical() bool {
	return c == CategorySmart || c == CategoryRaid
}

// EventKey 根据类别与名称生成稳定的事件键
// 名称统一小写并把空格替换为下划线 保证同一对象跨周期可关联
func EventKey(category Category, name string) string {
	clean := strings.ToLower(strings.ReplaceAll(name, " ", "_"))
	return fmt.Sprintf("%s_%s", category, clean)
}

// Sample 表示单次采集得到的状态观测
type Sample struct {
	Key        string
	Category   Category
	Name       string
	Status     Status
	ValueNum   *float64
	ValueText  string
	Details    map[string]interface{}
	ObservedAt time.Time
}

// NewSample 构建观测样本并填充事件键与时间
func NewSample(category Category, name string, status Status) Sample {
	return Sample{
		Key:        EventKey(category, name),
		Category:   category,
		Name:       name,
		Status:     status,
		ObservedAt: time.Now().UTC(),
	}
}

// Event 表示一次已确认的状态变更 入库后不再修改 仅允许补记通知标记
type Event struct {
	ID                    int64      `json:"id"`
	Key                   string     `json:"key"`
	Category              Category   `json:"category"`
	Name                  string     `json:"name"`
	PrevStatus            Status     `json:"prevStatus"`
	NewStatus             Status     `json:"newStatus"`
	Message               string     `json:"message"`
	OccurredAt            time.Time  `json:"occurredAt"`
	MaintenanceSuppressed bool       `json:"maintenanceSuppressed"`
	SleepSuppressed       bool       `json:"sleepSuppressed"`
	Notified              bool       `json:"notified"`
	NotifiedAt            *time.Time `json:"notifiedAt,omitempty"`
}

// NotifyPayload 表示告警通知负载
type NotifyPayload struct {
	Key        string
	Name       string
	Category   Category
	PrevStatus Status
	NewStatus  Status
	Message    string
	Details    map[string]interface{}
	Time       time.Time
}
