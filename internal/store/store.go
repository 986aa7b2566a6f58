// 本文件用于告警事件与采集样本的 SQLite 持久化存储。
// 文件职责：实现当前模块的核心业务逻辑与数据流转
// 关键路径：入口参数先校验再执行业务处理 最后返回统一结果
// 边界与容错：异常场景显式返回错误 由上层决定重试或降级

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"home-pulse/internal/alert"
)

const (
	defaultDatabasePath = "data/homepulse.db"
	storeTimeLayout     = time.RFC3339Nano
)

// Store 基于 SQLite 的事件与样本存储
// 事件表只追加 同一个键允许多行历史 最新一行即当前已确认状态
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// Open 初始化存储并完成表结构迁移
func Open(path string) (*Store, error) {
	dbPath := strings.TrimSpace(path)
	if dbPath == "" {
		dbPath = defaultDatabasePath
	}
	// 启动时确保目录存在，避免数据库文件无法创建导致进程直接退出
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir failed: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite failed: %w", err)
	}
	// WAL 兼顾写入吞吐与崩溃恢复，采集周期每分钟都有批量写入
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set sqlite wal failed: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DBPath() string {
	if s == nil {
		return ""
	}
	return s.dbPath
}

// InsertEvent 追加一条已确认的状态变更事件
// 同键历史不做去重与覆盖 旧实现用唯一键覆盖写导致历史丢失 已废弃
func (s *Store) InsertEvent(ctx context.Context, event *alert.Event) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is closed")
	}
	if event == nil || strings.TrimSpace(event.Key) == "" {
		return fmt.Errorf("invalid event: key is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	notifiedAt := ""
	if event.NotifiedAt != nil {
		notifiedAt = formatStoreTime(*event.NotifiedAt)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (
			event_key, category, name, prev_status, new_status, message,
			occurred_at, maintenance_suppressed, sleep_suppressed, notified, notified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.Key,
		string(event.Category),
		event.Name,
		int(event.PrevStatus),
		int(event.NewStatus),
		event.Message,
		formatStoreTime(event.OccurredAt),
		boolToInt(event.MaintenanceSuppressed),
		boolToInt(event.SleepSuppressed),
		boolToInt(event.Notified),
		notifiedAt,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		event.ID = id
	}
	return nil
}

// LatestEventByKey 返回指定键的最近一条事件 未见过的键返回 nil
func (s *Store) LatestEventByKey(ctx context.Context, key string) (*alert.Event, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store is closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, event_key, category, name, prev_status, new_status, message,
			occurred_at, maintenance_suppressed, sleep_suppressed, notified, notified_at
		FROM events
		WHERE event_key = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT 1
	`, key)
	event, err := scanEventRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

// LatestEvents 返回最近的事件 按时间倒序
func (s *Store) LatestEvents(ctx context.Context, limit int) ([]alert.Event, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store is closed")
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_key, category, name, prev_status, new_status, message,
			occurred_at, maintenance_suppressed, sleep_suppressed, notified, notified_at
		FROM events
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEventRows(rows)
}

// EventsBetween 返回时间区间内的事件 按时间正序 用于归档导出
func (s *Store) EventsBetween(ctx context.Context, from, to time.Time) ([]alert.Event, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store is closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_key, category, name, prev_status, new_status, message,
			occurred_at, maintenance_suppressed, sleep_suppressed, notified, notified_at
		FROM events
		WHERE occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at ASC, id ASC
	`, formatStoreTime(from), formatStoreTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEventRows(rows)
}

// MarkEventNotified 为指定键的最新一行补记通知标记
// 事件入库后唯一允许的修改就是这两个字段
func (s *Store) MarkEventNotified(ctx context.Context, key string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE events SET notified = 1, notified_at = ?
		WHERE id = (
			SELECT id FROM events WHERE event_key = ?
			ORDER BY occurred_at DESC, id DESC LIMIT 1
		)
	`, formatStoreTime(at), key)
	return err
}

// EnqueueSleepEvent 把睡眠时段内确认的事件排队到晨间摘要
func (s *Store) EnqueueSleepEvent(ctx context.Context, event alert.Event) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sleep_events (event_key, category, name, prev_status, new_status, message, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		event.Key,
		string(event.Category),
		event.Name,
		int(event.PrevStatus),
		int(event.NewStatus),
		event.Message,
		formatStoreTime(event.OccurredAt),
	)
	return err
}

// SleepEvents 返回当前排队的全部睡眠事件 按时间正序
func (s *Store) SleepEvents(ctx context.Context) ([]alert.Event, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store is closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_key, category, name, prev_status, new_status, message, occurred_at
		FROM sleep_events
		ORDER BY occurred_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]alert.Event, 0)
	for rows.Next() {
		var (
			event      alert.Event
			category   string
			prevStatus int
			newStatus  int
			occurredAt string
		)
		if err := rows.Scan(
			&event.ID,
			&event.Key,
			&category,
			&event.Name,
			&prevStatus,
			&newStatus,
			&event.Message,
			&occurredAt,
		); err != nil {
			return nil, err
		}
		event.Category = alert.Category(category)
		event.PrevStatus = alert.Status(prevStatus)
		event.NewStatus = alert.Status(newStatus)
		event.SleepSuppressed = true
		event.OccurredAt = parseStoreTime(occurredAt)
		out = append(out, event)
	}
	return out, rows.Err()
}

// ClearSleepEvents 清空睡眠事件队列 摘要发出与否都要清 避免次日重放
func (s *Store) ClearSleepEvents(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM sleep_events`)
	return err
}

// InsertMetricSample 追加一条数值型采集样本 供趋势图与归档使用
func (s *Store) InsertMetricSample(ctx context.Context, sample alert.Sample) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	value := 0.0
	if sample.ValueNum != nil {
		value = *sample.ValueNum
	}
	detailsJSON := "{}"
	if len(sample.Details) > 0 {
		if raw, err := json.Marshal(sample.Details); err == nil {
			detailsJSON = string(raw)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metric_samples (event_key, category, name, status, value_num, value_text, details_json, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sample.Key,
		string(sample.Category),
		sample.Name,
		int(sample.Status),
		value,
		sample.ValueText,
		detailsJSON,
		formatStoreTime(sample.ObservedAt),
	)
	return err
}

// UpsertServiceStatus 覆盖写入检查项的当前状态快照 供面板展示
func (s *Store) UpsertServiceStatus(ctx context.Context, sample alert.Sample) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_status (event_key, category, name, status, detail, checked_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_key) DO UPDATE SET
			category = excluded.category,
			name = excluded.name,
			status = excluded.status,
			detail = excluded.detail,
			checked_at = excluded.checked_at
	`,
		sample.Key,
		string(sample.Category),
		sample.Name,
		int(sample.Status),
		sample.ValueText,
		formatStoreTime(sample.ObservedAt),
	)
	return err
}

// ServiceSnapshot 表示检查项当前状态
type ServiceSnapshot struct {
	Key       string         `json:"key"`
	Category  alert.Category `json:"category"`
	Name      string         `json:"name"`
	Status    alert.Status   `json:"status"`
	Detail    string         `json:"detail"`
	CheckedAt time.Time      `json:"checkedAt"`
}

// ServiceStatuses 返回全部检查项的当前状态快照
func (s *Store) ServiceStatuses(ctx context.Context) ([]ServiceSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store is closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_key, category, name, status, detail, checked_at
		FROM service_status
		ORDER BY category ASC, name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ServiceSnapshot, 0)
	for rows.Next() {
		var (
			item      ServiceSnapshot
			category  string
			status    int
			checkedAt string
		)
		if err := rows.Scan(&item.Key, &category, &item.Name, &status, &item.Detail, &checkedAt); err != nil {
			return nil, err
		}
		item.Category = alert.Category(category)
		item.Status = alert.Status(status)
		item.CheckedAt = parseStoreTime(checkedAt)
		out = append(out, item)
	}
	return out, rows.Err()
}

// DeleteOldSamples 删除早于截止时间的样本与事件 返回删除行数
// 事件表同样参与清理 保留窗口由配置决定
func (s *Store) DeleteOldSamples(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("store is closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := formatStoreTime(before)
	total := int64(0)
	res, err := s.db.ExecContext(ctx, `DELETE FROM metric_samples WHERE observed_at < ?`, cutoff)
	if err != nil {
		return total, err
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}
	res, err = s.db.ExecContext(ctx, `DELETE FROM events WHERE occurred_at < ?`, cutoff)
	if err != nil {
		return total, err
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}
	return total, nil
}

// migrate 负责表结构与索引的幂等迁移
// 迁移分步执行 便于升级时逐条定位失败语句
func migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("sqlite is nil")
	}
	// 事件表刻意不建唯一键，同一个键的完整历史都要保留
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_key TEXT NOT NULL,
			category TEXT NOT NULL,
			name TEXT NOT NULL,
			prev_status INTEGER NOT NULL,
			new_status INTEGER NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			occurred_at TEXT NOT NULL,
			maintenance_suppressed INTEGER NOT NULL DEFAULT 0,
			sleep_suppressed INTEGER NOT NULL DEFAULT 0,
			notified INTEGER NOT NULL DEFAULT 0,
			notified_at TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_key_occurred
			ON events(event_key, occurred_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_events_occurred
			ON events(occurred_at DESC);`,
		`CREATE TABLE IF NOT EXISTS sleep_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_key TEXT NOT NULL,
			category TEXT NOT NULL,
			name TEXT NOT NULL,
			prev_status INTEGER NOT NULL,
			new_status INTEGER NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			occurred_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS metric_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_key TEXT NOT NULL,
			category TEXT NOT NULL,
			name TEXT NOT NULL,
			status INTEGER NOT NULL,
			value_num REAL NOT NULL DEFAULT 0,
			value_text TEXT NOT NULL DEFAULT '',
			details_json TEXT NOT NULL DEFAULT '{}',
			observed_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_metric_samples_key_observed
			ON metric_samples(event_key, observed_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_metric_samples_observed
			ON metric_samples(observed_at);`,
		`CREATE TABLE IF NOT EXISTS service_status (
			event_key TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			name TEXT NOT NULL,
			status INTEGER NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			checked_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		);`,
		`INSERT INTO schema_version (version)
			SELECT 1 WHERE NOT EXISTS (SELECT 1 FROM schema_version);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate sqlite failed: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEventRow(row rowScanner) (*alert.Event, error) {
	var (
		event       alert.Event
		category    string
		prevStatus  int
		newStatus   int
		occurredAt  string
		maintenance int
		sleep       int
		notified    int
		notifiedRaw string
	)
	if err := row.Scan(
		&event.ID,
		&event.Key,
		&category,
		&event.Name,
		&prevStatus,
		&newStatus,
		&event.Message,
		&occurredAt,
		&maintenance,
		&sleep,
		&notified,
		&notifiedRaw,
	); err != nil {
		return nil, err
	}
	event.Category = alert.Category(category)
	event.PrevStatus = alert.Status(prevStatus)
	event.NewStatus = alert.Status(newStatus)
	event.OccurredAt = parseStoreTime(occurredAt)
	event.MaintenanceSuppressed = maintenance != 0
	event.SleepSuppressed = sleep != 0
	event.Notified = notified != 0
	// notified_at 允许为空字符串，代表事件尚未发出通知
	if strings.TrimSpace(notifiedRaw) != "" {
		notifiedAt := parseStoreTime(notifiedRaw)
		event.NotifiedAt = &notifiedAt
	}
	return &event, nil
}

func scanEventRows(rows *sql.Rows) ([]alert.Event, error) {
	out := make([]alert.Event, 0)
	for rows.Next() {
		event, err := scanEventRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *event)
	}
	return out, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func formatStoreTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(storeTimeLayout)
}

func parseStoreTime(raw string) time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}
	}
	// 先按纳秒精度解析，再兼容 RFC3339 老格式，保证历史数据可读
	if t, err := time.Parse(storeTimeLayout, trimmed); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
