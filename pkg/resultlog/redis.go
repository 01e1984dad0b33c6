// Package resultlog публикует итог экспорта в Redis.
package resultlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ruslano69/tdtp-export/pkg/export"
)

// Статусы выполнения
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// DefaultTTL - время жизни ключа состояния по умолчанию
const DefaultTTL = 3600

// Config - настройки публикации результата
type Config struct {
	Type     string `yaml:"type"` // redis (пустое = отключено)
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Name     string `yaml:"name"` // по умолчанию имя задания
	TTL      int    `yaml:"ttl"`  // секунды
}

// Enabled сообщает, включена ли публикация
func (c *Config) Enabled() bool {
	return c.Type != "" && c.Type != "none"
}

// SetDefaults устанавливает значения по умолчанию
func (c *Config) SetDefaults(jobName string) {
	if c.Address == "" {
		c.Address = "localhost:6379"
	}
	if c.Name == "" {
		c.Name = jobName
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Type != "redis" {
		return fmt.Errorf("unsupported result_log.type '%s', must be 'redis'", c.Type)
	}
	if c.Name == "" {
		return fmt.Errorf("result_log.name is required")
	}
	return nil
}

// ExportResult - состояние экспорта, публикуемое после завершения.
//
// Redis-ключи:
//
//	SET  tdtp:export:<name>:state  <JSON>  EX <ttl>  - последнее состояние для опроса
//	PUB  tdtp:export:<name>                          - событие для подписчиков
type ExportResult struct {
	JobName    string       `json:"job_name"`
	Table      string       `json:"table"`
	Status     string       `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	DurationMs int64        `json:"duration_ms"`
	Stats      export.Stats `json:"stats"`
	Error      *string      `json:"error,omitempty"`
}

// StateKey возвращает ключ состояния
func StateKey(name string) string {
	return fmt.Sprintf("tdtp:export:%s:state", name)
}

// Channel возвращает канал событий
func Channel(name string) string {
	return fmt.Sprintf("tdtp:export:%s", name)
}

// RedisPublisher публикует результат экспорта в Redis
type RedisPublisher struct {
	client *redis.Client
	config Config
}

// NewRedisPublisher создает publisher на основе конфигурации
func NewRedisPublisher(config Config) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisPublisher{client: client, config: config}
}

// NewResult собирает ExportResult. execErr == nil означает успешное выполнение.
func NewResult(jobName, table string, startedAt time.Time, stats export.Stats, execErr error) ExportResult {
	result := ExportResult{
		JobName:    jobName,
		Table:      table,
		StartedAt:  startedAt.UTC(),
		FinishedAt: startedAt.Add(stats.Duration).UTC(),
		DurationMs: stats.Duration.Milliseconds(),
		Stats:      stats,
		Status:     StatusSuccess,
	}
	if execErr != nil {
		result.Status = StatusFailed
		errStr := execErr.Error()
		result.Error = &errStr
	}
	return result
}

// Publish записывает состояние с TTL и отправляет событие.
// Вызывается независимо от результата выполнения.
func (p *RedisPublisher) Publish(ctx context.Context, result ExportResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	ttl := time.Duration(p.config.TTL) * time.Second

	if err := p.client.Set(ctx, StateKey(p.config.Name), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}

	if err := p.client.Publish(ctx, Channel(p.config.Name), payload).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH failed: %w", err)
	}

	return nil
}

// Close закрывает соединение с Redis
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
