// Package resultlog публикует результаты записи батчей в Redis.
package resultlog

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeebo/xxh3"

	"github.com/ruslano69/tdtp-sink/pkg/retry"
)

// Статусы батча
const (
	StatusCommitted = "committed"
	StatusFailed    = "failed"
)

// Config - параметры публикации результатов
type Config struct {
	Enabled  bool   `yaml:"enabled"`
	Name     string `yaml:"name"` // имя sink в ключах Redis
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      int    `yaml:"ttl"` // секунды жизни ключа состояния, 0 - без TTL
}

// BatchResult - состояние последнего батча, публикуемое в Redis.
//
// Redis-ключи:
//
//	SET  tdtp:sink:<name>:state  <JSON>  EX <ttl>  - для GET-запросов оркестратора
//	PUB  tdtp:sink:<name>                          - для event-driven маршрутизации
type BatchResult struct {
	ID         string           `json:"id"`
	SinkName   string           `json:"sink_name"`
	Status     string           `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	DurationMs int64            `json:"duration_ms"`
	Records    int              `json:"records"`
	Tables     map[string]int   `json:"tables,omitempty"`
	Offsets    []retry.BatchRef `json:"offsets"`
	Error      *string          `json:"error,omitempty"`
}

// NewBatchResult собирает результат батча; err == nil - батч зафиксирован
func NewBatchResult(refs []retry.BatchRef, tables map[string]int, started time.Time, err error) BatchResult {
	finished := time.Now()
	result := BatchResult{
		ID:         BatchID(refs),
		Status:     StatusCommitted,
		StartedAt:  started,
		FinishedAt: finished,
		DurationMs: finished.Sub(started).Milliseconds(),
		Tables:     tables,
		Offsets:    refs,
	}
	for _, ref := range refs {
		result.Records += ref.Records
	}
	if err != nil {
		result.Status = StatusFailed
		errStr := err.Error()
		result.Error = &errStr
	}
	return result
}

// BatchID - XXH3 от координат батча; повтор того же батча дает тот же ID
func BatchID(refs []retry.BatchRef) string {
	h := xxh3.New()
	for _, ref := range refs {
		h.WriteString(ref.Topic)
		h.WriteString("/")
		h.WriteString(strconv.Itoa(ref.Partition))
		h.WriteString("@")
		h.WriteString(strconv.FormatInt(ref.FirstOffset, 10))
		h.WriteString("-")
		h.WriteString(strconv.FormatInt(ref.LastOffset, 10))
		h.WriteString(";")
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h.Sum64())
	return hex.EncodeToString(buf[:])
}

// RedisPublisher публикует результаты батчей в Redis
type RedisPublisher struct {
	client *redis.Client
	config Config
}

// NewRedisPublisher создает publisher с собственным клиентом Redis
func NewRedisPublisher(config Config) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	return New(client, config)
}

// New создает publisher поверх готового клиента
func New(client *redis.Client, config Config) *RedisPublisher {
	return &RedisPublisher{client: client, config: config}
}

// StateKey - ключ последнего состояния sink
func (p *RedisPublisher) StateKey() string {
	return fmt.Sprintf("tdtp:sink:%s:state", p.config.Name)
}

// Channel - канал событий sink
func (p *RedisPublisher) Channel() string {
	return fmt.Sprintf("tdtp:sink:%s", p.config.Name)
}

// Publish сохраняет состояние (SET с TTL) и публикует событие (PUBLISH).
// Вызывается для каждого батча независимо от результата.
func (p *RedisPublisher) Publish(ctx context.Context, result BatchResult) error {
	result.SinkName = p.config.Name

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	ttl := time.Duration(p.config.TTL) * time.Second
	if err := p.client.Set(ctx, p.StateKey(), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(), payload).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH failed: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
