// Package retry повторяет операции с фиксированной задержкой и сохраняет
// координаты батчей, не записанных после всех попыток, в Dead Letter Queue.
package retry

import (
	"fmt"
	"time"
)

// Config содержит конфигурацию повторов
type Config struct {
	// MaxAttempts - количество попыток, включая первую
	MaxAttempts int

	// Delay - фиксированная задержка между попытками
	Delay time.Duration

	// ShouldRetry - классификатор ошибок; nil = повторять любую ошибку
	ShouldRetry func(err error) bool

	// OnRetry - вызывается перед каждым повтором (не перед первой попыткой)
	OnRetry func(attempt int, err error, delay time.Duration)

	// DLQ - очередь батчей, не записанных после всех попыток
	DLQ DLQConfig
}

// DLQConfig содержит конфигурацию Dead Letter Queue
type DLQConfig struct {
	Enabled bool

	// FilePath - путь к JSON файлу
	FilePath string

	// MaxSize - максимум записей; при превышении удаляются самые старые
	MaxSize int
}

// NewConfig создает конфигурацию с maxAttempts попытками и фиксированной задержкой
func NewConfig(maxAttempts int, delay time.Duration) Config {
	return Config{MaxAttempts: maxAttempts, Delay: delay}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must be >= 0, got %v", c.Delay)
	}
	if c.DLQ.Enabled {
		if c.DLQ.FilePath == "" {
			return fmt.Errorf("dlq file path is required")
		}
		if c.DLQ.MaxSize < 0 {
			return fmt.Errorf("dlq max size must be >= 0, got %d", c.DLQ.MaxSize)
		}
	}
	return nil
}
