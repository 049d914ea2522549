// Package brokers читает записи для sink из брокеров сообщений.
package brokers

import (
	"context"
	"fmt"
	"time"
)

// Message - сообщение брокера с координатами для commit
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	ID        string // идентификатор сообщения брокера, не декодируется
	Key       []byte
	Value     []byte
	Time      time.Time
}

// Source - источник сообщений с ручным подтверждением.
// Commit вызывается только после успешной записи батча.
type Source interface {
	// Connect устанавливает соединение с брокером
	Connect(ctx context.Context) error

	// Poll возвращает до limit сообщений, ожидая не дольше wait.
	// Пустой результат без ошибки - сообщений пока нет.
	Poll(ctx context.Context, limit int, wait time.Duration) ([]Message, error)

	// Commit подтверждает сообщения (offset / ack)
	Commit(ctx context.Context, msgs []Message) error

	// Ping проверяет доступность брокера
	Ping(ctx context.Context) error

	// Close закрывает соединение с брокером
	Close() error

	// Type возвращает тип брокера (kafka, rabbitmq)
	Type() string
}

// Config содержит параметры подключения к брокеру
type Config struct {
	Type string `yaml:"type"` // kafka, rabbitmq

	// Kafka
	Brokers       []string `yaml:"brokers"`
	Topics        []string `yaml:"topics"`
	ConsumerGroup string   `yaml:"consumer_group"` // по умолчанию "tdtp-sink"
	StartOffset   string   `yaml:"start_offset"`   // earliest, latest (по умолчанию earliest)

	// RabbitMQ
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	VHost      string `yaml:"vhost"`
	Queue      string `yaml:"queue"`
	UseTLS     bool   `yaml:"use_tls"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// New создает Source на основе конфигурации
func New(cfg Config) (Source, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafka(cfg)
	case "rabbitmq":
		return NewRabbitMQ(cfg)
	default:
		return nil, fmt.Errorf("unsupported broker type: %s (supported: kafka, rabbitmq)", cfg.Type)
	}
}
