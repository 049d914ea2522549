package brokers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultConsumerGroup - consumer group по умолчанию
const DefaultConsumerGroup = "tdtp-sink"

// Kafka читает топики через consumer group с ручным commit offset
type Kafka struct {
	config Config
	reader *kafka.Reader
}

// NewKafka создает Kafka источник
func NewKafka(cfg Config) (*Kafka, error) {
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("at least one topic is required for Kafka")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker address is required for Kafka")
	}
	if cfg.ConsumerGroup == "" {
		cfg.ConsumerGroup = DefaultConsumerGroup
	}
	if _, err := startOffset(cfg.StartOffset); err != nil {
		return nil, err
	}

	return &Kafka{config: cfg}, nil
}

func startOffset(s string) (int64, error) {
	switch s {
	case "", "earliest":
		return kafka.FirstOffset, nil
	case "latest":
		return kafka.LastOffset, nil
	default:
		return 0, fmt.Errorf("invalid start offset: %s (supported: earliest, latest)", s)
	}
}

// Connect создает reader consumer group и проверяет доступность брокера
func (k *Kafka) Connect(ctx context.Context) error {
	offset, _ := startOffset(k.config.StartOffset)

	k.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:        k.config.Brokers,
		GroupID:        k.config.ConsumerGroup,
		GroupTopics:    k.config.Topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // Manual commit
		StartOffset:    offset,
		MaxWait:        1 * time.Second,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: 1 * time.Second,
	})

	return k.Ping(ctx)
}

// Poll читает до limit сообщений в пределах wait
func (k *Kafka) Poll(ctx context.Context, limit int, wait time.Duration) ([]Message, error) {
	if k.reader == nil {
		return nil, fmt.Errorf("not connected to Kafka")
	}

	pollCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var msgs []Message
	for len(msgs) < limit {
		m, err := k.reader.FetchMessage(pollCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break
			}
			return msgs, fmt.Errorf("failed to fetch message: %w", err)
		}
		msgs = append(msgs, fromKafka(m))
	}
	return msgs, nil
}

func fromKafka(m kafka.Message) Message {
	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
	}
}

// Commit фиксирует offset сообщений в consumer group
func (k *Kafka) Commit(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}

	km := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		km[i] = kafka.Message{Topic: m.Topic, Partition: m.Partition, Offset: m.Offset}
	}
	if err := k.reader.CommitMessages(ctx, km...); err != nil {
		return fmt.Errorf("failed to commit offsets: %w", err)
	}
	return nil
}

// Ping проверяет что брокер отвечает и топики существуют
func (k *Kafka) Ping(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", k.config.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial Kafka broker: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ReadPartitions(k.config.Topics...); err != nil {
		return fmt.Errorf("failed to read topic partitions: %w", err)
	}
	return nil
}

// Close закрывает reader
func (k *Kafka) Close() error {
	if k.reader == nil {
		return nil
	}
	if err := k.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}
	return nil
}

// Type возвращает тип брокера
func (k *Kafka) Type() string {
	return "kafka"
}

// Stats возвращает статистику reader
func (k *Kafka) Stats() kafka.ReaderStats {
	if k.reader == nil {
		return kafka.ReaderStats{}
	}
	return k.reader.Stats()
}
