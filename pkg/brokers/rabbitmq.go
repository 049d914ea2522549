package brokers

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// emptyQueueBackoff - пауза между Get на пустой очереди
const emptyQueueBackoff = 100 * time.Millisecond

// RabbitMQ читает очередь через basic.get с ручным ack.
// Offset сообщения - delivery tag канала, partition всегда 0.
type RabbitMQ struct {
	config  Config
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitMQ создает RabbitMQ источник
func NewRabbitMQ(cfg Config) (*RabbitMQ, error) {
	if cfg.Queue == "" {
		return nil, fmt.Errorf("queue name is required for RabbitMQ")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		if cfg.UseTLS {
			cfg.Port = 5671
		} else {
			cfg.Port = 5672
		}
	}
	if cfg.VHost == "" {
		cfg.VHost = "/"
	}

	return &RabbitMQ{config: cfg}, nil
}

// URL возвращает строку подключения amqp:// или amqps://
func (r *RabbitMQ) URL() string {
	scheme := "amqp"
	if r.config.UseTLS {
		scheme = "amqps"
	}
	u := url.URL{
		Scheme:  scheme,
		User:    url.UserPassword(r.config.User, r.config.Password),
		Host:    fmt.Sprintf("%s:%d", r.config.Host, r.config.Port),
		Path:    "/" + r.config.VHost,
		RawPath: "/" + url.PathEscape(r.config.VHost),
	}
	return u.String()
}

// Connect устанавливает соединение и объявляет очередь
func (r *RabbitMQ) Connect(ctx context.Context) error {
	var err error
	if r.config.UseTLS {
		r.conn, err = amqp.DialTLS(r.URL(), &tls.Config{
			ServerName: r.config.Host,
			MinVersion: tls.VersionTLS12,
		})
	} else {
		r.conn, err = amqp.Dial(r.URL())
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	r.channel, err = r.conn.Channel()
	if err != nil {
		r.conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	// Параметры должны совпадать с уже существующей очередью
	_, err = r.channel.QueueDeclare(
		r.config.Queue,
		r.config.Durable,
		r.config.AutoDelete,
		r.config.Exclusive,
		false, // no-wait
		nil,
	)
	if err != nil {
		r.channel.Close()
		r.conn.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	return nil
}

// Poll забирает до limit сообщений без ack
func (r *RabbitMQ) Poll(ctx context.Context, limit int, wait time.Duration) ([]Message, error) {
	if r.channel == nil {
		return nil, fmt.Errorf("not connected to RabbitMQ")
	}

	deadline := time.Now().Add(wait)
	var msgs []Message
	for len(msgs) < limit {
		d, ok, err := r.channel.Get(r.config.Queue, false)
		if err != nil {
			return msgs, fmt.Errorf("failed to get message: %w", err)
		}
		if ok {
			msgs = append(msgs, r.fromDelivery(d))
			continue
		}

		if len(msgs) > 0 || time.Now().After(deadline) {
			break
		}
		select {
		case <-time.After(emptyQueueBackoff):
		case <-ctx.Done():
			return msgs, ctx.Err()
		}
	}
	return msgs, nil
}

// fromDelivery не заполняет Key: у AMQP нет ключа записи
func (r *RabbitMQ) fromDelivery(d amqp.Delivery) Message {
	return Message{
		Topic:  r.config.Queue,
		Offset: int64(d.DeliveryTag),
		ID:     d.MessageId,
		Value:  d.Body,
		Time:   d.Timestamp,
	}
}

// Commit подтверждает все сообщения до наибольшего delivery tag
func (r *RabbitMQ) Commit(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}

	var last int64
	for _, m := range msgs {
		last = max(last, m.Offset)
	}
	if err := r.channel.Ack(uint64(last), true); err != nil {
		return fmt.Errorf("failed to acknowledge messages: %w", err)
	}
	return nil
}

// Ping проверяет что соединение и канал открыты
func (r *RabbitMQ) Ping(ctx context.Context) error {
	if r.conn == nil || r.conn.IsClosed() {
		return fmt.Errorf("not connected to RabbitMQ")
	}
	if r.channel == nil || r.channel.IsClosed() {
		return fmt.Errorf("channel not open")
	}
	return nil
}

// Close закрывает канал и соединение. Неподтвержденные сообщения
// возвращаются брокером в очередь.
func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			return fmt.Errorf("failed to close channel: %w", err)
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	return nil
}

// Type возвращает тип брокера
func (r *RabbitMQ) Type() string {
	return "rabbitmq"
}
