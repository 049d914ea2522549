package retry

import (
	"context"
	"fmt"
	"time"
)

// RetryableFunc - операция, которую можно повторить
type RetryableFunc func(ctx context.Context) error

// Retryer выполняет операцию до успеха, неповторяемой ошибки или исчерпания попыток
type Retryer struct {
	config Config
	dlq    *DLQ
}

// New создает Retryer
func New(config Config) (*Retryer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	r := &Retryer{config: config}
	if config.DLQ.Enabled {
		dlq, err := NewDLQ(config.DLQ)
		if err != nil {
			return nil, fmt.Errorf("failed to create DLQ: %w", err)
		}
		r.dlq = dlq
	}
	return r, nil
}

// Do выполняет fn с повторами
func (r *Retryer) Do(ctx context.Context, fn RetryableFunc) error {
	_, _, err := r.run(ctx, fn)
	return err
}

// DoBatch выполняет fn с повторами; если попытки исчерпаны,
// координаты батча сохраняются в DLQ
func (r *Retryer) DoBatch(ctx context.Context, fn RetryableFunc, batches []BatchRef) error {
	attempts, exhausted, err := r.run(ctx, fn)
	if exhausted && r.dlq != nil {
		r.dlq.Add(DLQEntry{
			Timestamp: time.Now(),
			Attempts:  attempts,
			LastError: err.Error(),
			Batches:   batches,
		})
	}
	return err
}

// run возвращает число попыток и признак исчерпания попыток
func (r *Retryer) run(ctx context.Context, fn RetryableFunc) (int, bool, error) {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return attempt, false, nil
		}

		if r.config.ShouldRetry != nil && !r.config.ShouldRetry(err) {
			return attempt, false, fmt.Errorf("non-retryable error: %w", err)
		}
		if attempt >= r.config.MaxAttempts {
			return attempt, true, fmt.Errorf("max retry attempts (%d) exceeded: %w", r.config.MaxAttempts, err)
		}
		if ctx.Err() != nil {
			return attempt, false, fmt.Errorf("context cancelled: %w", ctx.Err())
		}

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, r.config.Delay)
		}

		timer := time.NewTimer(r.config.Delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attempt, false, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
}

// DLQ возвращает очередь или nil, если она отключена
func (r *Retryer) DLQ() *DLQ {
	return r.dlq
}

// Close сохраняет DLQ
func (r *Retryer) Close() error {
	if r.dlq != nil {
		return r.dlq.Save()
	}
	return nil
}
